// Package logging emits one JSON line per operation step with a fixed field
// set, so events can be traced across services by order_id and event_id.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

type Fields struct {
	OrderID       string
	EventID       string
	CorrelationID string
	Topic         string
	Step          string
	Status        string
	Attempt       int
	DurationMS    int64
}

type Logger struct {
	log     *logrus.Logger
	service string
}

func New(service string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000000000Z07:00"})
	return &Logger{log: l, service: service}
}

// SetLevel accepts any level logrus can parse; unknown values keep info.
func (l *Logger) SetLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.log.SetLevel(parsed)
}

func (l *Logger) entry(f Fields) *logrus.Entry {
	fields := logrus.Fields{"service": l.service}
	if f.OrderID != "" {
		fields["order_id"] = f.OrderID
	}
	if f.EventID != "" {
		fields["event_id"] = f.EventID
	}
	if f.CorrelationID != "" {
		fields["correlation_id"] = f.CorrelationID
	}
	if f.Topic != "" {
		fields["topic"] = f.Topic
	}
	if f.Step != "" {
		fields["step"] = f.Step
	}
	if f.Status != "" {
		fields["status"] = f.Status
	}
	if f.Attempt > 0 {
		fields["attempt"] = f.Attempt
	}
	if f.DurationMS > 0 {
		fields["duration_ms"] = f.DurationMS
	}
	return l.log.WithFields(fields)
}

func (l *Logger) Info(msg string, f Fields) {
	l.entry(f).Info(msg)
}

func (l *Logger) Warn(msg string, f Fields) {
	l.entry(f).Warn(msg)
}

func (l *Logger) Error(msg string, err error, f Fields) {
	l.entry(f).WithError(err).Error(msg)
}

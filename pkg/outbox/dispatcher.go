package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/LewiysArito/simple-ddd-order-flow/pkg/logging"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/metrics"
)

type DispatcherConfig struct {
	Interval       time.Duration
	PublishTimeout time.Duration
	BatchSize      int
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	return c
}

// Dispatcher drains pending records to the broker in insertion order. A
// failed or timed-out publish ends the pass; the record stays pending and is
// retried next tick, so a later event for the same order can never overtake
// an earlier one.
type Dispatcher struct {
	store   Store
	pub     Publisher
	log     *logging.Logger
	metrics *metrics.OutboxMetrics // optional
	cfg     DispatcherConfig
	wake    chan struct{}
}

func NewDispatcher(store Store, pub Publisher, log *logging.Logger, m *metrics.OutboxMetrics, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		store:   store,
		pub:     pub,
		log:     log,
		metrics: m,
		cfg:     cfg.withDefaults(),
		wake:    make(chan struct{}, 1),
	}
}

// Wake nudges the dispatcher without waiting for the next tick. Safe to call
// from any goroutine; a pending nudge is coalesced.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.wake:
		}
		d.drain(ctx)
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	records, err := d.store.FetchPending(ctx, d.cfg.BatchSize)
	if err != nil {
		d.log.Error("outbox fetch failed", err, logging.Fields{Step: "outbox_fetch"})
		return
	}
	for _, rec := range records {
		if ctx.Err() != nil {
			return
		}
		if !d.dispatch(ctx, rec) {
			break
		}
	}
	d.observePending(ctx)
}

func (d *Dispatcher) dispatch(ctx context.Context, rec Record) bool {
	start := time.Now()
	err := d.pub.Publish(ctx, rec.Topic, rec.Key, rec.Payload, d.cfg.PublishTimeout)
	elapsed := time.Since(start)
	fields := logging.Fields{
		OrderID:    rec.Key,
		EventID:    rec.EventID,
		Topic:      rec.Topic,
		Step:       "outbox_publish",
		Attempt:    rec.Attempts + 1,
		DurationMS: elapsed.Milliseconds(),
	}
	if err != nil {
		if markErr := d.store.MarkFailed(ctx, rec.ID); markErr != nil {
			d.log.Error("outbox mark failed", markErr, fields)
		}
		if d.metrics != nil {
			d.metrics.Failed.WithLabelValues(rec.Topic, reason(err)).Inc()
		}
		d.log.Warn("event publish failed, will retry", mergeStatus(fields, "pending"))
		return false
	}
	if err := d.store.MarkSent(ctx, rec.ID); err != nil {
		// The event went out but the mark did not stick; the next pass will
		// redeliver and consumers dedup by event_id.
		d.log.Error("outbox mark sent failed", err, fields)
		return false
	}
	if d.metrics != nil {
		d.metrics.Published.WithLabelValues(rec.Topic).Inc()
		d.metrics.PublishLatencyMS.Observe(float64(elapsed.Milliseconds()))
	}
	d.log.Info("event published", mergeStatus(fields, "sent"))
	return true
}

func (d *Dispatcher) observePending(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	if n, err := d.store.Pending(ctx); err == nil {
		d.metrics.Pending.Set(float64(n))
	}
}

func mergeStatus(f logging.Fields, status string) logging.Fields {
	f.Status = status
	return f
}

func reason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrPublishTimeout) {
		return "timeout"
	}
	return "failure"
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	prometheus.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// OutboxMetrics instruments the dispatcher drain loop.
type OutboxMetrics struct {
	Published        *prometheus.CounterVec
	Failed           *prometheus.CounterVec
	Pending          prometheus.Gauge
	PublishLatencyMS prometheus.Histogram
}

func NewOutboxMetrics(service string) *OutboxMetrics {
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "outbox_published_total",
		Help:      "Events acknowledged by the broker.",
	}, []string{"topic"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "outbox_publish_failures_total",
		Help:      "Publish attempts that ended in timeout or failure.",
	}, []string{"topic", "reason"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "outbox_pending",
		Help:      "Outbox records awaiting broker acknowledgment.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "orderflow",
		Subsystem: service,
		Name:      "outbox_publish_duration_ms",
		Help:      "Broker publish latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	prometheus.MustRegister(published, failed, pending, latency)
	return &OutboxMetrics{Published: published, Failed: failed, Pending: pending, PublishLatencyMS: latency}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

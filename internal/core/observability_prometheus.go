package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports operation latencies as a histogram and
// committed events as a counter.
type PrometheusMetricsRecorder struct {
	durations *prometheus.HistogramVec
	events    *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the gridrank collectors with reg.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	r := &PrometheusMetricsRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gridrank",
			Name:      "operation_duration_seconds",
			Help:      "Duration of unit-of-work and service operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridrank",
			Name:      "events_committed_total",
			Help:      "Domain events made durable by committed units of work.",
		}, []string{"type"}),
	}
	for _, c := range []prometheus.Collector{r.durations, r.events} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records an operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// ObserveEvent counts one committed event.
func (r *PrometheusMetricsRecorder) ObserveEvent(_ context.Context, eventType string) {
	r.events.WithLabelValues(eventType).Inc()
}

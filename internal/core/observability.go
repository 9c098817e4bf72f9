package core

import (
	"context"
	"time"

	"gridrank/internal/platform/logging"
)

// MetricsRecorder receives the outcome and duration of unit-of-work and
// service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// EventMetrics is optionally implemented by a MetricsRecorder that also
// counts the events a commit made durable.
type EventMetrics interface {
	ObserveEvent(ctx context.Context, eventType string)
}

// Tracer starts spans around operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is finished exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Option configures a UnitOfWork or Service.
type Option func(*options)

type options struct {
	logger  logging.Logger
	metrics MetricsRecorder
	tracer  Tracer
	now     func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		logger:  logging.Noop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func (o options) observe(ctx context.Context, operation string, started time.Time, err error) {
	o.metrics.Observe(ctx, operation, err == nil, o.now().Sub(started))
}

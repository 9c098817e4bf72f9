package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"gridrank/internal/infra/persistence/contract"
	"gridrank/internal/infra/persistence/memory"
	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls  []metricsCall
	events []string
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) ObserveEvent(_ context.Context, eventType string) {
	c.events = append(c.events, eventType)
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

var errInjected = errors.New("injected failure")

// failingSource wraps a DataSource whose transactions reject GameCreated.
type failingSource struct {
	domain.DataSource
	begins int
}

func (f *failingSource) Begin(ctx context.Context) (domain.TransactionalEventHandler, error) {
	tx, err := f.DataSource.Begin(ctx)
	if err != nil {
		return nil, err
	}
	f.begins++
	return failingTx{tx}, nil
}

type failingTx struct {
	domain.TransactionalEventHandler
}

func (failingTx) HandleGameCreated(context.Context, domain.GameCreated) error {
	return errInjected
}

type strayEvent struct{}

func (strayEvent) EventType() string { return "StrayEvent" }

// seeded returns a memory store holding a committed fixture.
func seeded(t *testing.T, year int) (*memory.Store, contract.Fixture) {
	t.Helper()
	store := memory.NewStore()
	fx := contract.NewFixture(year)
	if err := contract.Apply(context.Background(), store, fx.Events()...); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store, fx
}

func committed(t *testing.T, ds domain.DataSource) domain.Repositories {
	t.Helper()
	return ds.Repositories(eventbus.New())
}

type logLine struct {
	level string
	msg   string
}

type captureLogger struct {
	lines []logLine
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.lines = append(c.lines, logLine{"debug", msg}) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.lines = append(c.lines, logLine{"info", msg}) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.lines = append(c.lines, logLine{"warn", msg}) }
func (c *captureLogger) Error(msg string, _ ...any) { c.lines = append(c.lines, logLine{"error", msg}) }

func (c *captureLogger) has(level, msg string) bool {
	for _, l := range c.lines {
		if l.level == level && l.msg == msg {
			return true
		}
	}
	return false
}

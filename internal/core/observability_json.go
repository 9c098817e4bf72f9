package core

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// JSONTraceEntry is one finished span as written by JSONTracer.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTracer writes a JSON line per finished span and retains every entry.
type JSONTracer struct {
	mu      sync.Mutex
	w       io.Writer
	entries []JSONTraceEntry
}

// NewJSONTracer writes spans to w. With a nil writer spans are only retained.
func NewJSONTracer(w io.Writer) *JSONTracer {
	return &JSONTracer{w: w}
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	started := time.Now().UTC()
	return ctx, spanFunc(func(err error) { t.finish(operation, started, err) })
}

// Entries returns a copy of the finished spans in end order.
func (t *JSONTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

func (t *JSONTracer) finish(operation string, started time.Time, err error) {
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		Operation:  operation,
		Status:     "success",
		DurationMS: float64(ended.Sub(started)) / float64(time.Millisecond),
		StartedAt:  started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	if t.w == nil {
		return
	}
	if line, merr := json.Marshal(entry); merr == nil {
		_, _ = t.w.Write(append(line, '\n'))
	}
}

type spanFunc func(err error)

func (f spanFunc) End(err error) { f(err) }

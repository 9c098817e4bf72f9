package core

import (
	"context"
	"expvar"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

var expvarSeq atomic.Uint64

// ExpvarMetricsRecorder keeps its counters in an expvar.Map published under
// its name, with three children:
//
//	durations_ms  operation -> total milliseconds
//	results       "operation:status" -> count
//	events        event type -> committed count
type ExpvarMetricsRecorder struct {
	name      string
	root      *expvar.Map
	durations *expvar.Map
	results   *expvar.Map
	events    *expvar.Map
}

// ExpvarMetricsSnapshot is a point-in-time copy of an ExpvarMetricsRecorder.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64
	Results     map[string]map[string]int64
	Events      map[string]int64
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated gridrank_metrics_N name when name is empty. expvar names are
// process-global, so a name may only be used once.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("gridrank_metrics_%d", expvarSeq.Add(1))
	}
	r := &ExpvarMetricsRecorder{
		name:      name,
		root:      new(expvar.Map).Init(),
		durations: new(expvar.Map).Init(),
		results:   new(expvar.Map).Init(),
		events:    new(expvar.Map).Init(),
	}
	r.root.Set("durations_ms", r.durations)
	r.root.Set("results", r.results)
	r.root.Set("events", r.events)
	expvar.Publish(name, r.root)
	return r
}

// Name is the expvar name the recorder is published under.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// String renders the published map as JSON.
func (r *ExpvarMetricsRecorder) String() string { return r.root.String() }

// Observe adds the duration and counts the outcome. Unnamed operations are
// ignored.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.AddFloat(operation, float64(duration)/float64(time.Millisecond))
	r.results.Add(operation+":"+status, 1)
}

// ObserveEvent counts one committed event.
func (r *ExpvarMetricsRecorder) ObserveEvent(_ context.Context, eventType string) {
	r.events.Add(eventType, 1)
}

// Snapshot copies the current counters.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	snap := ExpvarMetricsSnapshot{
		DurationsMS: make(map[string]float64),
		Results:     make(map[string]map[string]int64),
		Events:      make(map[string]int64),
	}
	r.durations.Do(func(kv expvar.KeyValue) {
		snap.DurationsMS[kv.Key] = kv.Value.(*expvar.Float).Value()
	})
	r.results.Do(func(kv expvar.KeyValue) {
		i := strings.LastIndex(kv.Key, ":")
		op, status := kv.Key[:i], kv.Key[i+1:]
		if snap.Results[op] == nil {
			snap.Results[op] = make(map[string]int64, 2)
		}
		snap.Results[op][status] = kv.Value.(*expvar.Int).Value()
	})
	r.events.Do(func(kv expvar.KeyValue) {
		snap.Events[kv.Key] = kv.Value.(*expvar.Int).Value()
	})
	return snap
}

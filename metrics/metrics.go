// Package metrics provides lightweight metrics primitives for the ledger
// shell. Counter and Gauge use atomic operations for lock-free concurrent
// access; a Registry bridges them to a real Prometheus collector so the
// process exposes a standard /metrics endpoint.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Counter is a monotonically incrementing counter.
type Counter struct {
	name  string
	value atomic.Int64
}

// NewCounter returns a new Counter with the given name.
func NewCounter(name string) *Counter { return &Counter{name: name} }

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by n. Negative values are ignored because
// counters are monotonically increasing.
func (c *Counter) Add(n int64) {
	if n > 0 {
		c.value.Add(n)
	}
}

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Name returns the metric name.
func (c *Counter) Name() string { return c.name }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	value atomic.Int64
}

// NewGauge returns a new Gauge with the given name.
func NewGauge(name string) *Gauge { return &Gauge{name: name} }

// Set assigns the gauge's value.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Add adjusts the gauge's value by delta (may be negative).
func (g *Gauge) Add(delta int64) { g.value.Add(delta) }

// Value returns the current gauge value.
func (g *Gauge) Value() int64 { return g.value.Load() }

// Name returns the metric name.
func (g *Gauge) Name() string { return g.name }

// Registry is a process-wide collection of named counters and gauges.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
	}
}

// Counter returns the named counter, creating it if absent.
func (r *Registry) Counter(name string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := NewCounter(name)
	r.counters[name] = c
	return c
}

// Gauge returns the named gauge, creating it if absent.
func (r *Registry) Gauge(name string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := NewGauge(name)
	r.gauges[name] = g
	return g
}

// Snapshot returns a point-in-time copy of all counter and gauge values,
// keyed by metric name. Used by the Prometheus bridge in exporter.go.
func (r *Registry) Snapshot() (counters map[string]int64, gauges map[string]int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counters = make(map[string]int64, len(r.counters))
	for name, c := range r.counters {
		counters[name] = c.Value()
	}
	gauges = make(map[string]int64, len(r.gauges))
	for name, g := range r.gauges {
		gauges[name] = g.Value()
	}
	return counters, gauges
}

// Package loadavg implements the time-decayed weighted moving average used
// to gate the recompilation driver's admission control (spec.md §4.C).
package loadavg

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/runtimelab/jitcore/internal/ports"
)

// DefaultCapacity is the default ring buffer size (spec.md §4.C: "default
// N = 256").
const DefaultCapacity = 256

type sample struct {
	value   int64
	atMilli int64
}

// WMA is a fixed-capacity circular buffer of time-decayed samples. Safe for
// single-producer use without external synchronization; Sample calls from
// multiple producers must be serialized by the caller (spec.md §4.C), so the
// buffer itself uses no lock beyond guarding Value's read against a
// concurrent Sample.
type WMA struct {
	clock ports.Clock

	mu     sync.RWMutex
	buf    []sample
	next   int
	filled int
}

// New creates a WMA with the given capacity (DefaultCapacity if cap <= 0),
// each slot starting uninitialized (marker < 0, per spec.md §4.C).
func New(clock ports.Clock, capacity int) *WMA {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	buf := make([]sample, capacity)
	for i := range buf {
		buf[i].value = -1
	}
	return &WMA{clock: clock, buf: buf}
}

// Sample records x, a non-negative observation, at the current monotonic
// millisecond clock.
func (w *WMA) Sample(x int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf[w.next] = sample{value: x, atMilli: w.clock.NowMillis()}
	w.next = (w.next + 1) % len(w.buf)
	if w.filled < len(w.buf) {
		w.filled++
	}
}

// Value returns the average of sample_i / max(1, seconds_since_i) over
// initialized slots, ignoring uninitialized (marker < 0) slots. Returns 0 if
// no slot has ever been sampled.
func (w *WMA) Value() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	now := w.clock.NowMillis()
	var sum float64
	var n int
	for _, s := range w.buf {
		if s.value < 0 {
			continue
		}
		secondsSince := float64(now-s.atMilli) / 1000.0
		if secondsSince < 1 {
			secondsSince = 1
		}
		sum += float64(s.value) / secondsSince
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// RegisterGauge wires this WMA's decayed value into an otel observable
// gauge, for dashboards watching recompilation back-pressure.
func (w *WMA) RegisterGauge(m metric.Meter, name string) (metric.Registration, error) {
	gauge, err := m.Float64ObservableGauge(name,
		metric.WithDescription("time-decayed load average gating recompilation admission"))
	if err != nil {
		return nil, err
	}
	return m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(gauge, w.Value())
		return nil
	}, gauge)
}

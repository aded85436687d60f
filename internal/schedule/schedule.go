// Package schedule implements the archived recompilation schedule: an
// ordered list of methods plus parallel per-slot done/claim bits
// (spec.md §4.E).
package schedule

import (
	"sync/atomic"

	"github.com/runtimelab/jitcore/internal/trainingdata"
)

// Schedule is read-only at runtime except for its parallel atomic-bool
// arrays, which every recompilation driver step mutates.
type Schedule struct {
	methods []*trainingdata.Method
	done    []atomic.Bool
	claim   []atomic.Bool
}

// New allocates a schedule over methods, sizing status/claim arrays to
// match (spec.md §4.E's initialize()).
func New(methods []*trainingdata.Method) *Schedule {
	return &Schedule{
		methods: methods,
		done:    make([]atomic.Bool, len(methods)),
		claim:   make([]atomic.Bool, len(methods)),
	}
}

// Len returns the number of slots.
func (s *Schedule) Len() int { return len(s.methods) }

// MethodAt returns the method occupying slot i.
func (s *Schedule) MethodAt(i int) *trainingdata.Method { return s.methods[i] }

// Claim attempts to win exclusive rights to work slot i. CAS-based: at most
// one caller ever observes true for a given slot. Winners must eventually
// call SetStatusAt(i, true).
func (s *Schedule) Claim(i int) bool {
	return s.claim[i].CompareAndSwap(false, true)
}

// StatusAt performs a quiescent read of slot i's done flag.
func (s *Schedule) StatusAt(i int) bool {
	return s.done[i].Load()
}

// SetStatusAt publishes slot i's done flag. A release-store with respect to
// Claim's acquire semantics: a winner's SetStatusAt happens-before any
// later StatusAt observing true.
func (s *Schedule) SetStatusAt(i int, value bool) {
	s.done[i].Store(value)
}

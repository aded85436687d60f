// Package trainingdata implements the TrainingData graph of spec.md §3-4:
// KlassTD/MethodTD/CompileTD records, their dependency edges, and the
// find-or-create construction sequences that keep the graph consistent
// under concurrent JIT activity.
package trainingdata

import (
	"fmt"
	"sync/atomic"

	"github.com/runtimelab/jitcore/internal/key"
	"github.com/runtimelab/jitcore/internal/ports"
	"github.com/runtimelab/jitcore/internal/telemetry"
)

// Graph owns a key.Registry and the monotonic compile-id counter, and is the
// sole construction path for Klass/Method/Compile records — every Make*
// here holds the registry's lock for the whole find-or-create-and-link
// sequence, per spec.md §9's resolution of the CompileTrainingData::make
// locking ambiguity.
type Graph struct {
	registry *key.Registry
	interner *key.Interner
	nextCID  atomic.Uint64
	events   *telemetry.EventStream
}

// NewGraph builds an empty graph backed by reg. events may be nil.
func NewGraph(reg *key.Registry, interner *key.Interner, events *telemetry.EventStream) *Graph {
	return &Graph{registry: reg, interner: interner, events: events}
}

// Registry exposes the backing registry for archive/dump consumers.
func (g *Graph) Registry() *key.Registry { return g.registry }

// conflictPanic enforces spec.md §4.A's "fatal invariant violation" for a
// genuine key collision: two different logical entities hashing to the same
// key, surfaced here as a type mismatch on the record Install returned. A
// same-type collision is the ordinary construction race and is not an error
// — see key.Registry.Install's doc comment.
func conflictPanic(k key.Key, want string, got key.Record) {
	panic(fmt.Sprintf("trainingdata: key %s installed as %T, expected %s — key construction bug", k, got, want))
}

// MakeKlass finds or creates the KTD for k, interning k's symbols so the
// resulting record is archive-stable. class may be nil for a symbolic
// (not-yet-loaded) reference.
func (g *Graph) MakeKlass(k key.Key, class ports.ClassRef) *Klass {
	g.internKey(k)

	var result *Klass
	g.registry.WithLock(func() {
		if existing := g.registry.Find(k); existing != nil {
			kt, ok := existing.(*Klass)
			if !ok {
				conflictPanic(k, "*Klass", existing)
			}
			if class != nil {
				kt.Attach(class)
			}
			result = kt
			return
		}
		kt := NewKlass(k, class)
		installed := g.registry.Install(kt)
		if installed == nil {
			// Snapshot in progress: the caller observes a transient klass
			// that is not (yet) published in the registry.
			result = kt
			return
		}
		got, ok := installed.(*Klass)
		if !ok {
			conflictPanic(k, "*Klass", installed)
		}
		result = got
	})
	g.notice("klass.make", k)
	return result
}

// MakeMethod finds or creates the MTD for k, attaching it to its holder
// class's KTD (creating that KTD if needed).
func (g *Graph) MakeMethod(k key.Key, methodRef ports.MethodRef) *Method {
	g.internKey(k)
	holderKey := k.HolderKey()

	var holderClass ports.ClassRef
	if methodRef != nil {
		holderClass = methodRef.HolderClass()
	}
	klass := g.MakeKlass(holderKey, holderClass)

	var result *Method
	g.registry.WithLock(func() {
		if existing := g.registry.Find(k); existing != nil {
			m, ok := existing.(*Method)
			if !ok {
				conflictPanic(k, "*Method", existing)
			}
			if methodRef != nil {
				m.Attach(methodRef)
			}
			result = m
			return
		}
		m := NewMethod(k, klass, methodRef)
		installed := g.registry.Install(m)
		if installed == nil {
			result = m
			return
		}
		got, ok := installed.(*Method)
		if !ok {
			conflictPanic(k, "*Method", installed)
		}
		result = got
	})
	g.notice("method.make", k)
	return result
}

// MakeCompile allocates a new CTD for method at level, wires its init-deps
// against initDeps (symmetrically on both the Compile and each Klass, per
// spec.md §3's edge-duality invariant), and links it into method's compile
// list — superseding a prior top-level compile at the same level if one
// exists. The whole sequence runs under the registry lock, per spec.md §9.
func (g *Graph) MakeCompile(method *Method, level int, initDeps []*Klass) *Compile {
	var c *Compile
	g.registry.WithLock(func() {
		id := g.nextCID.Add(1)
		c = NewCompile(method, level, id)
		for _, klass := range initDeps {
			c.AddInitDep(klass)
		}
		method.NoticeCompilation(level, false)
		method.linkCompileLocked(c, level)
	})
	g.notice("compile.make", method.Key())
	return c
}

// NoticeJITObservation finds the Klass for k, creating it when absent and
// class is non-nil, resolves a symbolic Klass to its live class, and —
// CTD::notice_jit_observation in spec.md §4.B — records compile as depending
// on that class's initialization when the class is already initialized at
// observation time. compile may be nil when there is no in-flight compile
// context (the call then only resolves the Klass). When k is absent and class
// is nil, nothing is created. The edge add is idempotent (Compile.AddInitDep),
// so repeated observations of the same class mid-compile are safe; this does
// NOT fire Klass.NoticeFullyInitialized, which is a distinct, call-once
// event driven by NoticeClassFullyInitialized below.
func (g *Graph) NoticeJITObservation(compile *Compile, k key.Key, class ports.ClassRef) {
	g.internKey(k)
	g.registry.WithLock(func() {
		existing := g.registry.Find(k)
		if existing == nil {
			if class == nil {
				return
			}
			kt := NewKlass(k, class)
			existing = kt
			if installed := g.registry.Install(kt); installed != nil {
				existing = installed
			}
		}
		kt, ok := existing.(*Klass)
		if !ok {
			conflictPanic(k, "*Klass", existing)
		}
		if class != nil {
			kt.Attach(class)
		}
		if compile != nil && class != nil && class.IsInitialized() {
			compile.AddInitDep(kt)
		}
	})
}

// NoticeClassFullyInitialized reports that the class keyed by k has just
// completed static initialization, driving Klass.NoticeFullyInitialized's
// one-time decrement of every dependent compile's init_deps_left. The
// runtime caller is responsible for invoking this exactly once per class —
// this method does not itself guard against repeated calls.
func (g *Graph) NoticeClassFullyInitialized(k key.Key) {
	var kt *Klass
	g.registry.WithLock(func() {
		existing := g.registry.Find(k)
		if existing == nil {
			return
		}
		kd, ok := existing.(*Klass)
		if !ok {
			conflictPanic(k, "*Klass", existing)
		}
		kt = kd
	})
	if kt != nil {
		kt.NoticeFullyInitialized()
	}
}

// NoticeInlinedMethod records that a method was observed inlined into
// another compile, without creating a standalone CTD for it (spec.md §4.B
// distinguishes inlined observations from top-level compiles).
func (g *Graph) NoticeInlinedMethod(method *Method, level int) {
	method.NoticeCompilation(level, true)
}

func (g *Graph) internKey(k key.Key) {
	for _, sym := range k.Symbols() {
		g.interner.Intern(sym)
	}
}

func (g *Graph) notice(kind string, k key.Key) {
	if g.events == nil {
		return
	}
	g.events.Publish(telemetry.LifecycleEvent{Kind: kind, Key: k.String()})
}

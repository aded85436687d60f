package trainingdata

import (
	"sync"

	"github.com/runtimelab/jitcore/internal/key"
	"github.com/runtimelab/jitcore/internal/ports"
)

// initState mirrors the class states spec.md §4.B says a Klass observes via
// its holder: allocated | loaded | linked | being_initialized |
// fully_initialized | error.
type initState uint8

const (
	stateAllocated initState = iota
	stateLoaded
	stateLinked
	stateBeingInitialized
	stateFullyInitialized
	stateError
)

// Klass is KlassTrainingData (KTD): facts about one class (spec.md §3).
type Klass struct {
	k key.Key

	mu      sync.Mutex
	class   ports.ClassRef // nullable until the class is loaded
	strong  StrongHandle   // keeps the class alive while this KTD is retained
	state   initState
	initDeps []*Klass   // class-to-class ordering metadata (§3); not exercised by init_deps_left
	compDeps []*Compile // CTDs whose init_deps_left counts this class
}

// NewKlass builds a KTD for a (possibly not-yet-loaded) class key. class may
// be nil — the record is then symbolic until a later NoticeJITObservation or
// explicit Attach resolves it.
func NewKlass(k key.Key, class ports.ClassRef) *Klass {
	kt := &Klass{k: k, class: class}
	if class != nil {
		kt.strong = NewStrongHandle(class)
		if class.IsInitialized() {
			kt.state = stateFullyInitialized
		} else {
			kt.state = stateLoaded
		}
	}
	return kt
}

// Key implements key.Record.
func (kt *Klass) Key() key.Key {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	return kt.k
}

// HasHolder reports whether this KTD has a resolved live class back-reference.
func (kt *Klass) HasHolder() bool {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	return kt.class != nil
}

// Initialized reports whether the held class has completed initialization.
// A symbolic (no-holder) KTD is never considered initialized.
func (kt *Klass) Initialized() bool {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	return kt.class != nil && kt.state == stateFullyInitialized
}

// Attach resolves a previously symbolic KTD to a live class, e.g. when the
// class loads after the KTD was first referenced by a CTD's init_deps.
func (kt *Klass) Attach(class ports.ClassRef) {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	if kt.class != nil || class == nil {
		return
	}
	kt.class = class
	kt.strong = NewStrongHandle(class)
	if class.IsInitialized() {
		kt.state = stateFullyInitialized
	} else {
		kt.state = stateLoaded
	}
}

// addCompDepLocked records that ctd depends on this class's initialization.
// The caller (trainingdata.Graph, under the registry lock) is responsible
// for the symmetric CTD-side edge; see spec.md §3's edge-duality invariant.
// Returns true if the class was not yet initialized at the moment of adding
// (the caller uses this to decide whether to bump init_deps_left).
func (kt *Klass) addCompDepLocked(c *Compile) (wasUninitialized bool) {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	for _, existing := range kt.compDeps {
		if existing == c {
			return kt.state != stateFullyInitialized
		}
	}
	kt.compDeps = append(kt.compDeps, c)
	return kt.state != stateFullyInitialized
}

// removeCompDepLocked removes ctd from this class's comp_deps, used when a
// superseded top-level compile clears its init-deps (spec.md §3, §4.B).
func (kt *Klass) removeCompDepLocked(c *Compile) {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	for i, existing := range kt.compDeps {
		if existing == c {
			kt.compDeps = append(kt.compDeps[:i], kt.compDeps[i+1:]...)
			return
		}
	}
}

// CompDeps returns a snapshot of the compiles depending on this class's
// initialization state. Exposed for verification (spec.md §8 edge-duality
// property) and debug iteration.
func (kt *Klass) CompDeps() []*Compile {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	out := make([]*Compile, len(kt.compDeps))
	copy(out, kt.compDeps)
	return out
}

// NoticeFullyInitialized transitions this KTD to fully-initialized and
// decrements init_deps_left on every CTD in comp_deps exactly once,
// satisfying spec.md §4.B's dependency-accounting algorithm. Must be called
// exactly once per class, when its initialization completes.
func (kt *Klass) NoticeFullyInitialized() {
	kt.mu.Lock()
	kt.state = stateFullyInitialized
	deps := make([]*Compile, len(kt.compDeps))
	copy(deps, kt.compDeps)
	kt.mu.Unlock()

	for _, c := range deps {
		c.decInitDepsLeft()
	}
}

// AddClassInitDep records class-to-class ordering metadata (spec.md §3):
// other must initialize before kt. This is carried for archive completeness
// (Prepare walks it when flattening edges) but is not read by any
// init_deps_left accounting — that invariant only concerns CTD.init_deps.
func (kt *Klass) AddClassInitDep(other *Klass) {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	for _, existing := range kt.initDeps {
		if existing == other {
			return
		}
	}
	kt.initDeps = append(kt.initDeps, other)
}

// ClassInitDeps returns the class-to-class ordering metadata.
func (kt *Klass) ClassInitDeps() []*Klass {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	out := make([]*Klass, len(kt.initDeps))
	copy(out, kt.initDeps)
	return out
}

// Prepare flattens this KTD's edges for the dump pipeline (spec.md §4.G).
// Idempotent: calling it more than once produces the same EdgeSnapshot.
func (kt *Klass) Prepare() EdgeSnapshot {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	snap := EdgeSnapshot{HasHolder: kt.class != nil}
	for _, c := range kt.compDeps {
		snap.CompDeps = append(snap.CompDeps, c.Ref())
	}
	for _, other := range kt.initDeps {
		snap.ClassInitDeps = append(snap.ClassInitDeps, other.k)
	}
	return snap
}

// CompileRef identifies a CTD for serialization purposes. CTDs are not
// independently keyed in the registry (only classes and methods are,
// spec.md §4.A) — a compile is addressed by its owning method's key plus
// its monotonic compile id.
type CompileRef struct {
	Method key.Key
	ID     uint64
}

// EdgeSnapshot is the serialization-ready flattening of a KTD's edges.
type EdgeSnapshot struct {
	HasHolder     bool
	CompDeps      []CompileRef
	ClassInitDeps []key.Key
}

// Retract empties this KTD's key slot, marking it installed-but-retracted
// per spec.md §3. Used by the archive cleanup pass for classes excluded
// from the dump (not loaded, or blacklisted).
func (kt *Klass) Retract() {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	kt.k = key.Key{}
	kt.class = nil
}

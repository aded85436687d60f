package trainingdata

import (
	"sync"
	"sync/atomic"
)

// compileState is the CTD lifecycle spec.md §4.C describes:
// allocated -> queued -> started -> ended (success or failure).
type compileState uint8

const (
	compileAllocated compileState = iota
	compileQueued
	compileStarted
	compileEnded
)

// Compile is CompileTrainingData (CTD): one compilation attempt of a method
// at a given tier level (spec.md §3).
type Compile struct {
	method    *Method
	level     int
	compileID uint64

	initDepsLeft atomic.Int64 // spec.md §4.B's init_deps_left counter

	mu         sync.Mutex
	state      compileState
	initDeps   []*Klass // classes this compile depends on initializing first
	nativeSize int      // -1 until known
	queuedAt   int64
	startedAt  int64
	endedAt    int64
	succeeded  bool

	next *Compile // singly linked list splice point, owned by Method

	memo map[string]any // arbitrary per-compile memoization slots (spec.md §3)
}

// NewCompile allocates a CTD for method at level, assigning it compileID.
// The caller (Graph.MakeCompile) is responsible for picking a
// process-monotonic compileID and for linking it into method's list under
// the registry lock.
func NewCompile(method *Method, level int, compileID uint64) *Compile {
	c := &Compile{
		method:     method,
		level:      level,
		compileID:  compileID,
		nativeSize: -1,
	}
	return c
}

// Method returns the owning MTD.
func (c *Compile) Method() *Method { return c.method }

// Level returns the tier level this compile targets.
func (c *Compile) Level() int { return c.level }

// CompileID returns this compile's process-monotonic id.
func (c *Compile) CompileID() uint64 { return c.compileID }

// Ref identifies this CTD for serialization, since CTDs have no independent
// registry key (spec.md §4.A) — see CompileRef in klass.go.
func (c *Compile) Ref() CompileRef {
	return CompileRef{Method: c.method.Key(), ID: c.compileID}
}

// AddInitDep records that this compile cannot safely be assumed
// training-complete until klass finishes initializing, and bumps
// init_deps_left if klass was not yet initialized at the time of linking.
// It also records the reverse edge through klass.addCompDepLocked(c),
// preserving the edge-duality invariant of spec.md §3:
// ctd ∈ klass.comp_deps ⇔ klass ∈ ctd.init_deps. Callers (Graph.MakeCompile,
// Graph.NoticeJITObservation) hold the registry lock around it.
func (c *Compile) AddInitDep(klass *Klass) {
	c.mu.Lock()
	for _, existing := range c.initDeps {
		if existing == klass {
			c.mu.Unlock()
			return
		}
	}
	c.initDeps = append(c.initDeps, klass)
	c.mu.Unlock()

	if klass.addCompDepLocked(c) {
		c.initDepsLeft.Add(1)
	}
}

// InitDeps returns a snapshot of the classes this compile depends on.
func (c *Compile) InitDeps() []*Klass {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Klass, len(c.initDeps))
	copy(out, c.initDeps)
	return out
}

// InitDepsLeft returns the current outstanding dependency count. Zero means
// every class this compile depends on has finished initializing.
func (c *Compile) InitDepsLeft() int64 {
	return c.initDepsLeft.Load()
}

// decInitDepsLeft is called by Klass.NoticeFullyInitialized exactly once per
// dependency, when that class finishes initializing.
func (c *Compile) decInitDepsLeft() {
	c.initDepsLeft.Add(-1)
}

// ComputeInitDepsLeft recomputes the dependency count by walking init_deps
// directly, rather than trusting the running counter, for verification
// (spec.md §4.B). Only deps with a live holder are counted. With
// countInitialized, every live-holder dep is counted instead of only the
// not-yet-initialized ones. Archive restore does not call it, since no CTD is
// carried across a dump.
func (c *Compile) ComputeInitDepsLeft(countInitialized bool) int {
	c.mu.Lock()
	deps := make([]*Klass, len(c.initDeps))
	copy(deps, c.initDeps)
	c.mu.Unlock()

	n := 0
	for _, k := range deps {
		if !k.HasHolder() {
			continue
		}
		if countInitialized || !k.Initialized() {
			n++
		}
	}
	return n
}

// clearInitDeps unwinds every dependency edge this compile holds, used when
// a compile is superseded as the top-level slot for its level (spec.md §3,
// §4.B "supersede") — a superseded compile is no longer on the path that
// needs its init-deps tracked, so both sides of each edge are dropped.
func (c *Compile) clearInitDeps() {
	c.mu.Lock()
	deps := make([]*Klass, len(c.initDeps))
	copy(deps, c.initDeps)
	c.initDeps = nil
	c.mu.Unlock()

	for _, klass := range deps {
		klass.removeCompDepLocked(c)
	}
	c.initDepsLeft.Store(0)
}

// MarkQueued, MarkStarted and MarkEnded advance the compile's lifecycle and
// record monotonic timestamps (millis, from a ports.Clock). spec.md §8
// requires queued <= started <= ended once all three are set.
func (c *Compile) MarkQueued(nowMillis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != compileAllocated {
		return
	}
	c.state = compileQueued
	c.queuedAt = nowMillis
}

func (c *Compile) MarkStarted(nowMillis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != compileQueued {
		return
	}
	c.state = compileStarted
	c.startedAt = nowMillis
}

func (c *Compile) MarkEnded(nowMillis int64, succeeded bool, nativeSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != compileStarted {
		return
	}
	c.state = compileEnded
	c.endedAt = nowMillis
	c.succeeded = succeeded
	if succeeded {
		c.nativeSize = nativeSize
	}
}

// Succeeded reports whether a completed compile produced native code.
func (c *Compile) Succeeded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == compileEnded && c.succeeded
}

// NativeSize returns the compiled code size, or -1 if not yet known.
func (c *Compile) NativeSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nativeSize
}

// Times returns the queued/started/ended millis recorded so far (zero for
// any stage not yet reached).
func (c *Compile) Times() (queued, started, ended int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queuedAt, c.startedAt, c.endedAt
}

// Memo gets or lazily initializes a memoization slot keyed by name, for
// arbitrary per-compile ephemeral state that doesn't warrant its own field.
func (c *Compile) Memo(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memo == nil {
		return nil, false
	}
	v, ok := c.memo[name]
	return v, ok
}

// SetMemo stores a memoization slot.
func (c *Compile) SetMemo(name string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memo == nil {
		c.memo = make(map[string]any)
	}
	c.memo[name] = v
}

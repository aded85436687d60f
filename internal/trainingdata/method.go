package trainingdata

import (
	"sync"

	"github.com/runtimelab/jitcore/internal/key"
	"github.com/runtimelab/jitcore/internal/ports"
)

// MaxTierLevel bounds the per-tier "last top-level compile" slots (spec.md
// §3: "one last top-level compile slot per tier level (1..N)"). Tier 0 is
// reserved for interpreted/no-compile and is never a slot index.
const MaxTierLevel = 5

// Method is MethodTrainingData (MTD): facts about one method (spec.md §3).
type Method struct {
	k key.Key

	mu           sync.Mutex
	klass        *Klass
	methodRef    ports.MethodRef // nullable
	compiles     *Compile        // head of the singly linked list, newest first
	lastToplevel [MaxTierLevel + 1]*Compile
	levelsSeen   uint32 // bitmask, bit i set iff level i was ever observed
	everInlined  bool
	everToplevel bool
}

// NewMethod builds an MTD for a method key, owned by klass.
func NewMethod(k key.Key, klass *Klass, methodRef ports.MethodRef) *Method {
	return &Method{k: k, klass: klass, methodRef: methodRef}
}

// Key implements key.Record.
func (m *Method) Key() key.Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.k
}

// Klass returns this method's owning KTD.
func (m *Method) Klass() *Klass { return m.klass }

// MethodRef returns the live back-reference, or nil if symbolic.
func (m *Method) MethodRef() ports.MethodRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.methodRef
}

// HasHolder reports whether this MTD has a resolved live method back-reference.
func (m *Method) HasHolder() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.methodRef != nil
}

// Attach resolves a previously symbolic MTD to a live method.
func (m *Method) Attach(methodRef ports.MethodRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.methodRef == nil {
		m.methodRef = methodRef
	}
}

// NoticeCompilation records that this method was observed at level, either
// as a top-level compile or inlined into another compile (spec.md §4.B).
func (m *Method) NoticeCompilation(level int, inlined bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if level >= 0 && level <= 31 {
		m.levelsSeen |= 1 << uint(level)
	}
	if inlined {
		m.everInlined = true
	} else {
		m.everToplevel = true
	}
}

// LevelsSeen returns the bitmask of tier levels ever observed for this method.
func (m *Method) LevelsSeen() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levelsSeen
}

// EverInlined and EverToplevel report the method's compile-kind history.
func (m *Method) EverInlined() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.everInlined
}

func (m *Method) EverToplevel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.everToplevel
}

// RestoreObservations re-applies archived levelsSeen/everInlined/everToplevel
// facts to a freshly created MTD during archive restore (spec.md §4.G):
// these are structural facts about the method, not compile-specific
// ephemeral state, so unlike CTDs they do survive a round trip.
func (m *Method) RestoreObservations(levelsSeen uint32, everInlined, everToplevel bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levelsSeen = levelsSeen
	m.everInlined = everInlined
	m.everToplevel = everToplevel
}

// Compiles returns the head of the singly linked compile list (newest
// first), or nil if none.
func (m *Method) Compiles() *Compile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compiles
}

// LastToplevel returns the current top-level compile slot for level, or nil.
func (m *Method) LastToplevel(level int) *Compile {
	if level < 1 || level > MaxTierLevel {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastToplevel[level]
}

// linkCompileLocked splices c at the head of the compile list and, if c's
// compile id is greater than the current level slot's, supersedes the
// previous top-level compile, clearing its init-deps on both sides (spec.md
// §3, §4.B "supersede"). Caller must hold the owning Graph's registry lock
// for the whole find-or-create-and-link sequence (spec.md §9's resolution of
// CompileTrainingData::make's locking ambiguity).
func (m *Method) linkCompileLocked(c *Compile, level int) {
	m.mu.Lock()
	c.next = m.compiles
	m.compiles = c

	var superseded *Compile
	if level >= 1 && level <= MaxTierLevel {
		prev := m.lastToplevel[level]
		if prev == nil || c.compileID > prev.compileID {
			m.lastToplevel[level] = c
			superseded = prev
		}
	}
	m.mu.Unlock()

	if superseded != nil {
		superseded.clearInitDeps()
	}
}

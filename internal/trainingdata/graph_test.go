package trainingdata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/runtimelab/jitcore/internal/key"
)

func newTestGraph() *Graph {
	return NewGraph(key.NewRegistry(nil), key.NewInterner(), nil)
}

func TestMakeKlassIdentity(t *testing.T) {
	g := newTestGraph()
	k := key.NewClassKey("com/acme/Foo", "bootstrap")

	a := g.MakeKlass(k, nil)
	b := g.MakeKlass(k, nil)
	require.Same(t, a, b, "MakeKlass must find the existing record, not duplicate it")
}

func TestMakeMethodAttachesHolder(t *testing.T) {
	g := newTestGraph()
	classKey := key.NewClassKey("com/acme/Foo", "bootstrap")
	methodKey := key.NewMethodKey(classKey, "bar", "()V")

	m := g.MakeMethod(methodKey, nil)
	require.NotNil(t, m.Klass())
	require.Equal(t, classKey, m.Klass().Key())
}

// TestDependencyCounterInvariant is scenario S3: a compile with two
// init-deps has init_deps_left == 2 until each class notices full
// initialization, decrementing it to zero.
func TestDependencyCounterInvariant(t *testing.T) {
	g := newTestGraph()
	classKey := key.NewClassKey("com/acme/Foo", "bootstrap")
	methodKey := key.NewMethodKey(classKey, "bar", "()V")
	m := g.MakeMethod(methodKey, nil)

	depA := g.MakeKlass(key.NewClassKey("com/acme/A", "bootstrap"), nil)
	depB := g.MakeKlass(key.NewClassKey("com/acme/B", "bootstrap"), nil)

	c := g.MakeCompile(m, 4, []*Klass{depA, depB})
	require.EqualValues(t, 2, c.InitDepsLeft())

	// Edge duality: both sides must agree.
	require.Contains(t, depA.CompDeps(), c)
	require.Contains(t, depB.CompDeps(), c)

	depA.NoticeFullyInitialized()
	require.EqualValues(t, 1, c.InitDepsLeft())

	depB.NoticeFullyInitialized()
	require.EqualValues(t, 0, c.InitDepsLeft())
}

// TestSupersedeClearsInitDeps is scenario S4: a second top-level compile at
// the same tier level supersedes the first, and the superseded compile's
// init-dep edges are unwound on both sides.
func TestSupersedeClearsInitDeps(t *testing.T) {
	g := newTestGraph()
	classKey := key.NewClassKey("com/acme/Foo", "bootstrap")
	methodKey := key.NewMethodKey(classKey, "bar", "()V")
	m := g.MakeMethod(methodKey, nil)

	dep := g.MakeKlass(key.NewClassKey("com/acme/Dep", "bootstrap"), nil)

	first := g.MakeCompile(m, 4, []*Klass{dep})
	require.EqualValues(t, 1, first.InitDepsLeft())
	require.Same(t, first, m.LastToplevel(4))

	second := g.MakeCompile(m, 4, nil)
	require.Same(t, second, m.LastToplevel(4))

	require.EqualValues(t, 0, first.InitDepsLeft())
	require.Empty(t, first.InitDeps())
	require.NotContains(t, dep.CompDeps(), first)

	// The compile list links newest-first; both compiles remain reachable.
	require.Same(t, second, m.Compiles())
	require.Same(t, first, m.Compiles().next)
}

func TestNoticeJITObservationInitializesExistingKlass(t *testing.T) {
	g := newTestGraph()
	k := key.NewClassKey("com/acme/Foo", "bootstrap")
	kt := g.MakeKlass(k, nil)
	require.False(t, kt.Initialized())

	cls := &fakeClass{name: "com/acme/Foo", loader: "bootstrap", initialized: true}
	g.NoticeJITObservation(nil, k, cls)

	require.True(t, kt.HasHolder())
	require.True(t, kt.Initialized())
}

// TestNoticeJITObservationAddsInitDepIdempotently is scenario P3's repeated-
// observation case: the same in-flight compile observing an already-
// initialized class more than once must not double-decrement init_deps_left
// for any other dependency on that compile.
func TestNoticeJITObservationAddsInitDepIdempotently(t *testing.T) {
	g := newTestGraph()
	classKey := key.NewClassKey("com/acme/Foo", "bootstrap")
	methodKey := key.NewMethodKey(classKey, "bar", "()V")
	m := g.MakeMethod(methodKey, nil)

	dep := g.MakeKlass(key.NewClassKey("com/acme/Dep", "bootstrap"), nil)
	c := g.MakeCompile(m, 4, []*Klass{dep})
	require.EqualValues(t, 1, c.InitDepsLeft())
	dep.NoticeFullyInitialized()
	require.EqualValues(t, 0, c.InitDepsLeft())

	k := key.NewClassKey("com/acme/Observed", "bootstrap")
	kt := g.MakeKlass(k, nil)
	cls := &fakeClass{name: "com/acme/Observed", loader: "bootstrap", initialized: true}

	g.NoticeJITObservation(c, k, cls)
	require.Contains(t, kt.CompDeps(), c)
	require.EqualValues(t, 0, c.InitDepsLeft(), "attaching an already-initialized class must not add to init_deps_left")

	// A repeated observation of the same already-initialized class from the
	// same compile must not re-decrement any other dependency's counter.
	g.NoticeJITObservation(c, k, cls)
	g.NoticeJITObservation(c, k, cls)
	require.EqualValues(t, 0, c.InitDepsLeft())
}

// TestMakeCompileRecordsTopLevelCompilation confirms a real top-level
// compile (the common case, as opposed to NoticeInlinedMethod's inlined
// path) sets levelsSeen/everToplevel on the compiled method.
func TestMakeCompileRecordsTopLevelCompilation(t *testing.T) {
	g := newTestGraph()
	classKey := key.NewClassKey("com/acme/Foo", "bootstrap")
	methodKey := key.NewMethodKey(classKey, "bar", "()V")
	m := g.MakeMethod(methodKey, nil)
	require.False(t, m.EverToplevel())
	require.Zero(t, m.LevelsSeen())

	g.MakeCompile(m, 4, nil)

	require.True(t, m.EverToplevel())
	require.False(t, m.EverInlined())
	require.Equal(t, uint32(1<<4), m.LevelsSeen())
}

func TestNoticeInlinedMethodDoesNotCreateCompile(t *testing.T) {
	g := newTestGraph()
	classKey := key.NewClassKey("com/acme/Foo", "bootstrap")
	methodKey := key.NewMethodKey(classKey, "bar", "()V")
	m := g.MakeMethod(methodKey, nil)

	g.NoticeInlinedMethod(m, 3)
	require.True(t, m.EverInlined())
	require.False(t, m.EverToplevel())
	require.Nil(t, m.Compiles())
}

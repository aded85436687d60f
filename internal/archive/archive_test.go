package archive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/runtimelab/jitcore/internal/key"
	"github.com/runtimelab/jitcore/internal/ports"
	"github.com/runtimelab/jitcore/internal/schedule"
	"github.com/runtimelab/jitcore/internal/trainingdata"
)

func newGraph() (*key.Registry, *key.Interner, *trainingdata.Graph) {
	reg := key.NewRegistry(nil)
	interner := key.NewInterner()
	return reg, interner, trainingdata.NewGraph(reg, interner, nil)
}

func TestRoundTripPreservesKeysAndEdges(t *testing.T) {
	reg, interner, g := newGraph()

	classKeyA := key.NewClassKey("com/acme/A", "bootstrap")
	classKeyB := key.NewClassKey("com/acme/B", "bootstrap")
	methodKey := key.NewMethodKey(classKeyA, "bar", "()V")

	klassA := g.MakeKlass(classKeyA, nil)
	klassB := g.MakeKlass(classKeyB, nil)
	klassA.AddClassInitDep(klassB)
	method := g.MakeMethod(methodKey, nil)
	g.MakeCompile(method, 3, nil)

	sched := schedule.New([]*trainingdata.Method{method, nil})

	dump := Prepare(reg, interner, sched)

	var buf bytes.Buffer
	require.NoError(t, dump.Write(&buf))

	restored, err := Restore(&buf, interner)
	require.NoError(t, err)

	restoredKlassA, ok := restored.Registry.Find(classKeyA).(*trainingdata.Klass)
	require.True(t, ok)
	require.Equal(t, classKeyA, restoredKlassA.Key())

	deps := restoredKlassA.ClassInitDeps()
	require.Len(t, deps, 1)
	require.Equal(t, classKeyB, deps[0].Key())

	restoredMethod, ok := restored.Registry.Find(methodKey).(*trainingdata.Method)
	require.True(t, ok)
	require.Equal(t, method.LevelsSeen(), restoredMethod.LevelsSeen())
	require.True(t, restoredMethod.EverToplevel())

	require.Equal(t, 2, restored.Schedule.Len())
	require.Same(t, restoredMethod, restored.Schedule.MethodAt(0))
	require.Nil(t, restored.Schedule.MethodAt(1))
}

func TestCDSHashStableAcrossRoundTrip(t *testing.T) {
	reg, interner, g := newGraph()
	classKey := key.NewClassKey("com/acme/Foo", "bootstrap")
	g.MakeKlass(classKey, nil)

	dump := Prepare(reg, interner, nil)
	var buf bytes.Buffer
	require.NoError(t, dump.Write(&buf))

	restored, err := Restore(&buf, interner)
	require.NoError(t, err)

	want, ok := interner.CDSHash(classKey)
	require.True(t, ok)
	got, ok := restored.interner.CDSHash(classKey)
	require.True(t, ok)
	require.Equal(t, want, got)
}

// TestLookupArchivedFiltersSymbolicEntries is scenario S6: a symbolic KTD
// (no live holder) survives the round trip for debug iteration but
// LookupArchived filters it out.
func TestLookupArchivedFiltersSymbolicEntries(t *testing.T) {
	reg, interner, g := newGraph()
	classKey := key.NewClassKey("com/acme/X", "bootstrap")
	g.MakeKlass(classKey, nil) // symbolic: no live holder

	dump := Prepare(reg, interner, nil)
	var buf bytes.Buffer
	require.NoError(t, dump.Write(&buf))

	restored, err := Restore(&buf, interner)
	require.NoError(t, err)

	require.Nil(t, restored.LookupArchived(classKey))

	found := false
	restored.Registry.Each(func(k key.Key, _ key.Record) {
		if k == classKey {
			found = true
		}
	})
	require.True(t, found, "symbolic record must still be present for debug iteration")
}

type fakeMethodRef struct{ name string }

func (f *fakeMethodRef) Name() string               { return f.name }
func (f *fakeMethodRef) Signature() string          { return "()V" }
func (f *fakeMethodRef) HolderClass() ports.ClassRef { return nil }
func (f *fakeMethodRef) HasNativeCode() bool        { return true }
func (f *fakeMethodRef) CodeSize() int              { return 10 }
func (f *fakeMethodRef) IsAOTEntry() bool           { return false }
func (f *fakeMethodRef) TopTierLevel() int          { return 4 }

type fakeProfiler struct {
	order  []ports.MethodRef
	counts map[ports.MethodRef]int
}

func (p *fakeProfiler) SampledMethods() []ports.MethodRef { return p.order }
func (p *fakeProfiler) SampleCount(m ports.MethodRef) int { return p.counts[m] }

func TestPrepareRecompilationScheduleStopsAtFirstZeroWhenTopOnly(t *testing.T) {
	_, _, g := newGraph()
	m1 := g.MakeMethod(key.NewMethodKey(key.NewClassKey("A", "b"), "m1", "()V"), nil)
	m2 := g.MakeMethod(key.NewMethodKey(key.NewClassKey("A", "b"), "m2", "()V"), nil)

	ref1 := &fakeMethodRef{name: "m1"}
	ref2 := &fakeMethodRef{name: "m2"}

	profiler := &fakeProfiler{
		order:  []ports.MethodRef{ref1, ref2},
		counts: map[ports.MethodRef]int{ref1: 5, ref2: 0},
	}
	lookup := map[ports.MethodRef]*trainingdata.Method{ref1: m1, ref2: m2}

	sched := PrepareRecompilationSchedule(profiler, true, func(mref ports.MethodRef) *trainingdata.Method {
		return lookup[mref]
	})
	require.Equal(t, 1, sched.Len())
}

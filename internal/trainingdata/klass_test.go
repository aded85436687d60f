package trainingdata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/runtimelab/jitcore/internal/key"
)

func TestKlassPrepareFlattensEdges(t *testing.T) {
	g := newTestGraph()
	classKey := key.NewClassKey("com/acme/Foo", "bootstrap")
	methodKey := key.NewMethodKey(classKey, "bar", "()V")
	m := g.MakeMethod(methodKey, nil)

	dep := g.MakeKlass(key.NewClassKey("com/acme/Dep", "bootstrap"), nil)
	other := g.MakeKlass(key.NewClassKey("com/acme/Other", "bootstrap"), nil)
	dep.AddClassInitDep(other)

	c := g.MakeCompile(m, 4, []*Klass{dep})

	snap := dep.Prepare()
	require.False(t, snap.HasHolder)
	require.Len(t, snap.CompDeps, 1)
	require.Equal(t, c.Ref(), snap.CompDeps[0])
	require.Equal(t, []key.Key{other.Key()}, snap.ClassInitDeps)
}

func TestKlassRetractClearsKeyAndHolder(t *testing.T) {
	cls := &fakeClass{name: "com/acme/Foo", loader: "bootstrap", initialized: true}
	kt := NewKlass(key.NewClassKey("com/acme/Foo", "bootstrap"), cls)
	require.True(t, kt.HasHolder())

	kt.Retract()
	require.True(t, kt.Key().IsEmpty())
	require.False(t, kt.HasHolder())
}

func TestStrongWeakHandleUpgrade(t *testing.T) {
	cls := &fakeClass{name: "com/acme/Foo", loader: "bootstrap"}
	strong := NewStrongHandle(cls)

	alive := true
	weak := strong.Downgrade(func() bool { return alive })
	require.False(t, weak.IsCleared())

	got, ok := weak.Upgrade()
	require.True(t, ok)
	require.Equal(t, cls, got.Ref())

	alive = false
	require.True(t, weak.IsCleared())
	_, ok = weak.Upgrade()
	require.False(t, ok)
}

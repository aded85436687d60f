package key

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassKeyEquality(t *testing.T) {
	a := NewClassKey("com/acme/Foo", "bootstrap")
	b := NewClassKey("com/acme/Foo", "bootstrap")
	c := NewClassKey("com/acme/Foo", "app")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.False(t, a.IsEmpty())
}

func TestMethodKeyHolder(t *testing.T) {
	holder := NewClassKey("com/acme/Foo", "bootstrap")
	m := NewMethodKey(holder, "bar", "()V")

	require.Equal(t, KindMethod, m.Kind())
	require.Equal(t, holder, m.HolderKey())
}

func TestEmptyKey(t *testing.T) {
	var k Key
	require.True(t, k.IsEmpty())
}

func TestKeyLessTotalOrder(t *testing.T) {
	a := NewClassKey("A", "l")
	b := NewClassKey("B", "l")
	m := NewMethodKey(a, "x", "()V")

	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
	require.True(t, a.Less(m)) // class kind sorts before method kind
}

func TestCDSHashRequiresInternedSymbols(t *testing.T) {
	in := NewInterner()
	k := NewClassKey("com/acme/Foo", "bootstrap")

	_, ok := in.CDSHash(k)
	require.False(t, ok, "hash should fail before symbols are interned")

	in.Intern("com/acme/Foo")
	in.Intern("bootstrap")

	hash, ok := in.CDSHash(k)
	require.True(t, ok)
	require.NotZero(t, hash)
}

func TestCDSHashStableAcrossInterners(t *testing.T) {
	k := NewMethodKey(NewClassKey("com/acme/Foo", "bootstrap"), "bar", "()V")

	in1 := NewInterner()
	in2 := NewInterner()
	for _, in := range []*Interner{in1, in2} {
		in.Intern("com/acme/Foo")
		in.Intern("bootstrap")
		in.Intern("bar")
		in.Intern("()V")
	}

	h1, ok1 := in1.CDSHash(k)
	h2, ok2 := in2.CDSHash(k)
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, h1, h2, "cds_hash must be identical across processes for the same symbols")
}

func TestCDSHashEmptyKeyFails(t *testing.T) {
	in := NewInterner()
	var k Key
	_, ok := in.CDSHash(k)
	require.False(t, ok)
}

package key

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRecord struct {
	k Key
}

func (f *fakeRecord) Key() Key { return f.k }

func TestInstallIfAbsent(t *testing.T) {
	r := NewRegistry(nil)
	k := NewClassKey("com/acme/Foo", "bootstrap")
	rec := &fakeRecord{k: k}

	got := r.Install(rec)
	require.Same(t, rec, got)
	require.Equal(t, 1, r.Len())

	// Reinstalling the same pointer is a no-op that returns the existing record.
	got2 := r.Install(rec)
	require.Same(t, rec, got2)
	require.Equal(t, 1, r.Len())
}

func TestInstallRaceReturnsWinner(t *testing.T) {
	r := NewRegistry(nil)
	k := NewClassKey("com/acme/Foo", "bootstrap")
	a := &fakeRecord{k: k}
	b := &fakeRecord{k: k}

	winner := r.Install(a)
	require.Same(t, a, winner)

	// A racing "loser" candidate with the same key is not a conflict at the
	// Registry layer — it gets told to use the already-installed record.
	loser := r.Install(b)
	require.Same(t, a, loser)
	require.Equal(t, 1, r.Len())
}

func TestInstallEmptyKeyNeverConflicts(t *testing.T) {
	r := NewRegistry(nil)
	var empty Key
	a := &fakeRecord{k: empty}
	b := &fakeRecord{k: empty}

	first := r.Install(a)
	require.Same(t, a, first)
	// Distinct records sharing the empty (retracted) key collapse onto the
	// first one installed, same as any other key — retracted records are
	// not expected to be distinguished by identity.
	second := r.Install(b)
	require.Same(t, a, second)
}

func TestFindMissing(t *testing.T) {
	r := NewRegistry(nil)
	got := r.Find(NewClassKey("nope", "l"))
	require.Nil(t, got)
}

func TestSnapshotDropsInserts(t *testing.T) {
	r := NewRegistry(nil)
	r.BeginSnapshot()
	defer r.EndSnapshot()

	rec := &fakeRecord{k: NewClassKey("com/acme/Foo", "bootstrap")}
	got := r.Install(rec)
	require.Nil(t, got, "insert during snapshot must be silently dropped")
	require.Equal(t, 0, r.Len())
}

func TestConcurrentInstallFind(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := NewClassKey("class", string(rune('a'+i%26)))
			r.Install(&fakeRecord{k: k})
			r.Find(k)
		}(i)
	}
	wg.Wait()
}

func TestEachOrdersByKey(t *testing.T) {
	r := NewRegistry(nil)
	r.Install(&fakeRecord{k: NewClassKey("B", "l")})
	r.Install(&fakeRecord{k: NewClassKey("A", "l")})
	r.Install(&fakeRecord{k: NewClassKey("C", "l")})

	var seen []Key
	r.Each(func(k Key, _ Record) { seen = append(seen, k) })

	require.Len(t, seen, 3)
	require.True(t, seen[0].Less(seen[1]))
	require.True(t, seen[1].Less(seen[2]))
}

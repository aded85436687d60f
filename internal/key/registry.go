package key

import (
	"log/slog"
	"sync"
)

// Record is the minimal surface the registry needs from a training record to
// install and look it up. internal/trainingdata's Klass/Method/Compile types
// all satisfy this.
type Record interface {
	Key() Key
}

// Registry is the process-wide, insert-if-absent map described in
// spec.md §4.A. It is the only shared mutable structure in the core that
// needs exclusion (spec.md §5), so a single coarse RWMutex guards the map,
// rather than a lock-free structure, since all registry work is O(1) per
// spec.md §5. A second mutex, taken only by WithLock, serializes compound
// find-or-create sequences.
type Registry struct {
	mu       sync.RWMutex
	records  map[Key]Record
	snapshot bool // true once freeze-for-dump has been requested

	// opMu is separate from mu because fn passed to WithLock calls Find and
	// Install, which take mu themselves.
	opMu sync.Mutex

	log *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger installs a discard
// logger so callers never need a nil check before logging.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Registry{records: make(map[Key]Record), log: log}
}

// Install atomically inserts td if its key is absent, or returns the
// pre-existing record otherwise — whether that existing record is td itself
// (a no-op republish) or a different record a racing goroutine installed
// first. This is the at-most-once lazy publication primitive of spec.md
// §4.B: callers race to construct a candidate, then all call Install and
// every "loser" drops its candidate in favor of the returned record.
//
// Install itself never rejects a same-key, different-pointer pair — that is
// the expected concurrent-construction race, not a conflict. The "fatal
// invariant violation" spec.md §4.A describes for a genuine conflict (two
// distinct logical entities hashing to the same key, implying a bug in key
// construction) is enforced by callers: internal/trainingdata's Make*
// functions type-assert the returned Record and panic if it is not the kind
// they expect for that key.
//
// During an active snapshot (see BeginSnapshot), Install silently drops the
// insertion and returns nil, per spec.md §5's SnapshotInProgress rule.
func (r *Registry) Install(td Record) Record {
	k := td.Key()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snapshot {
		r.log.Debug("registry: drop insert during snapshot", "key", k.String())
		return nil
	}

	if existing, ok := r.records[k]; ok {
		return existing
	}
	r.records[k] = td
	return td
}

// Find performs an unlocked-equivalent read (guarded only by the read lock)
// for a given key. Returns nil if absent.
func (r *Registry) Find(k Key) Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[k]
}

// WithLock runs fn while holding the registry's compound-operation lock, so
// find-or-create-and-link sequences from different callers
// (internal/trainingdata) run one at a time, per spec.md §9's resolution of
// the CompileTrainingData::make locking ambiguity: the whole sequence, not
// just the map mutation, is covered. fn may call Find and Install, which take
// the map lock themselves; an Install made outside WithLock is still atomic
// on its own but is not ordered against fn.
func (r *Registry) WithLock(fn func()) {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	fn()
}

// BeginSnapshot freezes the registry against further insertions so a dump
// taken concurrently observes a consistent set of records (spec.md §5).
func (r *Registry) BeginSnapshot() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = true
}

// EndSnapshot releases the freeze.
func (r *Registry) EndSnapshot() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = false
}

// InSnapshot reports whether the registry is currently frozen.
func (r *Registry) InSnapshot() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Len returns the number of installed records, including empty-keyed
// (retracted) ones.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Each calls fn for every installed record in ascending Key order, so
// iteration (dump preparation, debug listing) is deterministic across runs.
// fn must not call back into the registry — Each holds the read lock for its
// whole traversal.
func (r *Registry) Each(fn func(Key, Record)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]Key, 0, len(r.records))
	for k := range r.records {
		keys = append(keys, k)
	}
	sortKeys(keys)
	for _, k := range keys {
		fn(k, r.records[k])
	}
}

// sortKeys is a small insertion sort; Each is a debug/administrative path,
// not a hot one, so the simplicity outweighs the O(n^2) worst case. The dump
// path (archive.Prepare) also iterates through Each, so it pays the same
// cost over the full graph.
func sortKeys(keys []Key) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j].Less(keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}

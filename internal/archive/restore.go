package archive

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/runtimelab/jitcore/internal/key"
	"github.com/runtimelab/jitcore/internal/schedule"
	"github.com/runtimelab/jitcore/internal/trainingdata"
)

// Restored holds everything Restore reconstructs from a dump: a fresh
// registry populated with Klass/Method records, the recompilation
// schedule, and the offset table for archived lookups
// (lookup_archived, spec.md §4.A).
type Restored struct {
	Registry *key.Registry
	Graph    *trainingdata.Graph
	Schedule *schedule.Schedule
	interner *key.Interner
	offsets  []offsetEntry
}

// Restore decodes a dump written by Dump.Write. It does not recompute
// init_deps_left — there are no CTDs in the dump to recompute it from (see
// record.go). Compiles made against the restored graph keep their own
// counters through Compile.AddInitDep, which reads each class's
// initialization state at the time the edge is added.
func Restore(r io.Reader, interner *key.Interner) (*Restored, error) {
	all, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(all) < headerLength {
		return nil, fmt.Errorf("archive: truncated header")
	}

	hr := bytes.NewReader(all[:headerLength])
	magic, err := readUint32(hr)
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("archive: bad magic %#x", magic)
	}
	version, err := readUint32(hr)
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("archive: unsupported version %d", version)
	}
	offsetTableAt, err := readUint64(hr)
	if err != nil {
		return nil, err
	}
	recordsAt, err := readUint64(hr)
	if err != nil {
		return nil, err
	}
	scheduleAt, err := readUint64(hr)
	if err != nil {
		return nil, err
	}

	otr := bytes.NewReader(all[offsetTableAt:recordsAt])
	entryCount, err := readUint32(otr)
	if err != nil {
		return nil, err
	}
	offsets := make([]offsetEntry, 0, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		h, err := readUint64(otr)
		if err != nil {
			return nil, err
		}
		off, err := readUint32(otr)
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, offsetEntry{hash: h, offset: off})
	}

	reg := key.NewRegistry(nil)
	graph := trainingdata.NewGraph(reg, interner, nil)

	// Pass 1: decode every record, creating Klass/Method objects without
	// yet wiring their class-init-dep edges (a dep may appear later in the
	// record region than its dependent).
	recordRegion := bytes.NewReader(all[recordsAt:scheduleAt])
	var pendingKlassDeps []klassRecord
	var pendingMethods []methodRecord

	for recordRegion.Len() > 0 {
		kindByte, err := recordRegion.ReadByte()
		if err != nil {
			return nil, err
		}
		switch recordKind(kindByte) {
		case recordKindKlass:
			kr, err := decodeKlassRecord(recordRegion)
			if err != nil {
				return nil, err
			}
			graph.MakeKlass(kr.key, nil)
			pendingKlassDeps = append(pendingKlassDeps, kr)
		case recordKindMethod:
			mr, err := decodeMethodRecord(recordRegion)
			if err != nil {
				return nil, err
			}
			pendingMethods = append(pendingMethods, mr)
		default:
			return nil, fmt.Errorf("archive: unknown record kind byte %d", kindByte)
		}
	}

	// Pass 2: wire class-to-class init-dep edges now that every Klass exists.
	for _, kr := range pendingKlassDeps {
		kt, ok := reg.Find(kr.key).(*trainingdata.Klass)
		if !ok || kt == nil {
			continue
		}
		for _, depKey := range kr.classInitDeps {
			if dep, ok := reg.Find(depKey).(*trainingdata.Klass); ok {
				kt.AddClassInitDep(dep)
			}
		}
	}

	// Pass 3: recreate Methods, attaching to their already-restored Klass.
	for _, mr := range pendingMethods {
		m := graph.MakeMethod(mr.key, nil)
		m.RestoreObservations(mr.levelsSeen, mr.everInlined, mr.everToplevel)
	}

	// Schedule section.
	sr := bytes.NewReader(all[scheduleAt:])
	schedLen, err := readUint32(sr)
	if err != nil {
		return nil, err
	}
	methods := make([]*trainingdata.Method, 0, schedLen)
	for i := uint32(0); i < schedLen; i++ {
		k, err := readKey(sr)
		if err != nil {
			return nil, err
		}
		if k.IsEmpty() {
			methods = append(methods, nil)
			continue
		}
		if m, ok := reg.Find(k).(*trainingdata.Method); ok {
			methods = append(methods, m)
		} else {
			methods = append(methods, nil)
		}
	}

	sort.Slice(offsets, func(i, j int) bool { return offsets[i].hash < offsets[j].hash })

	return &Restored{
		Registry: reg,
		Graph:    graph,
		Schedule: schedule.New(methods),
		interner: interner,
		offsets:  offsets,
	}, nil
}

// Interner returns the key interner this restore populated, so callers can
// intern additional symbols (e.g. for a fresh lookup key) before calling
// LookupArchived.
func (rs *Restored) Interner() *key.Interner {
	return rs.interner
}

// LookupArchived checks that k's CDS hash can be computed, finds k in the
// restored registry (not in the offset table), and returns the matching
// record only if it has since been resolved to a live holder (spec.md §4.A:
// "returns the record only if it has a resolved live holder"). Symbolic
// entries are filtered out.
func (rs *Restored) LookupArchived(k key.Key) key.Record {
	if !rs.interner.CanComputeCDSHash(k) {
		return nil
	}
	rec := rs.Registry.Find(k)
	if rec == nil {
		return nil
	}
	switch v := rec.(type) {
	case *trainingdata.Klass:
		if !v.HasHolder() {
			return nil
		}
	case *trainingdata.Method:
		if !v.HasHolder() {
			return nil
		}
	}
	return rec
}

package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/runtimelab/jitcore/internal/key"
	"github.com/runtimelab/jitcore/internal/ports"
	"github.com/runtimelab/jitcore/internal/schedule"
	"github.com/runtimelab/jitcore/internal/trainingdata"
)

// Dump is the in-memory staging area built by Prepare and serialized by
// Write, per spec.md §4.G's dump phase (prepare -> iterate_roots -> write).
type Dump struct {
	interner *key.Interner
	klasses  []klassRecord
	methods  []methodRecord
	sched    *schedule.Schedule
	schedKey []key.Key // parallel to sched's slots, empty key for a nil slot
}

// Prepare walks reg in deterministic key order, collecting every Klass and
// Method record into the flat dump list (CompileTrainingData is excluded,
// see record.go's doc comment), and captures sched as the
// recompilation-schedule section. interner must have every symbol these
// keys reference already interned, or CDSHash-backed lookup will fail on
// the resulting dump.
func Prepare(reg *key.Registry, interner *key.Interner, sched *schedule.Schedule) *Dump {
	d := &Dump{interner: interner, sched: sched}

	reg.Each(func(k key.Key, rec key.Record) {
		switch v := rec.(type) {
		case *trainingdata.Klass:
			d.klasses = append(d.klasses, klassRecord{
				key:           v.Key(),
				hasHolder:     v.HasHolder(),
				classInitDeps: v.Prepare().ClassInitDeps,
			})
		case *trainingdata.Method:
			d.methods = append(d.methods, methodRecord{
				key:          v.Key(),
				klassKey:     klassKeyOf(v),
				hasHolder:    v.HasHolder(),
				levelsSeen:   v.LevelsSeen(),
				everInlined:  v.EverInlined(),
				everToplevel: v.EverToplevel(),
			})
		default:
			_ = k // symbolic/other record kinds are not part of this dump
		}
	})

	if sched != nil {
		d.schedKey = make([]key.Key, sched.Len())
		for i := 0; i < sched.Len(); i++ {
			if m := sched.MethodAt(i); m != nil {
				d.schedKey[i] = m.Key()
			}
		}
	}
	return d
}

func klassKeyOf(m *trainingdata.Method) key.Key {
	if m.Klass() == nil {
		return key.Key{}
	}
	return m.Klass().Key()
}

// PrepareRecompilationSchedule builds a schedule.Schedule from the ambient
// method profiler, per spec.md §4.G's prepare_recompilation_schedule:
// sampled methods ordered by hotness descending; when topOnly is set
// (config.Driver.RecordOnlyTopCompilations), the scan stops at the first
// zero-sampled entry instead of recording every observed method.
func PrepareRecompilationSchedule(profiler ports.MethodProfiler, topOnly bool, lookup func(ports.MethodRef) *trainingdata.Method) *schedule.Schedule {
	sampled := profiler.SampledMethods()
	methods := make([]*trainingdata.Method, 0, len(sampled))
	for _, mref := range sampled {
		if topOnly && profiler.SampleCount(mref) == 0 {
			break
		}
		methods = append(methods, lookup(mref))
	}
	return schedule.New(methods)
}

// offsetEntry is one slot of the archive's perfect-hash lookup table: a
// CDS hash paired with the byte offset of its record within the flat
// record region. Entries are stored sorted by hash, the practical stand-in
// this module uses for a minimal perfect hash (see DESIGN.md); Restore reads
// the table back, but LookupArchived does not search it.
type offsetEntry struct {
	hash   uint64
	offset uint32
}

// Write serializes the dump to w: header, offset table, flat record
// region, schedule array — the three sections of spec.md §6.
func (d *Dump) Write(w io.Writer) error {
	var records bytes.Buffer
	var entries []offsetEntry

	for _, kr := range d.klasses {
		offset := uint32(records.Len())
		records.Write(encodeKlassRecord(kr))
		if h, ok := d.interner.CDSHash(kr.key); ok {
			entries = append(entries, offsetEntry{hash: h, offset: offset})
		}
	}
	for _, mr := range d.methods {
		offset := uint32(records.Len())
		records.Write(encodeMethodRecord(mr))
		if h, ok := d.interner.CDSHash(mr.key); ok {
			entries = append(entries, offsetEntry{hash: h, offset: offset})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].hash < entries[j].hash })

	var offsetTable bytes.Buffer
	writeUint32(&offsetTable, uint32(len(entries)))
	for _, e := range entries {
		writeUint64(&offsetTable, e.hash)
		writeUint32(&offsetTable, e.offset)
	}

	var scheduleSection bytes.Buffer
	writeUint32(&scheduleSection, uint32(len(d.schedKey)))
	for _, k := range d.schedKey {
		writeKey(&scheduleSection, k)
	}

	headerLen := uint32(headerLength)
	offsetTableAt := uint64(headerLen)
	recordsAt := offsetTableAt + uint64(offsetTable.Len())
	scheduleAt := recordsAt + uint64(records.Len())

	var header bytes.Buffer
	writeUint32(&header, Magic)
	writeUint32(&header, Version)
	writeUint64(&header, offsetTableAt)
	writeUint64(&header, recordsAt)
	writeUint64(&header, scheduleAt)

	for _, chunk := range [][]byte{header.Bytes(), offsetTable.Bytes(), records.Bytes(), scheduleSection.Bytes()} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes the dump to path, retrying transient filesystem errors
// with exponential backoff. It also writes a manifest.toml sidecar next to
// path (see manifest.go); a manifest write failure is logged but does not
// fail WriteFile, since Restore never depends on the sidecar.
func (d *Dump) WriteFile(ctx context.Context, path string, log *slog.Logger) error {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return fmt.Errorf("archive: encode dump: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	err := backoff.Retry(func() error {
		werr := os.WriteFile(path, buf.Bytes(), 0o644)
		if werr == nil {
			return nil
		}
		if os.IsPermission(werr) {
			return backoff.Permanent(werr)
		}
		return werr
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return fmt.Errorf("archive: write %s: %w", path, err)
	}

	if merr := writeManifest(path, len(d.klasses), len(d.methods), len(d.schedKey)); merr != nil {
		log.Warn("archive: manifest sidecar write failed", "path", path, "error", merr)
	}
	log.Info("archive: dump written", "path", path, "klasses", len(d.klasses), "methods", len(d.methods))
	return nil
}

package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/runtimelab/jitcore/internal/key"
)

// klassRecord and methodRecord are the flat, position-independent encodings
// of a Klass/Method training record (spec.md §4.G: "each record's
// prepare(visitor) flattens its edges into an owning array suitable for
// serialization"). CompileTrainingData is intentionally excluded from the
// dump list (see DESIGN.md): only class/method structure and the
// recompilation schedule survive a round trip, never compile-specific
// ephemeral state (timings, native size, init_deps_left), which is
// recomputed from scratch as new compiles happen in the restored process.
type klassRecord struct {
	key           key.Key
	hasHolder     bool
	classInitDeps []key.Key
}

type methodRecord struct {
	key          key.Key
	klassKey     key.Key
	hasHolder    bool
	levelsSeen   uint32
	everInlined  bool
	everToplevel bool
}

func writeString(w *bytes.Buffer, s string) {
	writeUint32(w, uint32(len(s)))
	w.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	byteOrder.PutUint32(b[:], v)
	w.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(b[:]), nil
}

func writeUint64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	byteOrder.PutUint64(b[:], v)
	w.Write(b[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(b[:]), nil
}

func writeBool(w *bytes.Buffer, v bool) {
	if v {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// writeKey encodes a key.Key as kind + its Symbols(), or a single empty
// marker for the retracted (empty) key.
func writeKey(w *bytes.Buffer, k key.Key) {
	if k.IsEmpty() {
		w.WriteByte(2) // 2 == empty marker, distinct from KindClass(0)/KindMethod(1)
		return
	}
	w.WriteByte(byte(k.Kind()))
	for _, sym := range k.Symbols() {
		writeString(w, sym)
	}
}

func readKey(r *bytes.Reader) (key.Key, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return key.Key{}, err
	}
	if kindByte == 2 {
		return key.Key{}, nil
	}
	switch key.Kind(kindByte) {
	case key.KindClass:
		className, err := readString(r)
		if err != nil {
			return key.Key{}, err
		}
		loaderName, err := readString(r)
		if err != nil {
			return key.Key{}, err
		}
		return key.NewClassKey(className, loaderName), nil
	case key.KindMethod:
		className, err := readString(r)
		if err != nil {
			return key.Key{}, err
		}
		loaderName, err := readString(r)
		if err != nil {
			return key.Key{}, err
		}
		methodName, err := readString(r)
		if err != nil {
			return key.Key{}, err
		}
		signature, err := readString(r)
		if err != nil {
			return key.Key{}, err
		}
		holder := key.NewClassKey(className, loaderName)
		return key.NewMethodKey(holder, methodName, signature), nil
	default:
		return key.Key{}, fmt.Errorf("archive: unknown key kind byte %d", kindByte)
	}
}

func encodeKlassRecord(rec klassRecord) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(recordKindKlass))
	writeKey(&buf, rec.key)
	writeBool(&buf, rec.hasHolder)
	writeUint32(&buf, uint32(len(rec.classInitDeps)))
	for _, dep := range rec.classInitDeps {
		writeKey(&buf, dep)
	}
	return buf.Bytes()
}

func decodeKlassRecord(r *bytes.Reader) (klassRecord, error) {
	k, err := readKey(r)
	if err != nil {
		return klassRecord{}, err
	}
	hasHolder, err := readBool(r)
	if err != nil {
		return klassRecord{}, err
	}
	n, err := readUint32(r)
	if err != nil {
		return klassRecord{}, err
	}
	deps := make([]key.Key, 0, n)
	for i := uint32(0); i < n; i++ {
		dep, err := readKey(r)
		if err != nil {
			return klassRecord{}, err
		}
		deps = append(deps, dep)
	}
	return klassRecord{key: k, hasHolder: hasHolder, classInitDeps: deps}, nil
}

func encodeMethodRecord(rec methodRecord) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(recordKindMethod))
	writeKey(&buf, rec.key)
	writeKey(&buf, rec.klassKey)
	writeBool(&buf, rec.hasHolder)
	writeUint32(&buf, rec.levelsSeen)
	writeBool(&buf, rec.everInlined)
	writeBool(&buf, rec.everToplevel)
	return buf.Bytes()
}

func decodeMethodRecord(r *bytes.Reader) (methodRecord, error) {
	k, err := readKey(r)
	if err != nil {
		return methodRecord{}, err
	}
	klassKey, err := readKey(r)
	if err != nil {
		return methodRecord{}, err
	}
	hasHolder, err := readBool(r)
	if err != nil {
		return methodRecord{}, err
	}
	levelsSeen, err := readUint32(r)
	if err != nil {
		return methodRecord{}, err
	}
	everInlined, err := readBool(r)
	if err != nil {
		return methodRecord{}, err
	}
	everToplevel, err := readBool(r)
	if err != nil {
		return methodRecord{}, err
	}
	return methodRecord{
		key:          k,
		klassKey:     klassKey,
		hasHolder:    hasHolder,
		levelsSeen:   levelsSeen,
		everInlined:  everInlined,
		everToplevel: everToplevel,
	}, nil
}

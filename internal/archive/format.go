// Package archive implements the dump/restore pipeline of spec.md §4.G: a
// flat, offset-addressed binary file with a perfect-hash lookup table over
// training records, plus a length-prefixed recompilation-schedule array.
package archive

import "encoding/binary"

// Magic identifies a jitcore archive file; Version allows the on-disk
// layout to evolve. They are written as the first two 32-bit words of the
// header (spec.md §6: "versioning is by a single magic + version word at the
// head.").
const (
	Magic        uint32 = 0x4a495443 // "JITC"
	Version      uint32 = 1
	headerLength        = 4 + 4 + 8 + 8 + 8 // magic, version, offset-table off, records off, schedule off
)

var byteOrder = binary.LittleEndian // endianness-fixed at build time, per spec.md §6

// recordKind tags the flat record sequence so Restore can dispatch decoding
// without a separate type table.
type recordKind uint8

const (
	recordKindKlass recordKind = iota
	recordKindMethod
	recordKindCompile
)

// Package key implements the content-identity keys that the training-data
// registry is addressed by, and the interner that backs their archive-stable
// hash.
package key

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// Kind distinguishes a class key from a method key.
type Kind uint8

const (
	// KindClass identifies a class by internal name plus loader name.
	KindClass Kind = iota
	// KindMethod identifies a method by holder class key, name, and signature.
	KindMethod
)

func (k Kind) String() string {
	if k == KindMethod {
		return "method"
	}
	return "class"
}

// Key identifies a training record by stable content. It is a value type so
// it can be used directly as a Go map key (the Registry's primary index) and
// compared with ==.
//
// An empty Key (Kind zero value, all symbol fields empty) marks an
// installed-but-retracted record per spec.md §3.
type Key struct {
	kind Kind

	// class fields
	className  string
	loaderName string

	// method fields (className/loaderName above double as the holder)
	methodName string
	signature  string
}

// NewClassKey builds a key for a class identified by its internal name and
// defining loader name.
func NewClassKey(className, loaderName string) Key {
	return Key{kind: KindClass, className: className, loaderName: loaderName}
}

// NewMethodKey builds a key for a method identified by its holder class key
// plus method name and signature. The holder must itself be a class key.
func NewMethodKey(holder Key, methodName, signature string) Key {
	return Key{
		kind:       KindMethod,
		className:  holder.className,
		loaderName: holder.loaderName,
		methodName: methodName,
		signature:  signature,
	}
}

// IsEmpty reports whether this is the empty/retracted key.
func (k Key) IsEmpty() bool {
	return k == Key{}
}

// Kind returns whether this key identifies a class or a method.
func (k Key) Kind() Kind { return k.kind }

// HolderKey returns the class key of a method key's holder. It is a no-op
// (returns k) for a class key.
func (k Key) HolderKey() Key {
	if k.kind == KindMethod {
		return Key{kind: KindClass, className: k.className, loaderName: k.loaderName}
	}
	return k
}

// Symbols returns the raw symbol strings this key is built from, for
// callers that need to intern them before CDSHash can succeed.
func (k Key) Symbols() []string {
	if k.IsEmpty() {
		return nil
	}
	if k.kind == KindClass {
		return []string{k.className, k.loaderName}
	}
	return []string{k.className, k.loaderName, k.methodName, k.signature}
}

// Less gives Key a total order so dumps iterate records in a deterministic,
// input-dependent sequence (see SPEC_FULL.md, component A) rather than Go map
// iteration order.
func (k Key) Less(other Key) bool {
	if k.kind != other.kind {
		return k.kind < other.kind
	}
	if k.className != other.className {
		return k.className < other.className
	}
	if k.loaderName != other.loaderName {
		return k.loaderName < other.loaderName
	}
	if k.methodName != other.methodName {
		return k.methodName < other.methodName
	}
	return k.signature < other.signature
}

// String renders the key for logs and error messages.
func (k Key) String() string {
	if k.IsEmpty() {
		return "<empty>"
	}
	if k.kind == KindClass {
		return fmt.Sprintf("%s/%s", k.loaderName, k.className)
	}
	return fmt.Sprintf("%s/%s.%s%s", k.loaderName, k.className, k.methodName, k.signature)
}

// Interner holds the shared symbolic names a Key's fields reference. Keys
// carry raw strings rather than interned pointers (Go has no stable symbol
// table to alias into), but CDSHash only succeeds for symbols that have been
// interned here — this mirrors can_compute_cds_hash's "lives in the
// mappable region" requirement with Go's nearest equivalent: "was observed
// and registered before the snapshot was taken."
type Interner struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewInterner creates an empty symbol table.
func NewInterner() *Interner {
	return &Interner{seen: make(map[string]struct{})}
}

// Intern registers a symbol as archivable. Idempotent.
func (in *Interner) Intern(sym string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.seen[sym] = struct{}{}
}

// Has reports whether a symbol has been interned.
func (in *Interner) Has(sym string) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	_, ok := in.seen[sym]
	return ok
}

// symHash is the per-symbol hash summed to build a Key's CDS hash. FNV-1a is
// used for its cheap, allocation-free incremental computation; cryptographic
// strength is not needed since this is a dictionary placement hash, not a
// security boundary.
func symHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// CanComputeCDSHash reports whether every symbol referenced by k has been
// interned, i.e. whether CDSHash(k) would succeed.
func (in *Interner) CanComputeCDSHash(k Key) bool {
	if k.IsEmpty() {
		return false
	}
	if !in.Has(k.className) || !in.Has(k.loaderName) {
		return false
	}
	if k.kind == KindMethod {
		if !in.Has(k.methodName) || !in.Has(k.signature) {
			return false
		}
	}
	return true
}

// CDSHash computes the archive-side perfect-hash value for k: the sum of its
// symbols' hashes. This is stable across processes as long as the same
// symbol strings are interned, satisfying spec.md §8's round-trip property
// `cds_hash(key) == cds_hash(restored_key)`.
//
// CDSHash returns ok=false (and a zero hash) when any symbol referenced by k
// has not been interned, mirroring can_compute_cds_hash.
func (in *Interner) CDSHash(k Key) (hash uint64, ok bool) {
	if !in.CanComputeCDSHash(k) {
		return 0, false
	}
	hash = symHash(k.className) + symHash(k.loaderName)
	if k.kind == KindMethod {
		hash += symHash(k.methodName) + symHash(k.signature)
	}
	return hash, true
}

// Package ports declares the external collaborators the training-data core
// consumes (spec.md §6). The core never imports a concrete compiler,
// classloader, or broker implementation — callers inject one of these.
package ports

import "time"

// ClassRef is the live identity of a class, owned by components outside this
// core (the class loader). A nil ClassRef models an unloaded/symbolic class.
type ClassRef interface {
	Name() string
	LoaderName() string
	IsInitialized() bool
}

// MethodRef is the live identity of a method, owned by the compiler/runtime.
// A nil MethodRef models an unloaded/symbolic method.
type MethodRef interface {
	Name() string
	Signature() string
	HolderClass() ClassRef
	HasNativeCode() bool
	CodeSize() int
	IsAOTEntry() bool
	TopTierLevel() int // the tier of the currently attached native code, or 0
}

// CompileRequest describes a request to compile a method, handed to
// CompilerBroker.CompileMethod.
type CompileRequest struct {
	Method     MethodRef
	Level      int
	Reason     string
	Blocking   bool
	Directives DirectiveSet // resolved via DirectivesStack.GetMatching, nullable
}

// CompilerBroker is the out-of-core owner of the compile queue.
type CompilerBroker interface {
	QueueSize(level int) int
	CompileMethod(req CompileRequest) (taskID uint64, ok bool)
}

// DirectiveSet is an opaque, read-only bundle of per-method compiler
// directives (inlining, print-assembly, etc.) — the core never interprets
// its contents, only threads it through to CompilerBroker.
type DirectiveSet interface {
	Name() string
}

// DirectivesStack resolves the matching directive set for a method.
type DirectivesStack interface {
	GetMatching(method MethodRef, compiler string) DirectiveSet
}

// MethodProfiler reports sampled native methods, most-sampled first — used
// by the archive pipeline to build the recompilation schedule dump
// (spec.md §4.G). SampleCount backs the "top-only" cutoff
// (RECORD_ONLY_TOP_COMPILATIONS): the dump stops at the first method whose
// count is zero instead of recording every observed method.
type MethodProfiler interface {
	SampledMethods() []MethodRef
	SampleCount(m MethodRef) int
}

// Clock is the monotonic millisecond clock used for load sampling and
// wall-clock stamps (spec.md §6).
type Clock interface {
	NowMillis() int64
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// NowMillis returns the current Unix time in milliseconds.
func (SystemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}

package trainingdata

import "github.com/runtimelab/jitcore/internal/ports"

// LivenessProbe reports whether a class/method reference is still alive
// (not unloaded). The owning class loader supplies this; the core never
// assumes a particular GC or unloading mechanism for it.
type LivenessProbe func() bool

// StrongHandle and WeakHandle give the two handle kinds spec.md §9 asks for
// ("two distinct handle types with explicit upgrade/downgrade operations").
// Go's garbage collector does not need a strong handle to keep a ClassRef
// reachable — storing the interface value is enough — so these types exist
// to carry the *accounting contract*, not GC mechanics: a WeakHandle reports
// liveness through a caller-supplied probe instead of holding the value at
// all, and Upgrade only succeeds (and only then captures the value) while
// the probe still reports alive. This lets a KTD or CompileTask state
// honestly whether it is currently pinning its class/method without
// depending on a particular unloading scheme from the classloader.

// StrongHandle pins a ClassRef so it is guaranteed live while held.
type StrongHandle struct {
	ref ports.ClassRef
}

// NewStrongHandle wraps an already-live ClassRef.
func NewStrongHandle(ref ports.ClassRef) StrongHandle {
	return StrongHandle{ref: ref}
}

// Ref returns the held reference, or nil if this handle is empty.
func (h StrongHandle) Ref() ports.ClassRef { return h.ref }

// Downgrade converts this strong handle into a weak one backed by probe.
func (h StrongHandle) Downgrade(probe LivenessProbe) WeakHandle {
	return WeakHandle{ref: h.ref, probe: probe}
}

// WeakHandle does not pin its referent; Upgrade must re-check liveness.
type WeakHandle struct {
	ref   ports.ClassRef
	probe LivenessProbe
}

// NewWeakHandle creates a weak handle over ref, whose liveness is reported
// by probe.
func NewWeakHandle(ref ports.ClassRef, probe LivenessProbe) WeakHandle {
	return WeakHandle{ref: ref, probe: probe}
}

// IsCleared reports whether the referent has been unloaded.
func (h WeakHandle) IsCleared() bool {
	if h.probe == nil {
		return h.ref == nil
	}
	return !h.probe()
}

// Upgrade attempts to produce a StrongHandle. Returns ok=false if the
// referent is no longer alive.
func (h WeakHandle) Upgrade() (StrongHandle, bool) {
	if h.IsCleared() {
		return StrongHandle{}, false
	}
	return StrongHandle{ref: h.ref}, true
}

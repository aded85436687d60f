// Package compiletask implements the per-compile-request lifecycle object
// and its process-wide active-task barrier (spec.md §4.D).
package compiletask

import (
	"sync"
	"sync/atomic"

	"github.com/runtimelab/jitcore/internal/ports"
	"github.com/runtimelab/jitcore/internal/trainingdata"
)

// ReasonPreload marks a task constructed to preload a method ahead of use;
// such tasks bypass the unloaded-class check in SelectForCompilation.
const ReasonPreload = "preload"

var (
	activeTasks int64
	waitMu      sync.Mutex
	waitCond    = sync.NewCond(&waitMu)
)

// ActiveTasks returns the current count of constructed-but-not-destroyed
// tasks.
func ActiveTasks() int64 {
	return atomic.LoadInt64(&activeTasks)
}

// WaitForNoActiveTasks blocks the caller until ActiveTasks() == 0.
func WaitForNoActiveTasks() {
	waitMu.Lock()
	defer waitMu.Unlock()
	for atomic.LoadInt64(&activeTasks) != 0 {
		waitCond.Wait()
	}
}

// FailureReason carries a compile failure message plus whether it was
// formatted at runtime. The teacher language distinguishes a static
// string-pool reason from a heap-allocated one so it can skip a free() on
// destruction; Go has no manual free, so Interned is only recorded here;
// nothing in this module reads it.
type FailureReason struct {
	Message  string
	Interned bool
}

// Task is one compile request's identity and lifecycle (spec.md §4.D).
type Task struct {
	// immutable identity
	CompileID  uint64
	Method     ports.MethodRef
	OSRBCI     int
	Level      int
	Reason     string
	Hotness    int64
	AOTEntry   bool
	Blocking   bool
	Directives ports.DirectiveSet

	mu         sync.Mutex
	createdAt  int64
	queuedAt   int64
	startedAt  int64
	finishedAt int64
	complete   bool
	success    bool
	failure    *FailureReason
	nativeSize int

	record *trainingdata.Compile // training record, once CTD::make has run

	weak      trainingdata.WeakHandle
	hasStrong bool
	strong    trainingdata.StrongHandle
	destroyed bool
}

// Construct builds a task, incrementing the process-wide active-tasks
// counter and capturing its creation time. weak should be downgraded from a
// strong handle on the holder class/method obtained at request time.
func Construct(clock ports.Clock, compileID uint64, method ports.MethodRef, level int, reason string, weak trainingdata.WeakHandle) *Task {
	t := &Task{
		CompileID: compileID,
		Method:    method,
		Level:     level,
		Reason:    reason,
		weak:      weak,
		createdAt: clock.NowMillis(),
	}
	atomic.AddInt64(&activeTasks, 1)
	return t
}

// Destroy decrements the active-tasks counter and, if it reaches zero,
// notifies any WaitForNoActiveTasks waiters. Destroy is idempotent.
func (t *Task) Destroy() {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	t.destroyed = true
	t.mu.Unlock()

	if atomic.AddInt64(&activeTasks, -1) == 0 {
		waitMu.Lock()
		waitCond.Broadcast()
		waitMu.Unlock()
	}
}

// SelectForCompilation returns (t, true) if the holder is still alive (or
// the task's reason is preload, which bypasses the liveness check),
// upgrading the weak handle to strong for the compile window. Returns
// (nil, false) if the holder was unloaded.
func (t *Task) SelectForCompilation() (*Task, bool) {
	if t.Reason == ReasonPreload {
		return t, true
	}
	strong, ok := t.weak.Upgrade()
	if !ok {
		return nil, false
	}
	t.mu.Lock()
	t.strong = strong
	t.hasStrong = true
	t.mu.Unlock()
	return t, true
}

// IsUnloaded reports whether the holder has been unloaded — true iff the
// weak handle has cleared and this is not a preload task.
func (t *Task) IsUnloaded() bool {
	if t.Reason == ReasonPreload {
		return false
	}
	return t.weak.IsCleared()
}

// MarkOnStack marks the method retained against class redefinition while
// this task compiles it, if the holder is loaded. mark must be non-nil to
// take effect.
func (t *Task) MarkOnStack(mark func(ports.MethodRef)) {
	if t.IsUnloaded() || mark == nil {
		return
	}
	mark(t.Method)
}

// MarkQueued, MarkStarted, MarkFinished record the wall-clock lifecycle
// transitions described in spec.md §4.D.
func (t *Task) MarkQueued(nowMillis int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queuedAt = nowMillis
}

func (t *Task) MarkStarted(nowMillis int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedAt = nowMillis
}

func (t *Task) MarkFinished(nowMillis int64, success bool, nativeSize int, failure *FailureReason) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finishedAt = nowMillis
	t.complete = true
	t.success = success
	t.nativeSize = nativeSize
	t.failure = failure
}

// Complete and Success report the task's terminal outcome.
func (t *Task) Complete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.complete
}

func (t *Task) Success() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.success
}

// Failure returns the recorded failure reason, or nil if the task succeeded
// or has not finished.
func (t *Task) Failure() *FailureReason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

// SetRecord attaches the training record CTD::make produced for this task.
func (t *Task) SetRecord(c *trainingdata.Compile) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record = c
}

// Record returns the attached training record, or nil if none yet.
func (t *Task) Record() *trainingdata.Compile {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record
}

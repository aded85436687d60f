package compiletask

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runtimelab/jitcore/internal/trainingdata"
)

type fakeClock struct{ millis int64 }

func (f *fakeClock) NowMillis() int64 { return f.millis }

func TestConstructIncrementsActiveTasks(t *testing.T) {
	before := ActiveTasks()
	task := Construct(&fakeClock{}, 1, nil, 4, "tier-up", trainingdata.WeakHandle{})
	require.Equal(t, before+1, ActiveTasks())

	task.Destroy()
	require.Equal(t, before, ActiveTasks())
}

func TestDestroyIsIdempotent(t *testing.T) {
	before := ActiveTasks()
	task := Construct(&fakeClock{}, 1, nil, 4, "tier-up", trainingdata.WeakHandle{})
	task.Destroy()
	task.Destroy()
	require.Equal(t, before, ActiveTasks())
}

func TestIsUnloadedBypassedForPreload(t *testing.T) {
	cleared := trainingdata.NewWeakHandle(nil, func() bool { return false })
	task := Construct(&fakeClock{}, 1, nil, 4, ReasonPreload, cleared)
	defer task.Destroy()
	require.False(t, task.IsUnloaded())

	_, ok := task.SelectForCompilation()
	require.True(t, ok, "preload tasks bypass the liveness check")
}

func TestSelectForCompilationFailsWhenUnloaded(t *testing.T) {
	cleared := trainingdata.NewWeakHandle(nil, func() bool { return false })
	task := Construct(&fakeClock{}, 1, nil, 4, "tier-up", cleared)
	defer task.Destroy()

	require.True(t, task.IsUnloaded())
	_, ok := task.SelectForCompilation()
	require.False(t, ok)
}

// TestWaitForNoActiveTasksUnblocks is scenario S5: tasks constructed up
// front, destroyed concurrently while a waiter blocks, must all converge
// without deadlock.
func TestWaitForNoActiveTasksUnblocks(t *testing.T) {
	var wg sync.WaitGroup
	tasks := make([]*Task, 20)
	for i := range tasks {
		tasks[i] = Construct(&fakeClock{}, uint64(i), nil, 4, "tier-up", trainingdata.WeakHandle{})
	}

	waitDone := make(chan struct{})
	go func() {
		WaitForNoActiveTasks()
		close(waitDone)
	}()

	for _, task := range tasks {
		wg.Add(1)
		go func(task *Task) {
			defer wg.Done()
			task.Destroy()
		}(task)
	}
	wg.Wait()

	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForNoActiveTasks did not unblock")
	}
}

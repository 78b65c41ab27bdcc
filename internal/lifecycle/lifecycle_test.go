package lifecycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_CancelsPriorTaskForSameURI(t *testing.T) {
	pool := NewPool(2)
	defer pool.Stop()
	mgr := NewManager(pool)

	started := make(chan struct{})
	firstCanceled := make(chan struct{})
	mgr.Schedule("file:///a.smithy", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(firstCanceled)
	})
	<-started

	second := mgr.Schedule("file:///a.smithy", func(ctx context.Context) {})

	select {
	case <-firstCanceled:
	case <-time.After(time.Second):
		t.Fatal("prior task was not canceled when a new task was scheduled for the same URI")
	}

	second.Wait()
	_, ok := mgr.GetTask("file:///a.smithy")
	assert.False(t, ok)
}

func TestSchedule_RapidSuccessiveEdits_OnlyLastRunsToCompletion(t *testing.T) {
	// spec.md §8 scenario 6: 8 single-character edits in rapid succession;
	// at most one task runs to completion, earlier ones observe
	// cancellation before reaching their completion checkpoint.
	pool := NewPool(4)
	defer pool.Stop()
	mgr := NewManager(pool)

	var completed int32
	const n = 8
	var last *Task
	for i := 0; i < n; i++ {
		last = mgr.Schedule("file:///a.smithy", func(ctx context.Context) {
			// Simulate a coarse checkpoint before "assembly" completes.
			select {
			case <-ctx.Done():
				return
			case <-time.After(20 * time.Millisecond):
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			atomic.AddInt32(&completed, 1)
		})
	}
	last.Wait()
	mgr.WaitForAllTasks()

	assert.LessOrEqual(t, atomic.LoadInt32(&completed), int32(1))
}

func TestCancelTask_RemovesAndCancels(t *testing.T) {
	pool := NewPool(1)
	defer pool.Stop()
	mgr := NewManager(pool)

	canceled := make(chan struct{})
	task := mgr.Schedule("file:///a.smithy", func(ctx context.Context) {
		<-ctx.Done()
		close(canceled)
	})

	mgr.CancelTask("file:///a.smithy")
	task.Wait()
	<-canceled

	_, ok := mgr.GetTask("file:///a.smithy")
	assert.False(t, ok)
}

func TestCancelAllTasks_CancelsEveryURI(t *testing.T) {
	pool := NewPool(4)
	defer pool.Stop()
	mgr := NewManager(pool)

	const n = 5
	dones := make([]chan struct{}, n)
	for i := 0; i < n; i++ {
		dones[i] = make(chan struct{})
		idx := i
		mgr.Schedule(uriFor(idx), func(ctx context.Context) {
			<-ctx.Done()
			close(dones[idx])
		})
	}

	mgr.CancelAllTasks()
	mgr.WaitForAllTasks()

	for i, done := range dones {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("task %d was not canceled", i)
		}
	}
}

func TestWaitForAllTasks_BlocksUntilCompletion(t *testing.T) {
	pool := NewPool(1)
	defer pool.Stop()
	mgr := NewManager(pool)

	var ran int32
	mgr.Schedule("file:///a.smithy", func(ctx context.Context) {
		time.Sleep(10 * time.Millisecond)
		atomic.StoreInt32(&ran, 1)
	})
	mgr.WaitForAllTasks()
	require.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func uriFor(i int) string {
	return "file:///doc-" + string(rune('a'+i)) + ".smithy"
}

package lifecycle

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Task is a single background unit of work scheduled against a document
// URI. At most one Task per URI is registered at a time: Manager.Schedule
// cancels and replaces whatever Task currently owns that URI. A replaced
// task keeps running until it observes its cancellation.
type Task struct {
	ID  uuid.UUID
	URI string

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel requests the task stop at its next cooperative checkpoint.
// It does not block until the task actually exits; use Wait for that.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the task's function has returned.
func (t *Task) Wait() {
	<-t.done
}

// Manager is the DocumentLifecycleManager: a registry of at-most-one
// in-flight background task per URI, backed by a shared worker Pool.
// Cancellation here is advisory only — the scheduled function receives
// a context and must itself observe ctx.Done() at coarse checkpoints
// (after parsing, before assembly, between files) to actually stop.
type Manager struct {
	mu    sync.Mutex
	tasks map[string]*Task
	pool  *Pool
}

// NewManager builds a Manager backed by pool. The caller owns pool's
// lifetime (Stop it on shutdown).
func NewManager(pool *Pool) *Manager {
	return &Manager{
		tasks: make(map[string]*Task),
		pool:  pool,
	}
}

// Schedule cancels any in-flight task for uri, then enqueues fn as the
// new task for uri on the worker pool. fn must check ctx for
// cancellation at its own checkpoints; Schedule does not wait for the
// previous task to actually stop before returning.
func (m *Manager) Schedule(uri string, fn func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	task := &Task{ID: uuid.New(), URI: uri, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if prev, ok := m.tasks[uri]; ok {
		prev.cancel()
	}
	m.tasks[uri] = task
	m.mu.Unlock()

	m.pool.Submit(func() {
		defer close(task.done)
		defer m.clearIfCurrent(uri, task)
		fn(ctx)
	})
	return task
}

func (m *Manager) clearIfCurrent(uri string, task *Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.tasks[uri]; ok && cur == task {
		delete(m.tasks, uri)
	}
}

// CancelTask cancels and removes the in-flight task for uri, if any.
func (m *Manager) CancelTask(uri string) {
	m.mu.Lock()
	task, ok := m.tasks[uri]
	if ok {
		delete(m.tasks, uri)
	}
	m.mu.Unlock()
	if ok {
		task.cancel()
	}
}

// CancelAllTasks cancels every in-flight task across all URIs, e.g. on
// workspace teardown or a full project reload.
func (m *Manager) CancelAllTasks() {
	m.mu.Lock()
	tasks := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.tasks = make(map[string]*Task)
	m.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
}

// WaitForAllTasks blocks until every task registered at the time of the
// call has returned. Tasks scheduled after the call started are not
// waited on, and neither are tasks already removed from the registry by
// CancelTask, CancelAllTasks or a replacing Schedule, even if they are
// still running.
func (m *Manager) WaitForAllTasks() {
	m.mu.Lock()
	tasks := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()

	for _, t := range tasks {
		t.Wait()
	}
}

// GetTask returns the in-flight task for uri, if any.
func (m *Manager) GetTask(uri string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[uri]
	return t, ok
}

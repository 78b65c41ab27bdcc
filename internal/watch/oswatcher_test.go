package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventCollector struct {
	mu     sync.Mutex
	events []Event
}

func (c *eventCollector) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *eventCollector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestOSWatcher_DetectsCreateAndDelete(t *testing.T) {
	dir := t.TempDir()
	collector := &eventCollector{}
	w, err := NewOSWatcher(collector.handle, 30*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.AddRoot(dir))
	w.Start()
	defer w.Stop()

	target := filepath.Join(dir, "new.smithy")
	require.NoError(t, os.WriteFile(target, []byte("namespace com.foo\n"), 0o644))

	require.Eventually(t, func() bool {
		for _, ev := range collector.snapshot() {
			if ev.Path == target && ev.Kind == Created {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(target))

	require.Eventually(t, func() bool {
		for _, ev := range collector.snapshot() {
			if ev.Path == target && ev.Kind == Deleted {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOSWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewOSWatcher(func(Event) {}, 10*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.AddRoot(dir))
	w.Start()
	assert.True(t, w.IsRunning())
	w.Stop()
	assert.False(t, w.IsRunning())
	w.Stop()
}

func TestOSWatcher_StartIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewOSWatcher(func(Event) {}, 10*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.AddRoot(dir))
	w.Start()
	w.Start()
	assert.True(t, w.IsRunning())
	w.Stop()
}

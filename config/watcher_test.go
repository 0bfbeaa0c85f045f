package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Constructor ---

func TestNewFileWatcher_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "test.yaml")
	require.NoError(t, os.WriteFile(f, []byte("key: val"), 0644))

	w, err := NewFileWatcher([]string{f})
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.Equal(t, []string{f}, w.Paths())
	assert.False(t, w.IsRunning())
	assert.Equal(t, 200*time.Millisecond, w.debounceDelay)
}

func TestNewFileWatcher_WithOptions(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "test.yaml")
	require.NoError(t, os.WriteFile(f, []byte("key: val"), 0644))

	w, err := NewFileWatcher([]string{f},
		WithDebounceDelay(500*time.Millisecond),
		WithWatcherLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, w.debounceDelay)
}

func TestNewFileWatcher_NoPaths(t *testing.T) {
	_, err := NewFileWatcher(nil)
	assert.Error(t, err)
}

func TestNewFileWatcher_RelativePathResolved(t *testing.T) {
	w, err := NewFileWatcher([]string{"tools.yaml"})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(w.Paths()[0]))
}

// --- Lifecycle ---

func TestFileWatcher_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(f, []byte("key: val"), 0644))

	w, err := NewFileWatcher([]string{f}, WithDebounceDelay(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	assert.False(t, w.IsRunning())

	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())

	// Double start should error
	err = w.Start(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())

	// Stop when already stopped is a no-op
	require.NoError(t, w.Stop())

	// A stopped watcher can be started again
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Stop())
}

func TestFileWatcher_StartMissingDirectory(t *testing.T) {
	w, err := NewFileWatcher([]string{"/nonexistent/dir/config.yaml"})
	require.NoError(t, err)

	err = w.Start(context.Background())
	assert.Error(t, err)
	assert.False(t, w.IsRunning())
}

// --- OnChange callback ---

func collect(w *FileWatcher) func() []FileEvent {
	var mu sync.Mutex
	var events []FileEvent
	w.OnChange(func(evt FileEvent) {
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
	})
	return func() []FileEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]FileEvent(nil), events...)
	}
}

func TestFileWatcher_OnChange_Callback(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(f, []byte("v1"), 0644))

	w, err := NewFileWatcher([]string{f}, WithDebounceDelay(50*time.Millisecond))
	require.NoError(t, err)
	events := collect(w)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, os.WriteFile(f, []byte("v2"), 0644))

	require.Eventually(t, func() bool { return len(events()) > 0 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, f, events()[0].Path)
}

func TestFileWatcher_IgnoresSiblingFiles(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "config.yaml")
	other := filepath.Join(tmpDir, "other.yaml")
	require.NoError(t, os.WriteFile(f, []byte("v1"), 0644))

	w, err := NewFileWatcher([]string{f}, WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)
	events := collect(w)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, events())
}

func TestFileWatcher_DetectsCreation(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "later.yaml")

	w, err := NewFileWatcher([]string{f}, WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)
	events := collect(w)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, os.WriteFile(f, []byte("v1"), 0644))
	require.Eventually(t, func() bool { return len(events()) > 0 }, 3*time.Second, 20*time.Millisecond)
}

// TestFileWatcher_Coalesces verifies that a burst of writes to the same path
// is dispatched once after the debounce window.
func TestFileWatcher_Coalesces(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "coalesce.yaml")
	require.NoError(t, os.WriteFile(f, []byte("v0"), 0644))

	w, err := NewFileWatcher([]string{f}, WithDebounceDelay(300*time.Millisecond))
	require.NoError(t, err)
	events := collect(w)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(f, []byte{byte('a' + i)}, 0644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(events()) > 0 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Len(t, events(), 1)
}

// --- Context cancellation stops watcher ---

func TestFileWatcher_ContextCancel(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(f, []byte("v1"), 0644))

	w, err := NewFileWatcher([]string{f})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())

	// The loop exits on cancel; running stays true until Stop releases resources
	cancel()
	time.Sleep(50 * time.Millisecond)
	assert.True(t, w.IsRunning())

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
}

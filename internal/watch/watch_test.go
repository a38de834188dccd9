package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"canvas-sync/internal/canvasmodel"
)

func newTestWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	w := New(dir)
	require.NoError(t, w.EnsureWorkspace())
	return w, dir
}

func collectBatches(t *testing.T, w *Watcher, timeout time.Duration) <-chan []canvasmodel.FSEvent {
	t.Helper()
	ch := make(chan []canvasmodel.FSEvent, 32)
	require.NoError(t, w.Start(func(batch []canvasmodel.FSEvent) {
		ch <- batch
	}))
	t.Cleanup(w.Stop)
	return ch
}

func TestWatcherEmitsCreatedEvent(t *testing.T) {
	w, dir := newTestWatcher(t)
	batches := collectBatches(t, w, 2*time.Second)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("world"), 0o644))

	select {
	case batch := <-batches:
		require.Len(t, batch, 1)
		evt := batch[0]
		if evt.Path != "hello.txt" {
			t.Fatalf("expected hello.txt, got %q", evt.Path)
		}
		require.Equal(t, canvasmodel.FSCreated, evt.Action, "a brand-new file must be reported as created, not modified")
		if evt.Content == nil || *evt.Content != "world" {
			t.Fatalf("expected content 'world', got %+v", evt.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for FSEvent batch")
	}
}

func TestSelfInflictedWriteIsSuppressed(t *testing.T) {
	w, _ := newTestWatcher(t)
	batches := collectBatches(t, w, 2*time.Second)

	require.NoError(t, w.WriteText("note.txt", "a"))

	select {
	case batch := <-batches:
		t.Fatalf("expected no FSEvent for self-inflicted write, got %+v", batch)
	case <-time.After(700 * time.Millisecond):
		// No event observed within debounce window + margin: correct.
	}
}

func TestExternalWriteAfterIgnoreExpiresIsObserved(t *testing.T) {
	w, _ := newTestWatcher(t)
	// A subsequent external modification to the same path must still
	// be observed once the ignore-set entry has expired.
	require.NoError(t, w.WriteText("note.txt", "a"))
	time.Sleep(canvasmodel.IgnoreSetTTL + 200*time.Millisecond)

	batches := collectBatches(t, w, 2*time.Second)
	abs := filepath.Join(w.Root(), "note.txt")
	require.NoError(t, os.WriteFile(abs, []byte("b"), 0o644))

	select {
	case batch := <-batches:
		require.Len(t, batch, 1)
		require.NotNil(t, batch[0].Content)
		require.Equal(t, "b", *batch[0].Content)
		require.Equal(t, canvasmodel.FSModified, batch[0].Action, "a write to an already-existing file must be reported as modified, not created")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for external modification event")
	}
}

func TestScanWorkspaceFindsExistingFiles(t *testing.T) {
	w, dir := newTestWatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "folder"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "folder", "b.txt"), []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".canvas.json"), []byte("{}"), 0o644))

	events, err := w.ScanWorkspace()
	require.NoError(t, err)

	paths := map[string]bool{}
	for _, e := range events {
		paths[string(e.Path)] = true
	}
	require.True(t, paths["a.txt"])
	require.True(t, paths["folder"])
	require.True(t, paths["folder/b.txt"])
	require.False(t, paths[".canvas.json"])
}

func TestDoubleStartFails(t *testing.T) {
	w, _ := newTestWatcher(t)
	require.NoError(t, w.Start(func([]canvasmodel.FSEvent) {}))
	defer w.Stop()
	err := w.Start(func([]canvasmodel.FSEvent) {})
	require.ErrorIs(t, err, canvasmodel.ErrAlreadyStarted)
}

package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-sync/internal/canvasmodel"
	"canvas-sync/internal/editorstore"
)

type fakeWatcher struct {
	writes  map[string]string
	binary  map[string][]byte
	deletes []string
	mkdirs  []string
	renames [][2]string
	scan    []canvasmodel.FSEvent
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{writes: map[string]string{}, binary: map[string][]byte{}}
}

func (f *fakeWatcher) WriteText(path, content string) error { f.writes[path] = content; return nil }
func (f *fakeWatcher) WriteBinary(path string, data []byte) error {
	f.binary[path] = data
	return nil
}
func (f *fakeWatcher) Delete(path string) error { f.deletes = append(f.deletes, path); return nil }
func (f *fakeWatcher) Mkdir(path string) error  { f.mkdirs = append(f.mkdirs, path); return nil }
func (f *fakeWatcher) Rename(oldPath, newPath string) error {
	f.renames = append(f.renames, [2]string{oldPath, newPath})
	if v, ok := f.writes[oldPath]; ok {
		delete(f.writes, oldPath)
		f.writes[newPath] = v
	}
	return nil
}
func (f *fakeWatcher) ScanWorkspace() ([]canvasmodel.FSEvent, error) { return f.scan, nil }

type fakeSnapshot struct {
	writes int
}

func (f *fakeSnapshot) ScheduleWrite(any, map[canvasmodel.ShapeID]canvasmodel.RelPath) { f.writes++ }
func (f *fakeSnapshot) FlushNow()                                                      {}
func (f *fakeSnapshot) Cancel()                                                        {}

func newTestController(t *testing.T) (*Controller, *editorstore.Store, *fakeWatcher) {
	t.Helper()
	store := editorstore.New()
	watcher := newFakeWatcher()
	c := New(Options{
		Store:    store,
		Watcher:  watcher,
		Snapshot: &fakeSnapshot{},
		Animator: immediateAnimator{},
	})
	require.NoError(t, c.Init(context.Background(), nil, nil))
	t.Cleanup(c.Dispose)
	return c, store, watcher
}

func TestForwardCreateTextShapeWritesFile(t *testing.T) {
	c, store, watcher := newTestController(t)

	err := store.Transact(canvasmodel.SourceUser, func(tx canvasmodel.Tx) {
		tx.Create(canvasmodel.Shape{ID: "shape:1", Kind: canvasmodel.ShapeNamedText, Name: "notes", Text: "hello"})
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", watcher.writes["notes.txt"])
	path, ok := c.paths.ShapeToPath("shape:1")
	require.True(t, ok)
	assert.Equal(t, canvasmodel.RelPath("notes.txt"), path)
}

func TestRemoteBatchMutationsNeverReachForwardPath(t *testing.T) {
	_, store, watcher := newTestController(t)

	err := store.Transact(canvasmodel.SourceRemote, func(tx canvasmodel.Tx) {
		tx.Create(canvasmodel.Shape{ID: "shape:1", Kind: canvasmodel.ShapeNamedText, Name: "notes", Text: "hello"})
	})
	require.NoError(t, err)

	assert.Empty(t, watcher.writes, "a SourceRemote transaction must never trigger a forward-path filesystem write")
}

func TestReverseCreateFromFSAddsShape(t *testing.T) {
	c, store, _ := newTestController(t)

	content := "from disk"
	c.handleFSChanges([]canvasmodel.FSEvent{
		{Action: canvasmodel.FSCreated, Path: "a.txt", Content: &content},
	})

	id, ok := c.paths.PathToShape("a.txt")
	require.True(t, ok)
	shape, ok := store.Shape(id)
	require.True(t, ok)
	assert.Equal(t, "from disk", shape.Text)
	assert.Equal(t, canvasmodel.ShapeNamedText, shape.Kind)
}

func TestReverseDeleteRemovesShape(t *testing.T) {
	c, store, _ := newTestController(t)
	content := "x"
	c.handleFSChanges([]canvasmodel.FSEvent{{Action: canvasmodel.FSCreated, Path: "a.txt", Content: &content}})
	id, ok := c.paths.PathToShape("a.txt")
	require.True(t, ok)

	c.handleFSChanges([]canvasmodel.FSEvent{{Action: canvasmodel.FSDeleted, Path: "a.txt"}})

	_, stillMapped := c.paths.PathToShape("a.txt")
	assert.False(t, stillMapped)
	_, stillExists := store.Shape(id)
	assert.False(t, stillExists)
}

func TestReverseMoveReparentsRatherThanRecreating(t *testing.T) {
	c, store, _ := newTestController(t)
	content := "x"
	c.handleFSChanges([]canvasmodel.FSEvent{{Action: canvasmodel.FSCreated, Path: "a.txt", Content: &content}})
	id, ok := c.paths.PathToShape("a.txt")
	require.True(t, ok)

	c.handleFSChanges([]canvasmodel.FSEvent{
		{Action: canvasmodel.FSDeleted, Path: "a.txt"},
		{Action: canvasmodel.FSCreated, Path: "sub/a.txt", Content: &content},
	})

	newID, ok := c.paths.PathToShape("sub/a.txt")
	require.True(t, ok)
	assert.Equal(t, id, newID, "a same-basename move must preserve shape identity")
	_, oldMapped := c.paths.PathToShape("a.txt")
	assert.False(t, oldMapped)

	shapesNow := store.AllShapes()
	assert.Len(t, shapesNow, 1, "a move must not create a duplicate shape")
}

func TestDisposeIsIdempotent(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Dispose()
	c.Dispose()
}

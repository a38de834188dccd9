package pathmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-sync/internal/canvasmodel"
)

func TestAssignAndLookup(t *testing.T) {
	m := New()
	require.NoError(t, m.Assign("shape:1", "hello.txt"))

	p, ok := m.ShapeToPath("shape:1")
	require.True(t, ok)
	assert.Equal(t, canvasmodel.RelPath("hello.txt"), p)

	s, ok := m.PathToShape("hello.txt")
	require.True(t, ok)
	assert.Equal(t, canvasmodel.ShapeID("shape:1"), s)
}

func TestAssignDuplicatePathRejected(t *testing.T) {
	m := New()
	require.NoError(t, m.Assign("shape:1", "hello.txt"))
	err := m.Assign("shape:2", "hello.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, canvasmodel.ErrDuplicatePath)
}

func TestForgetIsIdempotent(t *testing.T) {
	m := New()
	require.NoError(t, m.Assign("shape:1", "hello.txt"))
	m.Forget("shape:1")
	m.Forget("shape:1") // must not panic or error
	_, ok := m.ShapeToPath("shape:1")
	assert.False(t, ok)
}

func TestRenameAtomicity(t *testing.T) {
	m := New()
	require.NoError(t, m.Assign("shape:1", "a.txt"))
	require.NoError(t, m.Rename("a.txt", "folder/a.txt"))

	_, ok := m.PathToShape("a.txt")
	assert.False(t, ok)

	s, ok := m.PathToShape("folder/a.txt")
	require.True(t, ok)
	assert.Equal(t, canvasmodel.ShapeID("shape:1"), s)

	p, ok := m.ShapeToPath("shape:1")
	require.True(t, ok)
	assert.Equal(t, canvasmodel.RelPath("folder/a.txt"), p)
}

func TestFrameRenamedCascade(t *testing.T) {
	m := New()
	require.NoError(t, m.Assign("shape:a", "folder/a.txt"))
	require.NoError(t, m.Assign("shape:b", "folder/b.txt"))
	require.NoError(t, m.Assign("shape:f", "folder"))

	m.FrameRenamed("folder", "stuff")

	pa, ok := m.ShapeToPath("shape:a")
	require.True(t, ok)
	assert.Equal(t, canvasmodel.RelPath("stuff/a.txt"), pa)

	pb, ok := m.ShapeToPath("shape:b")
	require.True(t, ok)
	assert.Equal(t, canvasmodel.RelPath("stuff/b.txt"), pb)

	// The frame's own path is not under "folder/" so it is untouched
	// by FrameRenamed; the caller is responsible for renaming the
	// frame's own entry via Rename.
	pf, ok := m.ShapeToPath("shape:f")
	require.True(t, ok)
	assert.Equal(t, canvasmodel.RelPath("folder"), pf)
}

func TestEnsureUniquePathDedup(t *testing.T) {
	m := New()
	require.NoError(t, m.Assign("shape:1", "hello.txt"))

	got := m.EnsureUniquePath("hello.txt", "")
	assert.Equal(t, canvasmodel.RelPath("hello-1.txt"), got)

	require.NoError(t, m.Assign("shape:2", got))
	got2 := m.EnsureUniquePath("hello.txt", "")
	assert.Equal(t, canvasmodel.RelPath("hello-2.txt"), got2)
}

func TestEnsureUniquePathReservedSkipsSelf(t *testing.T) {
	m := New()
	require.NoError(t, m.Assign("shape:1", "hello.txt"))

	// Renaming shape:1's own path back to itself should not dedupe
	// against itself when reserved == "hello.txt".
	got := m.EnsureUniquePath("hello.txt", "hello.txt")
	assert.Equal(t, canvasmodel.RelPath("hello.txt"), got)
}

func TestEnsureUniquePathRespectsKnownPaths(t *testing.T) {
	m := New()
	m.SetKnown("hello-1.txt", canvasmodel.KnownMeta{})
	require.NoError(t, m.Assign("shape:1", "hello.txt"))

	got := m.EnsureUniquePath("hello.txt", "")
	assert.Equal(t, canvasmodel.RelPath("hello-2.txt"), got)
}

func TestCheckInvariantsPasses(t *testing.T) {
	m := New()
	require.NoError(t, m.Assign("shape:1", "a.txt"))
	require.NoError(t, m.Assign("shape:2", "folder"))
	assert.NoError(t, m.CheckInvariants())
}

func TestKnownPathsIncludesUnassigned(t *testing.T) {
	m := New()
	m.SetKnown("unassigned.png", canvasmodel.KnownMeta{IsDirectory: false})
	require.NoError(t, m.Assign("shape:1", "a.txt"))

	paths := m.KnownPaths()
	assert.Contains(t, paths, canvasmodel.RelPath("unassigned.png"))
	assert.Contains(t, paths, canvasmodel.RelPath("a.txt"))
}

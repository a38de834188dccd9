package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-sync/internal/canvasmodel"
	"canvas-sync/internal/pathmap"
)

func i64(v int64) *int64 { return &v }
func str(v string) *string { return &v }

func TestDetectMovesTier1SameBasenameDifferentDir(t *testing.T) {
	paths := pathmap.New()
	require.NoError(t, paths.Assign("shape:1", "a.txt"))

	deletes := []canvasmodel.FSEvent{{Path: "a.txt"}}
	creates := []canvasmodel.FSEvent{{Path: "sub/a.txt"}}

	pairs, remDel, remCr := detectMoves(deletes, creates, paths)
	require.Len(t, pairs, 1)
	assert.Equal(t, canvasmodel.RelPath("a.txt"), pairs[0].del.Path)
	assert.Equal(t, canvasmodel.RelPath("sub/a.txt"), pairs[0].create.Path)
	assert.Empty(t, remDel)
	assert.Empty(t, remCr)
}

func TestDetectMovesIgnoresUnknownPaths(t *testing.T) {
	paths := pathmap.New() // "a.txt" never assigned to a shape

	deletes := []canvasmodel.FSEvent{{Path: "a.txt"}}
	creates := []canvasmodel.FSEvent{{Path: "sub/a.txt"}}

	pairs, remDel, remCr := detectMoves(deletes, creates, paths)
	assert.Empty(t, pairs)
	assert.Len(t, remDel, 1)
	assert.Len(t, remCr, 1)
}

func TestDetectMovesTier2ContentMatch(t *testing.T) {
	paths := pathmap.New()
	require.NoError(t, paths.Assign("shape:1", "old-name.txt"))

	deletes := []canvasmodel.FSEvent{{Path: "old-name.txt", Content: str("same body")}}
	creates := []canvasmodel.FSEvent{{Path: "new-name.txt", Content: str("same body")}}

	pairs, remDel, remCr := detectMoves(deletes, creates, paths)
	require.Len(t, pairs, 1)
	assert.Empty(t, remDel)
	assert.Empty(t, remCr)
}

func TestDetectMovesTier2AmbiguousRejected(t *testing.T) {
	paths := pathmap.New()
	require.NoError(t, paths.Assign("shape:1", "old.txt"))

	deletes := []canvasmodel.FSEvent{{Path: "old.txt", Content: str("body")}}
	creates := []canvasmodel.FSEvent{
		{Path: "a.txt", Content: str("body")},
		{Path: "b.txt", Content: str("body")},
	}

	pairs, remDel, remCr := detectMoves(deletes, creates, paths)
	assert.Empty(t, pairs, "two equally-good tier2 candidates must not be paired")
	assert.Len(t, remDel, 1)
	assert.Len(t, remCr, 2)
}

func TestDetectMovesTier2SizeAndMTimeMatch(t *testing.T) {
	paths := pathmap.New()
	require.NoError(t, paths.Assign("shape:1", "old.png"))

	deletes := []canvasmodel.FSEvent{{Path: "old.png", Size: i64(1024), MTimeMs: i64(5000)}}
	creates := []canvasmodel.FSEvent{{Path: "new.png", Size: i64(1024), MTimeMs: i64(5000)}}

	pairs, _, _ := detectMoves(deletes, creates, paths)
	require.Len(t, pairs, 1)
}

func TestDetectMovesDirectoriesNeverParticipate(t *testing.T) {
	paths := pathmap.New()
	require.NoError(t, paths.Assign("shape:1", "folder"))

	deletes := []canvasmodel.FSEvent{{Path: "folder", IsDirectory: true}}
	creates := []canvasmodel.FSEvent{{Path: "renamed-folder", IsDirectory: true}}

	pairs, remDel, remCr := detectMoves(deletes, creates, paths)
	assert.Empty(t, pairs)
	assert.Len(t, remDel, 1)
	assert.Len(t, remCr, 1)
}

package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-sync/internal/canvasmodel"
)

type fakeDecoder struct {
	w, h int
	err  error
}

func (f fakeDecoder) Dimensions(context.Context, string) (int, int, error) {
	return f.w, f.h, f.err
}

type fakeUploader struct {
	src string
	err error
}

func (f fakeUploader) Upload(context.Context, []byte, string) (string, error) {
	return f.src, f.err
}

func TestCreateImageFromFSBindsDimensionsAndSrc(t *testing.T) {
	c, store, _ := newTestController(t)
	c.decoder = fakeDecoder{w: 960, h: 640}
	c.uploader = fakeUploader{src: "asset/pic.png"}

	c.handleFSChanges([]canvasmodel.FSEvent{
		{Action: canvasmodel.FSCreated, Path: "pic.png"},
	})

	id, ok := c.paths.PathToShape("pic.png")
	require.True(t, ok)
	shape, ok := store.Shape(id)
	require.True(t, ok)
	assert.Equal(t, canvasmodel.ShapeImage, shape.Kind)
	assert.Equal(t, "asset/pic.png", shape.AssetID)
	// 960x640 exceeds MaxImageDisplayDim(480) on the long axis, so it
	// must be scaled down preserving aspect ratio rather than kept raw.
	assert.InDelta(t, 480.0, shape.W, 0.01)
	assert.InDelta(t, 320.0, shape.H, 0.01)
}

func TestApplyImageModifyRecomputesDimensionsAndCacheBustsSrc(t *testing.T) {
	c, store, _ := newTestController(t)
	c.decoder = fakeDecoder{w: 100, h: 100}
	c.uploader = fakeUploader{src: "asset/pic.png"}
	c.handleFSChanges([]canvasmodel.FSEvent{{Action: canvasmodel.FSCreated, Path: "pic.png"}})
	id, ok := c.paths.PathToShape("pic.png")
	require.True(t, ok)

	c.decoder = fakeDecoder{w: 200, h: 150}
	mtime := int64(123456)
	c.handleFSChanges([]canvasmodel.FSEvent{
		{Action: canvasmodel.FSModified, Path: "pic.png", MTimeMs: &mtime},
	})

	shape, ok := store.Shape(id)
	require.True(t, ok)
	assert.InDelta(t, 200.0, shape.W, 0.01)
	assert.InDelta(t, 150.0, shape.H, 0.01)
	assert.Equal(t, "asset/pic.png?v=123456", shape.AssetID)
}

func TestRecreateAfterCompletedDeleteCreatesFreshShape(t *testing.T) {
	c, store, _ := newTestController(t)
	content := "x"
	c.handleFSChanges([]canvasmodel.FSEvent{{Action: canvasmodel.FSCreated, Path: "a.txt", Content: &content}})
	id, ok := c.paths.PathToShape("a.txt")
	require.True(t, ok)

	c.handleFSChanges([]canvasmodel.FSEvent{{Action: canvasmodel.FSDeleted, Path: "a.txt"}})
	// immediateAnimator fires the finalizer synchronously, so by now the
	// shape is gone and pendingDeletes has already been released; this
	// test only exercises that a delete-in-flight guard exists and does
	// not itself corrupt normal (non-racing) recreate behavior.
	_, stillExists := store.Shape(id)
	assert.False(t, stillExists)

	content2 := "y"
	c.handleFSChanges([]canvasmodel.FSEvent{{Action: canvasmodel.FSCreated, Path: "a.txt", Content: &content2}})
	newID, ok := c.paths.PathToShape("a.txt")
	require.True(t, ok)
	shape, ok := store.Shape(newID)
	require.True(t, ok)
	assert.Equal(t, "y", shape.Text)
}

package snapshot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-sync/internal/canvasmodel"
)

type fakeIO struct {
	mu   sync.Mutex
	data []byte
	err  error
}

func (f *fakeIO) ReadCanvasJSON() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.data == nil {
		return nil, assert.AnError
	}
	return f.data, nil
}

func (f *fakeIO) WriteCanvasJSON(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
	return nil
}

func TestLoadAbsentReturnsNotOK(t *testing.T) {
	io := &fakeIO{}
	store := New(io)
	doc, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, doc)
}

func TestLoadCorruptTreatedAsAbsent(t *testing.T) {
	io := &fakeIO{data: []byte("not json")}
	store := New(io)
	doc, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, doc)
}

func TestScheduleWriteDebouncesAndFlushes(t *testing.T) {
	io := &fakeIO{}
	store := New(io).WithDebounce(30 * time.Millisecond)

	mapping := map[canvasmodel.ShapeID]canvasmodel.RelPath{"shape:1": "hello.txt"}
	store.ScheduleWrite(map[string]any{"x": 1}, mapping)

	io.mu.Lock()
	before := io.data
	io.mu.Unlock()
	assert.Nil(t, before, "write should not happen before the debounce window elapses")

	time.Sleep(100 * time.Millisecond)

	io.mu.Lock()
	after := io.data
	io.mu.Unlock()
	require.NotNil(t, after)

	store2 := New(io)
	doc, ok, err := store2.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, canvasmodel.RelPath("hello.txt"), doc.ShapeToFile["shape:1"])
}

func TestScheduleWriteCoalescesBursts(t *testing.T) {
	io := &fakeIO{}
	store := New(io).WithDebounce(40 * time.Millisecond)

	store.ScheduleWrite(map[string]any{"v": 1}, nil)
	time.Sleep(10 * time.Millisecond)
	store.ScheduleWrite(map[string]any{"v": 2}, nil)

	time.Sleep(100 * time.Millisecond)

	doc, ok, err := New(io).Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(doc.Tldraw))
}

func TestFlushNowWritesImmediately(t *testing.T) {
	io := &fakeIO{}
	store := New(io).WithDebounce(time.Hour)
	store.ScheduleWrite(map[string]any{"v": 1}, nil)
	store.FlushNow()

	io.mu.Lock()
	defer io.mu.Unlock()
	require.NotNil(t, io.data)
}

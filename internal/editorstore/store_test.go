package editorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-sync/internal/canvasmodel"
)

func TestUserTransactNotifiesSubscribers(t *testing.T) {
	s := New()
	var got canvasmodel.Delta
	calls := 0
	cancel := s.Subscribe(func(d canvasmodel.Delta) { got = d; calls++ })
	defer cancel()

	err := s.Transact(canvasmodel.SourceUser, func(tx canvasmodel.Tx) {
		tx.Create(canvasmodel.Shape{ID: "shape:1", Name: "a"})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, got.Added, 1)
	assert.Equal(t, canvasmodel.ShapeID("shape:1"), got.Added[0].ID)
}

func TestRemoteTransactDoesNotNotifySubscribers(t *testing.T) {
	s := New()
	calls := 0
	cancel := s.Subscribe(func(canvasmodel.Delta) { calls++ })
	defer cancel()

	err := s.Transact(canvasmodel.SourceRemote, func(tx canvasmodel.Tx) {
		tx.Create(canvasmodel.Shape{ID: "shape:1"})
	})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func TestCancelledSubscriptionStopsReceiving(t *testing.T) {
	s := New()
	calls := 0
	cancel := s.Subscribe(func(canvasmodel.Delta) { calls++ })
	cancel()

	_ = s.Transact(canvasmodel.SourceUser, func(tx canvasmodel.Tx) {
		tx.Create(canvasmodel.Shape{ID: "shape:1"})
	})
	assert.Equal(t, 0, calls)
}

func TestUpdateReportsChangedFields(t *testing.T) {
	s := New()
	_ = s.Transact(canvasmodel.SourceRemote, func(tx canvasmodel.Tx) {
		tx.Create(canvasmodel.Shape{ID: "shape:1", Name: "old", ParentID: "frame:a"})
	})

	var got canvasmodel.ShapeUpdate
	_ = s.Transact(canvasmodel.SourceUser, func(tx canvasmodel.Tx) {
		tx.Update("shape:1", func(sh *canvasmodel.Shape) {
			sh.Name = "new"
			sh.ParentID = "frame:b"
		})
	})
	cancel := s.Subscribe(func(d canvasmodel.Delta) {
		if len(d.Updated) > 0 {
			got = d.Updated[0]
		}
	})
	defer cancel()
	_ = s.Transact(canvasmodel.SourceUser, func(tx canvasmodel.Tx) {
		tx.Update("shape:1", func(sh *canvasmodel.Shape) { sh.Name = "newer" })
	})

	assert.True(t, got.NameChanged)
	assert.False(t, got.ParentChanged)
	assert.Equal(t, "new", got.PrevName)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New()
	_ = s.Transact(canvasmodel.SourceRemote, func(tx canvasmodel.Tx) {
		tx.Create(canvasmodel.Shape{ID: "shape:1", Name: "a", Text: "hello"})
	})

	snap, err := s.Snapshot()
	require.NoError(t, err)

	s2 := New()
	require.NoError(t, s2.Restore(snap))
	sh, ok := s2.Shape("shape:1")
	require.True(t, ok)
	assert.Equal(t, "hello", sh.Text)
}

func TestDeleteRemovesFromAllShapes(t *testing.T) {
	s := New()
	_ = s.Transact(canvasmodel.SourceUser, func(tx canvasmodel.Tx) {
		tx.Create(canvasmodel.Shape{ID: "shape:1"})
	})
	_ = s.Transact(canvasmodel.SourceUser, func(tx canvasmodel.Tx) {
		tx.Delete("shape:1")
	})
	assert.Empty(t, s.AllShapes())
}

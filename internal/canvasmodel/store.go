package canvasmodel

import "context"

// Shape is the subset of an editor shape record the core touches. Per
// design note "dynamic record shapes," everything the editor library
// attaches beyond these fields is treated as an opaque blob the core
// persists verbatim (Extra).
type Shape struct {
	ID       ShapeID
	Kind     ShapeKind
	ParentID ShapeID // "" at page root
	X, Y     float64
	W, H     float64
	Name     string  // NamedText/Frame display name (no extension)
	Text     string  // NamedText body
	AssetID  string  // Image: bound asset identifier
	Opacity  float64 // 0..1, used by the animated-apply pipeline

	// Extra carries whatever else the concrete editor attaches to a
	// shape record (rotation, style, locked, etc.) so the core never
	// needs to know the full record shape.
	Extra map[string]any
}

// Delta is one batch of user-originated store changes, already
// filtered to source=user by the caller. Records are partitioned by
// the controller into added/updated/removed.
type Delta struct {
	Added   []Shape
	Updated []ShapeUpdate
	Removed []ShapeID
}

// ShapeUpdate pairs a shape's new state with the fields that changed,
// since the forward-path table in spec 4.4.2 dispatches on exactly
// which field changed.
type ShapeUpdate struct {
	Shape         Shape
	ParentChanged bool
	NameChanged   bool
	TextChanged   bool
	PrevParentID  ShapeID
	PrevName      string
}

// TransactSource tags whether a store mutation should be visible to
// the user-delta subscription. Remote-batch mutations use
// SourceRemote so the forward-path subscriber (scoped to SourceUser)
// never observes them -- this is the loop-suppression discipline of
// spec 4.4.1.
type TransactSource int

const (
	SourceUser TransactSource = iota
	SourceRemote
)

// Store is the narrow interface the editor library sits behind. The
// core only ever calls these methods; it never touches editor
// internals directly. A concrete adapter for a real 2D canvas library
// implements this; internal/editorstore provides an in-memory
// reference implementation for tests and the demo binary.
type Store interface {
	// Subscribe registers an observer for committed deltas. Only
	// deltas whose originating Transact call used SourceUser are
	// delivered -- this is the "scoped to source=user" subscription
	// from spec 4.4.2. Returns a cancellation handle (design note:
	// "model as an explicit observer registration returning a
	// cancellation handle" rather than a mutable callback ref).
	Subscribe(fn func(Delta)) (cancel func())

	// Transact runs fn as a single store transaction attributed to
	// source. A SourceRemote transaction is a "remote batch" per spec
	// 4.4.1 and is invisible to Subscribe.
	Transact(source TransactSource, fn func(tx Tx)) error

	// Snapshot returns an opaque, JSON-serializable editor snapshot
	// for persistence. The core never interprets its contents.
	Snapshot() (any, error)

	// Restore replaces the store's state from a previously-taken
	// snapshot. Must be called inside a remote batch by the caller.
	Restore(snapshot any) error

	// Shape looks up a shape by ID; ok is false if absent.
	Shape(id ShapeID) (Shape, bool)

	// AllShapes returns every shape currently in the store (used by
	// getAllCanvasItems and by reconciliation).
	AllShapes() []Shape

	// ZoomToFit requests a viewport fit-to-content; a no-op for a
	// headless store.
	ZoomToFit()
}

// Tx is the mutation surface available inside a Transact callback.
type Tx interface {
	Create(s Shape)
	Update(id ShapeID, mutate func(s *Shape))
	Delete(id ShapeID)
}

// ImageDecoder abstracts the asynchronous image-dimension decode step
// from spec 4.4.6. A real implementation loads the file and decodes
// its header; decode failure falls back to the (300,200) placeholder
// per spec section 7.
type ImageDecoder interface {
	Dimensions(ctx context.Context, path string) (width, height int, err error)
}

// Uploader abstracts the asset upload pipeline for user-dragged
// images (spec 4.4.6, "upload-originated"). It returns the canonical
// workspace-relative src path the asset was written to.
type Uploader interface {
	Upload(ctx context.Context, data []byte, suggestedName string) (src string, err error)
}

// AnnotationExporter abstracts the editor's SVG/raster export
// pipeline used by the annotation-export pass (spec 4.4.8).
type AnnotationExporter interface {
	ExportPNG(ctx context.Context, shapeIDs []ShapeID, pixelRatio float64) ([]byte, error)
}

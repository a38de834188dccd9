// Package sync implements the SyncController: the client-side heart
// of the bidirectional sync engine. It holds the PathMap, subscribes
// to local editor deltas and remote FSEvent batches, and maintains the
// loop-suppression discipline, move detector, animated-apply pipeline,
// image pipeline, startup reconciliation, and annotation export pass.
// See spec section 4.4.
package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"canvas-sync/internal/canvasmodel"
	"canvas-sync/internal/pathmap"
)

// WatcherOps is the subset of watch.Watcher the controller needs. A
// narrow interface here keeps the controller testable against a fake
// without depending on the concrete fsnotify-backed implementation.
type WatcherOps interface {
	WriteText(path string, content string) error
	WriteBinary(path string, data []byte) error
	Delete(path string) error
	Mkdir(path string) error
	Rename(oldPath, newPath string) error
	ScanWorkspace() ([]canvasmodel.FSEvent, error)
}

// SnapshotWriter is the subset of snapshot.Store the controller
// schedules debounced write-throughs against.
type SnapshotWriter interface {
	ScheduleWrite(tldraw any, shapeToFile map[canvasmodel.ShapeID]canvasmodel.RelPath)
	FlushNow()
	Cancel()
}

// HistorySink optionally records every FSEvent/CanvasSyncChange the
// controller processes, for the diagnostic history log
// (internal/history). Nil is a valid no-op sink.
type HistorySink interface {
	RecordFSEvent(canvasmodel.FSEvent)
	RecordCanvasChange(canvasmodel.CanvasSyncChange)
}

// Animator schedules a callback after a delay, modeling the editor's
// tween/animation timing (create fade-in, delete fade-out, zoom-to-fit
// headroom) as explicit suspension points rather than blocking sleeps.
// The reference implementation below uses time.AfterFunc; tests can
// substitute an immediate-fire animator.
type Animator interface {
	After(d time.Duration, fn func())
}

type realAnimator struct{}

func (realAnimator) After(d time.Duration, fn func()) { time.AfterFunc(d, fn) }

// immediateAnimator fires synchronously; used by tests that want
// deterministic completion without sleeping.
type immediateAnimator struct{}

func (immediateAnimator) After(_ time.Duration, fn func()) { fn() }

// Controller is the SyncController of spec section 4.4.
type Controller struct {
	store    canvasmodel.Store
	watcher  WatcherOps
	snapshot SnapshotWriter
	history  HistorySink
	decoder  canvasmodel.ImageDecoder
	uploader canvasmodel.Uploader
	exporter canvasmodel.AnnotationExporter
	animator Animator

	paths *pathmap.PathMap

	mu             sync.Mutex
	pendingDeletes map[canvasmodel.ShapeID]struct{}
	annotated      map[canvasmodel.RelPath]struct{} // images currently known to have an annotated export
	annotateTimer  *time.Timer
	viewport       Viewport

	unsubscribeUser func()
	disposed        bool

	bgCtx context.Context
}

// Options configures a Controller at construction time. Zero-valued
// optional fields fall back to no-op behavior (e.g. a nil Uploader
// means upload-originated images are never expected).
type Options struct {
	Store    canvasmodel.Store
	Watcher  WatcherOps
	Snapshot SnapshotWriter
	History  HistorySink
	Decoder  canvasmodel.ImageDecoder
	Uploader canvasmodel.Uploader
	Exporter canvasmodel.AnnotationExporter
	Animator Animator
}

// New constructs a Controller. Call Init to seed it from persisted
// state and start the forward-path subscription.
func New(opts Options) *Controller {
	anim := opts.Animator
	if anim == nil {
		anim = realAnimator{}
	}
	return &Controller{
		store:          opts.Store,
		watcher:        opts.Watcher,
		snapshot:       opts.Snapshot,
		history:        opts.History,
		decoder:        opts.Decoder,
		uploader:       opts.Uploader,
		exporter:       opts.Exporter,
		animator:       anim,
		paths:          pathmap.New(),
		pendingDeletes: make(map[canvasmodel.ShapeID]struct{}),
		annotated:      make(map[canvasmodel.RelPath]struct{}),
		viewport:       Viewport{X: 0, Y: 0, W: 800, H: 600},
	}
}

// PathMap exposes the controller's PathMap for diagnostics/tests.
func (c *Controller) PathMap() *pathmap.PathMap { return c.paths }

// remoteBatch wraps fn as a single remote-batch transaction (spec
// 4.4.1): the editor store is told to attribute the change to a
// non-user source, so the forward-path subscription (scoped to
// source=user) never observes it. Every controller-initiated shape
// mutation must go through this.
func (c *Controller) remoteBatch(fn func(tx canvasmodel.Tx)) {
	if err := c.store.Transact(canvasmodel.SourceRemote, fn); err != nil {
		slog.Error("sync: remote batch failed", "component", "sync", "error", err)
	}
}

// Init seeds known-paths/known-meta from files, restores a prior
// snapshot if present (reconciling it against the filesystem) or
// bootstraps fresh from files, then starts the forward-path
// subscription. See spec section 4.4.7.
func (c *Controller) Init(ctx context.Context, doc *Snapshot, files []canvasmodel.FSEvent) error {
	c.bgCtx = ctx
	for _, f := range files {
		c.paths.SetKnown(f.Path, canvasmodel.KnownMeta{
			Size:        f.Size,
			MTimeMs:     f.MTimeMs,
			Content:     f.Content,
			IsDirectory: f.IsDirectory,
		})
	}

	if doc != nil {
		c.remoteBatch(func(tx canvasmodel.Tx) {
			_ = c.store.Restore(doc.Tldraw)
		})
		for shape, path := range doc.ShapeToFile {
			_ = c.paths.Assign(shape, path)
		}
		c.reconcile(ctx, files)
	} else if len(files) > 0 {
		c.bootstrap(ctx, files)
	}

	c.clampOversizedImages()
	c.store.ZoomToFit()

	c.unsubscribeUser = c.store.Subscribe(c.handleUserDelta)
	return nil
}

// Snapshot is the in-memory form of the persisted sentinel document,
// decoupled from the JSON wire encoding in internal/snapshot.
type Snapshot struct {
	Tldraw      any
	ShapeToFile map[canvasmodel.ShapeID]canvasmodel.RelPath
}

// Dispose cancels the forward-path subscription, stops the pending
// annotation timer and cancels the pending snapshot write. Delete
// finalizers already scheduled on the Animator and running image-asset
// polls are not cancelled.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	if c.unsubscribeUser != nil {
		c.unsubscribeUser()
	}
	if c.annotateTimer != nil {
		c.annotateTimer.Stop()
		c.annotateTimer = nil
	}
	c.snapshot.Cancel()
}

// GetAllCanvasItems returns every shape currently in the store,
// exposing the controller's small imperative surface per spec 4.4.
func (c *Controller) GetAllCanvasItems() []canvasmodel.Shape {
	return c.store.AllShapes()
}

// scheduleSnapshotWrite asks the SnapshotStore to persist the current
// converged state, debounced. Called after every batch of mutations
// settles (forward or reverse path).
func (c *Controller) scheduleSnapshotWrite() {
	snap, err := c.store.Snapshot()
	if err != nil {
		slog.Error("sync: failed to snapshot editor store", "component", "sync", "error", err)
		return
	}
	c.snapshot.ScheduleWrite(snap, c.paths.Pairs())
}

// HandleFSChanges is the exported Sink entry point passed to
// watch.Watcher.Start; it runs the reverse path (spec 4.4.3).
func (c *Controller) HandleFSChanges(batch []canvasmodel.FSEvent) {
	c.handleFSChanges(batch)
}

func (c *Controller) recordFSEvent(e canvasmodel.FSEvent) {
	if c.history != nil {
		c.history.RecordFSEvent(e)
	}
}

func (c *Controller) recordCanvasChange(ch canvasmodel.CanvasSyncChange) {
	if c.history != nil {
		c.history.RecordCanvasChange(ch)
	}
}

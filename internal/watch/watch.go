// Package watch implements the WorkspaceWatcher: it turns raw
// fsnotify notifications into a normalized, debounced, self-suppressing
// stream of canvasmodel.FSEvent batches, and performs the mutating
// filesystem operations the sync controller issues on the forward
// path, marking their own provoked notifications so they are never
// re-emitted. See spec section 4.2.
package watch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"canvas-sync/internal/canvasmodel"
)

// Sink receives a batch of normalized events in delivery order. The
// controller's handleFSChanges is the production sink.
type Sink func(batch []canvasmodel.FSEvent)

// Watcher is the WorkspaceWatcher of spec section 4.2.
type Watcher struct {
	root string

	// ExcludeGlobs are doublestar patterns (e.g. "**/*.tmp") matched
	// against the workspace-relative path, in addition to the
	// built-in sentinel/hidden-segment filter.
	ExcludeGlobs []string

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	watched map[string]struct{}
	started bool
	stopCh  chan struct{}

	ignoreMu sync.Mutex
	ignore   map[string]time.Time

	debMu     sync.Mutex
	debounced map[string]pendingEvent

	flushTick *time.Ticker
}

type pendingEvent struct {
	readyAt time.Time
	rawKind fsnotify.Op
}

// New creates a Watcher rooted at root. Call EnsureWorkspace before
// Start to create the directory if it doesn't exist.
func New(root string) *Watcher {
	return &Watcher{
		root:      filepath.Clean(root),
		watched:   make(map[string]struct{}),
		ignore:    make(map[string]time.Time),
		debounced: make(map[string]pendingEvent),
	}
}

// Root returns the absolute workspace root.
func (w *Watcher) Root() string { return w.root }

// EnsureWorkspace idempotently creates the workspace directory.
func (w *Watcher) EnsureWorkspace() error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("watch: ensure workspace: %w", err)
	}
	return nil
}

// Start begins delivering FSEvent batches to sink. Must be called at
// most once per instance.
func (w *Watcher) Start(sink Sink) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return canvasmodel.ErrAlreadyStarted
	}
	w.started = true
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: start: %w", err)
	}
	w.fsw = fsw
	w.stopCh = make(chan struct{})

	w.addWatch(w.root)
	entries, _ := os.ReadDir(w.root)
	for _, e := range entries {
		if e.IsDir() {
			w.addWatch(filepath.Join(w.root, e.Name()))
		}
	}

	w.flushTick = time.NewTicker(50 * time.Millisecond)

	go w.flushLoop(sink)
	go w.eventLoop()

	return nil
}

// Stop cancels all pending debounces and detaches the underlying
// watcher. Safe to call once; subsequent calls are no-ops.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()

	close(w.stopCh)
	if w.flushTick != nil {
		w.flushTick.Stop()
	}
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
}

func (w *Watcher) addWatch(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[dir]; ok {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		slog.Debug("watch: failed to add watcher", "component", "watcher", "dir", dir, "error", err)
		return
	}
	w.watched[dir] = struct{}{}
	slog.Debug("watch: watching directory", "component", "watcher", "dir", dir)
}

// markIgnored records each given path (children of a directory are
// not added) in the ignore set for IgnoreSetTTL, so the notification
// the operation itself provokes is discarded at debounce-fire time.
func (w *Watcher) markIgnored(absPaths ...string) {
	w.ignoreMu.Lock()
	defer w.ignoreMu.Unlock()
	now := time.Now()
	for _, p := range absPaths {
		w.ignore[filepath.Clean(p)] = now.Add(canvasmodel.IgnoreSetTTL)
	}
}

func (w *Watcher) consumeIgnored(absPath string) bool {
	w.ignoreMu.Lock()
	defer w.ignoreMu.Unlock()
	clean := filepath.Clean(absPath)
	expiry, ok := w.ignore[clean]
	if !ok {
		return false
	}
	delete(w.ignore, clean)
	return time.Now().Before(expiry)
}

// sweepExpiredIgnores drops stale ignore-set entries so the map
// doesn't grow unboundedly if a provoked notification never arrives.
func (w *Watcher) sweepExpiredIgnores() {
	w.ignoreMu.Lock()
	defer w.ignoreMu.Unlock()
	now := time.Now()
	for p, exp := range w.ignore {
		if now.After(exp) {
			delete(w.ignore, p)
		}
	}
}

func (w *Watcher) shouldFilter(rel string) bool {
	if rel == "" || rel == "." {
		return true
	}
	rel = filepath.ToSlash(rel)
	if rel == canvasmodel.SentinelFile {
		return true
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	for _, pattern := range w.ExcludeGlobs {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) relPath(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRaw(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Debug("watch: watcher error", "component", "watcher", "error", err)
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) handleRaw(ev fsnotify.Event) {
	rel, ok := w.relPath(ev.Name)
	if !ok || w.shouldFilter(rel) {
		return
	}

	if ev.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addWatch(ev.Name)
		}
	}

	w.debMu.Lock()
	pe := w.debounced[rel]
	pe.readyAt = time.Now().Add(canvasmodel.FSDebounce)
	// OR raw ops together rather than overwrite: a create immediately
	// followed by a write within the same debounce window must still
	// classify as created, not lose that signal to the later write.
	pe.rawKind |= ev.Op
	w.debounced[rel] = pe
	w.debMu.Unlock()
}

func (w *Watcher) flushLoop(sink Sink) {
	for {
		select {
		case <-w.flushTick.C:
			w.sweepExpiredIgnores()
			batch := w.collectReady()
			if len(batch) > 0 {
				sink(batch)
			}
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) collectReady() []canvasmodel.FSEvent {
	now := time.Now()
	ready := make(map[string]fsnotify.Op)
	w.debMu.Lock()
	for rel, pe := range w.debounced {
		if now.After(pe.readyAt) || now.Equal(pe.readyAt) {
			ready[rel] = pe.rawKind
			delete(w.debounced, rel)
		}
	}
	w.debMu.Unlock()

	var out []canvasmodel.FSEvent
	for rel, rawKind := range ready {
		abs := filepath.Join(w.root, filepath.FromSlash(rel))
		if w.consumeIgnored(abs) {
			continue
		}
		evt, ok := w.classifyAndEnrich(rel, abs, rawKind)
		if !ok {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// classifyAndEnrich implements the stat/classify/enrich algorithm of
// spec 4.2 step 3: stat races and read failures are dropped/degraded
// silently per spec section 7. rawKind is the coalesced fsnotify op(s)
// observed for this path during its debounce window; it decides
// created vs modified (step 3: "emit modified if the raw kind
// indicated a change to existing entry, else created").
func (w *Watcher) classifyAndEnrich(rel, abs string, rawKind fsnotify.Op) (canvasmodel.FSEvent, bool) {
	info, err := os.Stat(abs)
	now := time.Now().UnixMilli()
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Debug("watch: stat race, dropping event", "component", "watcher", "path", rel, "error", err)
			return canvasmodel.FSEvent{}, false
		}
		isDir := filepath.Ext(rel) == ""
		return canvasmodel.FSEvent{
			Action:      canvasmodel.FSDeleted,
			Path:        canvasmodel.RelPath(rel),
			IsDirectory: isDir,
			Timestamp:   now,
		}, true
	}

	evt := canvasmodel.FSEvent{
		Path:        canvasmodel.RelPath(rel),
		IsDirectory: info.IsDir(),
		Timestamp:   now,
	}

	// Default to created; a change to an entry the raw op reports as
	// already existing (write/chmod with no accompanying create) is
	// the only thing that downgrades to modified.
	evt.Action = canvasmodel.FSCreated
	if rawKind&fsnotify.Create == 0 && rawKind&(fsnotify.Write|fsnotify.Chmod) != 0 {
		evt.Action = canvasmodel.FSModified
	}

	if info.IsDir() {
		return evt, true
	}

	size := info.Size()
	mtime := info.ModTime().UnixMilli()
	evt.Size = &size
	evt.MTimeMs = &mtime

	ext := strings.ToLower(filepath.Ext(rel))
	isText := ext == ".txt" || ext == ".md"

	if isText {
		content, err := os.ReadFile(abs)
		if err != nil {
			slog.Debug("watch: read failed, degrading to metadata-only event", "component", "watcher", "path", rel, "error", err)
		} else {
			s := string(content)
			evt.Content = &s
		}
	}

	return evt, true
}

// ScanWorkspace performs a one-shot recursive enumeration producing
// the same record shape the live FS stream emits, used for startup
// reconciliation (spec 4.4.7) and for the periodic safety-net
// reconciliation sweep.
func (w *Watcher) ScanWorkspace() ([]canvasmodel.FSEvent, error) {
	var out []canvasmodel.FSEvent
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == w.root {
			return nil
		}
		rel, ok := w.relPath(path)
		if !ok {
			return nil
		}
		if w.shouldFilter(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		evt, ok := w.classifyAndEnrich(rel, path, fsnotify.Create)
		if ok {
			evt.Action = canvasmodel.FSCreated
			out = append(out, evt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("watch: scan workspace: %w", err)
	}
	return out, nil
}

// WriteText writes content to path (relative to root), creating
// parent directories as needed, and marks the path ignored so the
// watcher does not re-emit this write.
func (w *Watcher) WriteText(path string, content string) error {
	return w.writeBytes(path, []byte(content))
}

// WriteBinary writes raw bytes (used by the image pipeline).
func (w *Watcher) WriteBinary(path string, data []byte) error {
	return w.writeBytes(path, data)
}

func (w *Watcher) writeBytes(path string, data []byte) error {
	abs := filepath.Join(w.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("watch: write %q: %w", path, err)
	}
	w.markIgnored(abs)
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("watch: write %q: %w", path, err)
	}
	return nil
}

// Delete removes path (file or directory) and marks it ignored.
func (w *Watcher) Delete(path string) error {
	abs := filepath.Join(w.root, filepath.FromSlash(path))
	w.markIgnored(abs)
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("watch: delete %q: %w", path, err)
	}
	return nil
}

// Mkdir creates a directory and marks it ignored.
func (w *Watcher) Mkdir(path string) error {
	abs := filepath.Join(w.root, filepath.FromSlash(path))
	w.markIgnored(abs)
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("watch: mkdir %q: %w", path, err)
	}
	return nil
}

// Rename moves oldPath to newPath and marks both ignored.
func (w *Watcher) Rename(oldPath, newPath string) error {
	oldAbs := filepath.Join(w.root, filepath.FromSlash(oldPath))
	newAbs := filepath.Join(w.root, filepath.FromSlash(newPath))
	if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
		return fmt.Errorf("watch: rename %q -> %q: %w", oldPath, newPath, err)
	}
	w.markIgnored(oldAbs, newAbs)
	if err := os.Rename(oldAbs, newAbs); err != nil {
		return fmt.Errorf("watch: rename %q -> %q: %w", oldPath, newPath, err)
	}
	return nil
}

// ReadCanvasJSON reads the sentinel persistence file's raw bytes.
func (w *Watcher) ReadCanvasJSON() ([]byte, error) {
	abs := filepath.Join(w.root, canvasmodel.SentinelFile)
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteCanvasJSON writes the sentinel persistence file. The sentinel
// is already filtered from the live watch stream (shouldFilter), so
// marking it ignored is defense in depth rather than load-bearing.
func (w *Watcher) WriteCanvasJSON(data []byte) error {
	abs := filepath.Join(w.root, canvasmodel.SentinelFile)
	w.markIgnored(abs)
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("watch: write sentinel: %w", err)
	}
	return nil
}

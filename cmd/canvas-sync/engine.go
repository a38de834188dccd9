package main

import (
	"context"
	"fmt"

	"canvas-sync/internal/canvasmodel"
	"canvas-sync/internal/config"
	"canvas-sync/internal/editorstore"
	"canvas-sync/internal/history"
	"canvas-sync/internal/snapshot"
	syncpkg "canvas-sync/internal/sync"
	"canvas-sync/internal/watch"
	"canvas-sync/internal/workspace"
)

// engine bundles the wired-together components a CLI subcommand needs
// to run the sync loop against a real directory.
type engine struct {
	cfg        *config.Config
	watcher    *watch.Watcher
	controller *syncpkg.Controller
	store      *editorstore.Store
	snapshot   *snapshot.Store
	history    *history.Log
	audit      *workspace.AuditTrail
}

func buildEngine(cfg *config.Config) (*engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := watch.New(cfg.WorkspaceRoot)
	w.ExcludeGlobs = cfg.ExcludeGlobs
	if err := w.EnsureWorkspace(); err != nil {
		return nil, fmt.Errorf("canvas-sync: ensure workspace: %w", err)
	}

	snap := snapshot.New(w)

	var hist *history.Log
	if cfg.HistoryDBPath != "" {
		h, err := history.Open(cfg.HistoryDBPath)
		if err != nil {
			return nil, fmt.Errorf("canvas-sync: open history: %w", err)
		}
		hist = h
	}

	var audit *workspace.AuditTrail
	if cfg.GitAuditTrail {
		a, err := workspace.Open(cfg.WorkspaceRoot)
		if err != nil {
			return nil, fmt.Errorf("canvas-sync: open audit trail: %w", err)
		}
		if err := workspace.EnsureIgnore(cfg.WorkspaceRoot, canvasmodel.SentinelFile, cfg.HistoryDBPath); err != nil {
			return nil, fmt.Errorf("canvas-sync: write gitignore: %w", err)
		}
		audit = a
	}

	store := editorstore.New()
	opts := syncpkg.Options{
		Store:    store,
		Watcher:  w,
		Snapshot: snap,
	}
	if hist != nil {
		// A nil *history.Log assigned directly to the HistorySink
		// interface field would produce a non-nil interface wrapping a
		// nil pointer, so this is only wired when hist is genuinely set.
		opts.History = hist
	}
	ctrl := syncpkg.New(opts)

	return &engine{cfg: cfg, watcher: w, controller: ctrl, store: store, snapshot: snap, history: hist, audit: audit}, nil
}

// start reconciles/bootstraps against the current disk state and
// begins watching for further changes.
func (e *engine) start(ctx context.Context) error {
	files, err := e.watcher.ScanWorkspace()
	if err != nil {
		return fmt.Errorf("canvas-sync: scan workspace: %w", err)
	}

	var doc *syncpkg.Snapshot
	if persisted, ok, err := e.snapshot.Load(); err != nil {
		return fmt.Errorf("canvas-sync: load snapshot: %w", err)
	} else if ok {
		doc = &syncpkg.Snapshot{Tldraw: persisted.Tldraw, ShapeToFile: persisted.ShapeToFile}
	}

	if err := e.controller.Init(ctx, doc, files); err != nil {
		return fmt.Errorf("canvas-sync: init controller: %w", err)
	}

	return e.watcher.Start(e.controller.HandleFSChanges)
}

func (e *engine) close() {
	e.controller.Dispose()
	e.watcher.Stop()
	if e.history != nil {
		_ = e.history.Close()
	}
}

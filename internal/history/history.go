// Package history persists every FSEvent and CanvasSyncChange the
// sync engine processes into a small, pure-Go sqlite database, giving
// a queryable diagnostic log independent of the git audit trail in
// internal/workspace.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"canvas-sync/internal/canvasmodel"
)

const schema = `
CREATE TABLE IF NOT EXISTS fs_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at INTEGER NOT NULL,
	action TEXT NOT NULL,
	path TEXT NOT NULL,
	is_directory INTEGER NOT NULL,
	size INTEGER,
	mtime_ms INTEGER
);
CREATE TABLE IF NOT EXISTS canvas_changes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at INTEGER NOT NULL,
	action TEXT NOT NULL,
	shape_type TEXT,
	path TEXT NOT NULL,
	old_path TEXT
);
CREATE INDEX IF NOT EXISTS idx_fs_events_path ON fs_events(path);
CREATE INDEX IF NOT EXISTS idx_canvas_changes_path ON canvas_changes(path);
`

// Log is a sqlite-backed canvasmodel-adjacent HistorySink (see
// internal/sync.HistorySink). The zero value is not usable; construct
// with Open.
type Log struct {
	db *sql.DB
}

// Open opens (creating if absent) a sqlite database at path and
// ensures its schema exists.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer discipline
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Log{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Log) Close() error { return l.db.Close() }

// RecordFSEvent implements internal/sync.HistorySink.
func (l *Log) RecordFSEvent(e canvasmodel.FSEvent) {
	_, err := l.db.Exec(
		`INSERT INTO fs_events (recorded_at, action, path, is_directory, size, mtime_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UnixMilli(), e.Action.String(), string(e.Path), boolToInt(e.IsDirectory), e.Size, e.MTimeMs,
	)
	if err != nil {
		slog.Error("history: insert fs_event failed", "component", "history", "error", err)
	}
}

// RecordCanvasChange implements internal/sync.HistorySink.
func (l *Log) RecordCanvasChange(ch canvasmodel.CanvasSyncChange) {
	_, err := l.db.Exec(
		`INSERT INTO canvas_changes (recorded_at, action, shape_type, path, old_path) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UnixMilli(), ch.Action.String(), ch.ShapeType.String(), string(ch.Path), string(ch.OldPath),
	)
	if err != nil {
		slog.Error("history: insert canvas_change failed", "component", "history", "error", err)
	}
}

// FSEventRecord is a row read back from the fs_events table.
type FSEventRecord struct {
	RecordedAtMs int64  `json:"recordedAtMs"`
	Action       string `json:"action"`
	Path         string `json:"path"`
	IsDirectory  bool   `json:"isDirectory"`
}

// RecentFSEvents returns up to limit of the most recent fs_events
// rows, newest first.
func (l *Log) RecentFSEvents(ctx context.Context, limit int) ([]FSEventRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT recorded_at, action, path, is_directory FROM fs_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query fs_events: %w", err)
	}
	defer rows.Close()

	var out []FSEventRecord
	for rows.Next() {
		var r FSEventRecord
		var isDir int
		if err := rows.Scan(&r.RecordedAtMs, &r.Action, &r.Path, &isDir); err != nil {
			return nil, fmt.Errorf("history: scan fs_event: %w", err)
		}
		r.IsDirectory = isDir != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarshalRecent is a convenience for the CLI's `history` subcommand:
// fetch and pretty-print as JSON.
func (l *Log) MarshalRecent(ctx context.Context, limit int) ([]byte, error) {
	recs, err := l.RecentFSEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(recs, "", "  ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

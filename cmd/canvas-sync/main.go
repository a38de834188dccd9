// Command canvas-sync runs the bidirectional canvas/filesystem sync
// engine: watch a workspace directory, mirror it onto an in-memory
// (or, via a real adapter, a genuine 2D editor's) canvas model, and
// expose the result over stdio or HTTP to whatever process hosts the
// actual editor UI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"

	"canvas-sync/internal/config"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

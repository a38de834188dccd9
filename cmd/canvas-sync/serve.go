package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"canvas-sync/internal/canvasmodel"
	"canvas-sync/internal/events"
	"canvas-sync/internal/mcptools"
	"canvas-sync/internal/transport"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Watch the workspace and run the sync engine until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(cfg)
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.start(ctx); err != nil {
		return err
	}

	if cfg.ReconcileCron != "" {
		job := cron.New()
		_, err := job.AddFunc(cfg.ReconcileCron, func() {
			files, err := eng.watcher.ScanWorkspace()
			if err != nil {
				slog.Error("canvas-sync: periodic reconcile scan failed", "component", "cmd", "error", err)
				return
			}
			eng.controller.RunPeriodicReconcile(ctx, files)
		})
		if err != nil {
			return err
		}
		job.Start()
		defer job.Stop()
	}

	if cfg.Transport == "http" {
		hub := events.NewHub()

		// Mirror every user-originated edit out to HTTP/SSE viewers. This
		// is a second, independent subscription alongside the
		// controller's own forward-path one; both see the same
		// source=user deltas but serve different consumers.
		unsubBroadcast := eng.store.Subscribe(func(d canvasmodel.Delta) {
			msg, err := transport.Encode("", transport.MsgCanvasState, d)
			if err != nil {
				slog.Error("canvas-sync: encode broadcast state failed", "component", "cmd", "error", err)
				return
			}
			hub.Publish(msg)
		})
		defer unsubBroadcast()

		httpSrv := transport.NewHTTPServer(hub, commandHandler(eng))
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Port)
			slog.Info("canvas-sync: http transport listening", "component", "cmd", "addr", addr)
			if err := http.ListenAndServe(addr, httpSrv.Mux()); err != nil {
				slog.Error("canvas-sync: http transport stopped", "component", "cmd", "error", err)
			}
		}()
	}

	// The MCP tool surface is the engine's primary interactive channel
	// for an agent; it owns stdio for the lifetime of the process.
	impl := &sdkmcp.Implementation{Name: "canvas-sync", Version: "0.1.0"}
	server := sdkmcp.NewServer(impl, nil)
	mcptools.Build(server, eng.controller, eng.watcher, eng.history)
	return server.Run(ctx, &sdkmcp.StdioTransport{})
}

// commandHandler dispatches inbound HTTP-transport commands from the
// editor host. canvas_save is the only command handled here: it
// flushes the snapshot and replies with an empty canvas_state. Every
// other message type (including canvas_sync) is logged as unhandled
// and acknowledged with no response body.
func commandHandler(eng *engine) transport.Handler {
	return func(msg *transport.Message) *transport.Message {
		switch msg.Type {
		case transport.MsgCanvasSave:
			eng.snapshot.FlushNow()
			resp, err := transport.Encode(msg.ID, transport.MsgCanvasState, nil)
			if err != nil {
				slog.Error("canvas-sync: encode canvas_save response failed", "component", "cmd", "error", err)
				return nil
			}
			return &resp
		default:
			slog.Warn("canvas-sync: unhandled http command", "component", "cmd", "type", msg.Type)
			return nil
		}
	}
}

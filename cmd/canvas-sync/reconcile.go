package main

import (
	"fmt"

	"github.com/spf13/cobra"

	syncpkg "canvas-sync/internal/sync"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run a single reconciliation pass against the persisted snapshot, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(cfg)
			eng, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.close()

			ctx := cmd.Context()
			files, err := eng.watcher.ScanWorkspace()
			if err != nil {
				return err
			}
			var doc *syncpkg.Snapshot
			persisted, ok, err := eng.snapshot.Load()
			if err != nil {
				return err
			}
			if ok {
				doc = &syncpkg.Snapshot{Tldraw: persisted.Tldraw, ShapeToFile: persisted.ShapeToFile}
			}
			if err := eng.controller.Init(ctx, doc, files); err != nil {
				return err
			}
			fmt.Printf("reconciled %d on-disk entries against the persisted canvas state\n", len(files))
			return nil
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"canvas-sync/internal/watch"
)

func newScanCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List every file the watcher would currently see, without starting the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			w := watch.New(cfg.WorkspaceRoot)
			w.ExcludeGlobs = cfg.ExcludeGlobs
			files, err := w.ScanWorkspace()
			if err != nil {
				return err
			}
			if asJSON {
				b, err := json.MarshalIndent(files, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			}
			for _, f := range files {
				size := ""
				if f.Size != nil {
					size = humanize.Bytes(uint64(*f.Size))
				}
				fmt.Printf("%-10s %-40s %s\n", f.Action, f.Path, size)
			}
			fmt.Printf("%s total\n", humanize.Comma(int64(len(files))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	return cmd
}

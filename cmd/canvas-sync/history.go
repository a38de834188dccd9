package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"canvas-sync/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent filesystem event history from the sqlite log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.HistoryDBPath == "" {
				return fmt.Errorf("canvas-sync: history-db is not configured")
			}
			h, err := history.Open(cfg.HistoryDBPath)
			if err != nil {
				return err
			}
			defer h.Close()

			b, err := h.MarshalRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events to print")
	return cmd
}

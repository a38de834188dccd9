package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"canvas-sync/internal/config"
)

var (
	cfgFile string
	envFile string
	cfg     = config.Default()
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "canvas-sync",
		Short: "Bidirectional sync engine between a 2D canvas and a filesystem",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// cobra parses flags before this hook runs, so cfg's fields
			// already reflect any flag the user passed. Loading the file
			// layer below would otherwise silently overwrite those
			// explicit flags; capture what changed first and reapply it
			// once the lower layers are in.
			changed := map[string]string{}
			cmd.Flags().Visit(func(f *pflag.Flag) {
				changed[f.Name] = f.Value.String()
			})

			config.LoadDotEnv(envFile)
			if err := config.LoadFile(cfg, cfgFile); err != nil {
				return err
			}
			config.LoadEnv(cfg)

			for name, val := range changed {
				if err := cmd.Flags().Set(name, val); err != nil {
					return fmt.Errorf("config: reapply flag %s: %w", name, err)
				}
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "canvas-sync.yaml", "path to a YAML config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file to load before flags are parsed")
	config.BindFlags(root.PersistentFlags(), cfg)

	root.AddCommand(newServeCmd())
	root.AddCommand(newScanCmd())
	root.AddCommand(newReconcileCmd())
	root.AddCommand(newHistoryCmd())
	return root
}

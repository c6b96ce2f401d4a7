package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/arbor/internal/history"
	"github.com/mesh-intelligence/arbor/internal/paths"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration directory and history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(flags.configDir)
			if err != nil {
				return err
			}
			configPath, err := ensureDefaultConfigFile(configDir)
			if err != nil {
				return err
			}

			dataDir, err := resolveDataDir()
			if err != nil {
				return err
			}
			store := history.NewStore()
			if err := store.Attach(dataDir); err != nil {
				return fmt.Errorf("initializing history database: %w", err)
			}
			if err := store.Detach(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "config: %s\n", configPath)
			fmt.Fprintf(cmd.OutOrStdout(), "data:   %s\n", dataDir)
			return nil
		},
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/arbor/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded transactions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := resolveDataDir()
			if err != nil {
				return err
			}
			store := history.NewStore()
			if err := store.Attach(dataDir); err != nil {
				return err
			}
			defer store.Detach()

			entries, err := store.List(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.jsonMode {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "no recorded transactions")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %s  %-12s  +%d ~%d -%d\n",
					e.ID, e.CommittedAt.Format(time.RFC3339), e.Name,
					e.Creations, e.Properties, e.Removals)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to list (0 for all)")
	return cmd
}

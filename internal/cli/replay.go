package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/arbor/internal/accessor"
	"github.com/mesh-intelligence/arbor/internal/history"
	"github.com/mesh-intelligence/arbor/internal/journal"
	"github.com/mesh-intelligence/arbor/internal/memtree"
	"github.com/mesh-intelligence/arbor/pkg/persister"
)

func newReplayCmd() *cobra.Command {
	var record bool

	cmd := &cobra.Command{
		Use:   "replay <stream.jsonl>",
		Short: "Replay a saved operation stream onto a fresh tree",
		Long: "Replay reads a JSONL operation stream, drives a persister through it\n" +
			"against a fresh in-memory tree, and prints the resulting tree. With\n" +
			"--record, each committed transaction is stored in the history database.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := journal.ReadStreamFile(args[0])
			if err != nil {
				return err
			}
			if len(ops) == 0 {
				return fmt.Errorf("%s: empty operation stream", args[0])
			}

			rootID, ok := journal.RootUUID(ops)
			if !ok {
				// Stream never creates its own workspace; give it one.
				rootID = newUUID()
			}
			tree := memtree.New(rootID)
			registry := accessor.New()
			p := persister.New("replay", tree, registry)
			p.SetLogger(newLogger())

			var store *history.Store
			if record {
				dataDir, err := resolveDataDir()
				if err != nil {
					return err
				}
				store = history.NewStore()
				if err := store.Attach(dataDir); err != nil {
					return err
				}
				defer store.Detach()
				p.SetRecorder(store)
			}

			if err := journal.Replay(ops, p); err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), tree, registry, flags.jsonMode)
		},
	}

	cmd.Flags().BoolVar(&record, "record", false, "store committed transactions in the history database")
	return cmd
}

// newUUID returns a time-ordered UUID, falling back to random on clock
// trouble.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

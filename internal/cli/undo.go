package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/arbor/internal/accessor"
	"github.com/mesh-intelligence/arbor/internal/history"
	"github.com/mesh-intelligence/arbor/internal/journal"
	"github.com/mesh-intelligence/arbor/internal/memtree"
	"github.com/mesh-intelligence/arbor/pkg/persister"
)

func newUndoCmd() *cobra.Command {
	var recordID string

	cmd := &cobra.Command{
		Use:   "undo <stream.jsonl>",
		Short: "Undo a recorded transaction against a replayed tree",
		Long: "Undo rebuilds the tree from the given operation stream, reverses the\n" +
			"selected recorded transaction (the most recent by default) against it,\n" +
			"deletes the record, and prints the resulting tree.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := journal.ReadStreamFile(args[0])
			if err != nil {
				return err
			}
			rootID, ok := journal.RootUUID(ops)
			if !ok {
				return fmt.Errorf("%s: stream has no workspace root", args[0])
			}

			dataDir, err := resolveDataDir()
			if err != nil {
				return err
			}
			store := history.NewStore()
			if err := store.Attach(dataDir); err != nil {
				return err
			}
			defer store.Detach()

			var rec persister.CommitRecord
			if recordID != "" {
				rec, err = store.Get(recordID)
			} else {
				rec, err = store.Latest()
			}
			if errors.Is(err, history.ErrNotFound) {
				return fmt.Errorf("no matching recorded transaction")
			}
			if err != nil {
				return err
			}

			tree := memtree.New(rootID)
			registry := accessor.New()
			p := persister.New("replay", tree, registry)
			logger := newLogger()
			p.SetLogger(logger)
			if err := journal.Replay(ops, p); err != nil {
				return err
			}

			if err := persister.Undo(tree, registry, rec, logger); err != nil {
				return err
			}
			if err := store.Delete(rec.ID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "undid %s (%s)\n", rec.ID, rec.Name)
			return printTree(cmd.OutOrStdout(), tree, registry, flags.jsonMode)
		},
	}

	cmd.Flags().StringVar(&recordID, "record-id", "", "id of the recorded transaction to undo (default: most recent)")
	return cmd
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rustyeddy/optrack/journal"
	"github.com/rustyeddy/optrack/position"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <position-id>",
	Short: "Show one position with its transactions",
	Long: `Print a position as an Org block followed by every transaction that
contributed to it. The id may be the full id or its last 8 characters as
printed by list.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	p, err := findPosition(ctx, e.store, args[0])
	if err != nil {
		return err
	}
	txs, err := e.store.Transactions(ctx, p.TransactionIDs())
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, journal.FormatPositionOrg(p))
	for _, t := range txs {
		fmt.Fprint(out, journal.FormatTransactionOrg(t))
	}
	return nil
}

// findPosition accepts a full id or a unique id suffix.
func findPosition(ctx context.Context, r journal.Reader, ref string) (position.Position, error) {
	p, err := r.Position(ctx, ref)
	if err == nil || !errors.Is(err, journal.ErrNotFound) {
		return p, err
	}

	all, err := r.Positions(ctx)
	if err != nil {
		return position.Position{}, err
	}
	var hits []position.Position
	for _, p := range all {
		if strings.HasSuffix(strings.ToUpper(p.ID), strings.ToUpper(ref)) {
			hits = append(hits, p)
		}
	}
	switch len(hits) {
	case 0:
		return position.Position{}, fmt.Errorf("position %q: %w", ref, journal.ErrNotFound)
	case 1:
		return hits[0], nil
	default:
		return position.Position{}, fmt.Errorf("position %q is ambiguous (%d matches)", ref, len(hits))
	}
}

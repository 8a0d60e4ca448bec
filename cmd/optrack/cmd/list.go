package cmd

import (
	"fmt"
	"io"

	"github.com/rustyeddy/optrack/filter"
	"github.com/rustyeddy/optrack/journal"
	"github.com/rustyeddy/optrack/position"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List positions",
	Long: `List stored positions ordered by opening date. Flags override the filter
section of the config file. Dates use output.date_format or YYYY-MM-DD.

Examples:
  optrack list
  optrack list --underlying SHOP --format org
  optrack list --symbol ' P$' --start 01/01/2022 --end 03/31/2022`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listSymbol     string
	listUnderlying string
	listStart      string
	listEnd        string
	listFormat     string
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listSymbol, "symbol", "", "regular expression matched against leg symbols")
	listCmd.Flags().StringVar(&listUnderlying, "underlying", "", "underlying ticker")
	listCmd.Flags().StringVar(&listStart, "start", "", "positions opened on or after this date")
	listCmd.Flags().StringVar(&listEnd, "end", "", "positions closed on or before this date")
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "", "table, org or csv")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	f, err := e.cfg.ListFilter()
	if err != nil {
		return err
	}
	if listSymbol != "" {
		f.Symbol = listSymbol
	}
	if listUnderlying != "" {
		f.Underlying = listUnderlying
	}
	layout := e.cfg.DateLayout()
	if listStart != "" {
		if f.Start, err = filter.ParseDate(layout, listStart); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
	}
	if listEnd != "" {
		if f.End, err = filter.ParseDate(layout, listEnd); err != nil {
			return fmt.Errorf("--end: %w", err)
		}
	}

	ps, err := journal.List(ctx, e.store, f)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	format := e.cfg.Output.Format
	if listFormat != "" {
		format = listFormat
	}
	return render(cmd.OutOrStdout(), format, ps, layout, e.cfg.Output.MaxTableWidth)
}

func render(w io.Writer, format string, ps []position.Position, layout string, width int) error {
	switch format {
	case "org":
		_, err := fmt.Fprintln(w, journal.FormatPositionsOrg(ps))
		return err
	case "csv":
		return journal.WriteCSV(w, ps, layout)
	case "table", "":
		return journal.WriteTable(w, ps, layout, width)
	default:
		return fmt.Errorf("unknown format %q (want table, org or csv)", format)
	}
}

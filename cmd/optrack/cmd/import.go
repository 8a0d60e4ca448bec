package cmd

import (
	"fmt"
	"os"

	"github.com/rustyeddy/optrack/archive"
	"github.com/rustyeddy/optrack/importer"
	"github.com/rustyeddy/optrack/importer/schwab"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a brokerage transaction export",
	Long: `Parse a transaction export, reconcile it against the stored positions and
save the result. Importing the same file again changes nothing.

Examples:
  optrack import ~/Downloads/XXXX1234_Transactions_20220430.csv
  optrack import --group-by-date schwab.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

var importGroupByDate bool

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importGroupByDate, "group-by-date", false, "treat same-day opening option legs on one underlying as a spread")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	file := e.cfg.Input.File
	if len(args) == 1 {
		file = args[0]
	}
	if file == "" {
		return fmt.Errorf("no input file: pass one or set input.file")
	}

	locker, release, err := newLocker(ctx, e.cfg)
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer release()

	arch, err := newArchiver(ctx, e.cfg)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	ttl, err := e.cfg.Lock.LockTTL()
	if err != nil {
		return err
	}

	imp, err := importer.New(importer.Options{
		Store:    e.store,
		Adapter:  schwab.New(schwab.Options{GroupByDate: e.cfg.Input.GroupByDate || importGroupByDate}, e.log),
		Locker:   locker,
		Archiver: arch,
		LockTTL:  ttl,
		Log:      e.log,
	})
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	in, err := archive.OpenExport(file, f)
	if err != nil {
		return err
	}

	rep, err := imp.Run(ctx, file, in)
	if err != nil {
		return fmt.Errorf("import %s: %w", file, err)
	}

	fmt.Fprint(cmd.OutOrStdout(), rep.Summary())
	return nil
}

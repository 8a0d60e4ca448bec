package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/optrack/archive"
	"github.com/rustyeddy/optrack/journal"
	"github.com/rustyeddy/optrack/lock"
	"github.com/rustyeddy/optrack/pkg/id"
	"github.com/rustyeddy/optrack/position"
)

// LockKey names the single-writer lock held for the length of a run.
const LockKey = "optrack-import"

// Options wires an Importer. Store and Adapter are required.
type Options struct {
	Store    journal.Store
	Adapter  Adapter
	Locker   lock.Locker
	Archiver archive.Archiver
	LockTTL  time.Duration
	Log      zerolog.Logger
}

type Importer struct {
	store    journal.Store
	adapter  Adapter
	engine   *position.Engine
	locker   lock.Locker
	archiver archive.Archiver
	lockTTL  time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func New(opts Options) (*Importer, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("importer: store is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("importer: adapter is required")
	}
	imp := &Importer{
		store:    opts.Store,
		adapter:  opts.Adapter,
		engine:   position.NewEngine(opts.Log),
		locker:   opts.Locker,
		archiver: opts.Archiver,
		lockTTL:  opts.LockTTL,
		log:      opts.Log.With().Str("component", "importer").Logger(),
		now:      time.Now,
	}
	if imp.locker == nil {
		imp.locker = lock.Nop{}
	}
	if imp.archiver == nil {
		imp.archiver = archive.Nop{}
	}
	return imp, nil
}

// Report summarizes one run for the user.
type Report struct {
	RunID      string
	File       string
	Source     string
	Archive    string
	StartedAt  time.Time
	FinishedAt time.Time

	Rows       int
	Parsed     int
	Ignored    int
	Imported   int
	Duplicates []string
	Rejected   []error
	Failures   []position.Failure
	Positions  []position.Position
}

// Run imports the export read from r. name is used for the run record and
// the archive copy. Row and transaction failures are reported, not
// returned; the error is for failures that stopped the run.
func (imp *Importer) Run(ctx context.Context, name string, r io.Reader) (Report, error) {
	rep := Report{
		RunID:     id.New(),
		File:      name,
		Source:    imp.adapter.Name(),
		StartedAt: imp.now().UTC(),
	}
	log := imp.log.With().Str("run", rep.RunID).Str("file", filepath.Base(name)).Logger()

	unlock, err := imp.locker.Acquire(ctx, LockKey, imp.lockTTL)
	if err != nil {
		return rep, fmt.Errorf("acquire lock: %w", err)
	}
	defer unlock()

	raw, err := io.ReadAll(r)
	if err != nil {
		return rep, fmt.Errorf("read %s: %w", name, err)
	}

	batch, err := imp.adapter.Parse(bytes.NewReader(raw))
	if err != nil {
		return rep, fmt.Errorf("parse %s: %w", name, err)
	}
	rep.Rows = batch.Rows
	rep.Parsed = len(batch.Transactions)
	rep.Ignored = batch.Ignored
	rep.Rejected = batch.Rejected
	for _, e := range batch.Rejected {
		log.Warn().Err(e).Msg("row rejected")
	}

	known, err := imp.store.KnownTransactionIDs(ctx)
	if err != nil {
		return rep, fmt.Errorf("load known transactions: %w", err)
	}
	open, err := imp.store.OpenPositions(ctx)
	if err != nil {
		return rep, fmt.Errorf("load open positions: %w", err)
	}

	res := imp.engine.Reconcile(batch.Transactions, open, known)
	rep.Imported = len(res.Transactions)
	rep.Duplicates = res.Duplicates
	rep.Failures = res.Failures
	rep.Positions = res.Positions

	if len(res.Transactions) > 0 || len(res.Positions) > 0 {
		if err := imp.store.Save(ctx, res.Positions, res.Transactions); err != nil {
			return rep, fmt.Errorf("save: %w", err)
		}
	}

	loc, err := imp.archiver.Archive(ctx, rep.RunID, name, raw)
	if err != nil {
		log.Error().Err(err).Msg("archive failed")
	}
	rep.Archive = loc

	rep.FinishedAt = imp.now().UTC()
	if err := imp.store.RecordRun(ctx, rep.Run()); err != nil {
		return rep, fmt.Errorf("record run: %w", err)
	}

	log.Info().
		Int("imported", rep.Imported).
		Int("duplicates", len(rep.Duplicates)).
		Int("rejected", len(rep.Rejected)).
		Int("failed", len(rep.Failures)).
		Int("positions", len(rep.Positions)).
		Msg("import finished")
	return rep, nil
}

// Run converts the report into the stored audit record.
func (r Report) Run() journal.Run {
	return journal.Run{
		ID:         r.RunID,
		File:       r.File,
		Source:     r.Source,
		Archive:    r.Archive,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Parsed:     r.Parsed,
		Ignored:    r.Ignored,
		Imported:   r.Imported,
		Duplicates: len(r.Duplicates),
		Rejected:   len(r.Rejected),
		Failed:     len(r.Failures),
		Positions:  len(r.Positions),
	}
}

// Summary is the post-import text shown to the user.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %s\n", r.RunID, r.File)
	fmt.Fprintf(&b, "  rows %d, parsed %d, ignored %d\n", r.Rows, r.Parsed, r.Ignored)
	fmt.Fprintf(&b, "  imported %d, duplicates %d, rejected %d, failed %d\n",
		r.Imported, len(r.Duplicates), len(r.Rejected), len(r.Failures))
	fmt.Fprintf(&b, "  positions changed %d\n", len(r.Positions))
	for _, e := range r.Rejected {
		fmt.Fprintf(&b, "  rejected: %v\n", e)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "  failed: %s: %v\n", f.Transaction.ID, f.Err)
	}
	if r.Archive != "" {
		fmt.Fprintf(&b, "  archived to %s\n", r.Archive)
	}
	return b.String()
}

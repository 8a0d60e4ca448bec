// Package journal persists transactions, positions and import runs, and
// renders positions for listing.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/optrack/filter"
	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/position"
)

var ErrNotFound = errors.New("not found")

// Run is the audit record of one import.
type Run struct {
	ID         string
	File       string
	Source     string
	Archive    string
	StartedAt  time.Time
	FinishedAt time.Time
	Parsed     int
	Ignored    int
	Imported   int
	Duplicates int
	Rejected   int
	Failed     int
	Positions  int
}

// Reader is the read side of a Store.
type Reader interface {
	KnownTransactionIDs(ctx context.Context) (map[string]struct{}, error)
	OpenPositions(ctx context.Context) ([]position.Position, error)
	Positions(ctx context.Context) ([]position.Position, error)
	Position(ctx context.Context, id string) (position.Position, error)
	// Transactions returns the given transactions, or all of them when ids
	// is empty, in matching order.
	Transactions(ctx context.Context, ids []string) ([]ledger.Transaction, error)
	Runs(ctx context.Context, limit int) ([]Run, error)
}

// Store is the repository the importer writes through.
type Store interface {
	Reader
	// Save writes the result of one reconciliation atomically: either every
	// transaction and position is stored or none is.
	Save(ctx context.Context, positions []position.Position, txs []ledger.Transaction) error
	RecordRun(ctx context.Context, r Run) error
	Close() error
}

// List loads every position and returns those matching f, ordered by
// opening time.
func List(ctx context.Context, r Reader, f filter.Filter) ([]position.Position, error) {
	m, err := filter.Compile(f)
	if err != nil {
		return nil, err
	}
	ps, err := r.Positions(ctx)
	if err != nil {
		return nil, err
	}
	return m.Apply(ps), nil
}

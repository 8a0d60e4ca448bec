package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/position"
)

type SQLite struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewSQLite(path string, log zerolog.Logger) (*SQLite, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db, log: log.With().Str("store", "sqlite").Logger()}, nil
}

func (s *SQLite) Save(ctx context.Context, positions []position.Position, txs []ledger.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, t := range txs {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO transactions
			(id, time, sequence, action, symbol, underlying, quantity, price, fees, amount,
			 description, source, order_id, related_id, imported_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Time.UTC(), t.Sequence, string(t.Action), t.Symbol(), t.Instrument.Underlying,
			t.Quantity.String(), t.Price.String(), t.Fees.String(), t.Amount.String(),
			t.Description, t.Source, t.OrderID, t.RelatedID, now,
		)
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	for _, p := range positions {
		row, err := encodePosition(p)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO positions
			(id, status, strategy, underlyings, opened_at, closed_at, realized_pnl, doc)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				strategy = excluded.strategy,
				underlyings = excluded.underlyings,
				closed_at = excluded.closed_at,
				realized_pnl = excluded.realized_pnl,
				doc = excluded.doc`,
			row.id, row.status, row.strategy, row.underlyings, row.openedAt, row.closedAt,
			row.realizedPnL, string(row.doc),
		)
		if err != nil {
			return fmt.Errorf("upsert position %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Debug().Int("transactions", len(txs)).Int("positions", len(positions)).Msg("saved")
	return nil
}

func (s *SQLite) RecordRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs
		(id, file, source, archive, started_at, finished_at, parsed, ignored, imported,
		 duplicates, rejected, failed, positions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.File, r.Source, r.Archive, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		r.Parsed, r.Ignored, r.Imported, r.Duplicates, r.Rejected, r.Failed, r.Positions,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

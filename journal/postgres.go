package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/position"
)

// Postgres stores the same collections as SQLite in a shared database.
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgres connects, checks the connection and creates the schema.
func NewPostgres(ctx context.Context, dsn string, maxConns int, log zerolog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create schema: %w", err)
	}

	return &Postgres{pool: pool, log: log.With().Str("store", "postgres").Logger()}, nil
}

func (s *Postgres) Save(ctx context.Context, positions []position.Position, txs []ledger.Transaction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range txs {
		_, err := tx.Exec(ctx, `
			INSERT INTO transactions
			(id, time, sequence, action, symbol, underlying, quantity, price, fees, amount,
			 description, source, order_id, related_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO NOTHING`,
			t.ID, t.Time.UTC(), t.Sequence, string(t.Action), t.Symbol(), t.Instrument.Underlying,
			t.Quantity.String(), t.Price.String(), t.Fees.String(), t.Amount.String(),
			t.Description, t.Source, t.OrderID, t.RelatedID,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert transaction %s: %w", t.ID, err)
		}
	}

	for _, p := range positions {
		row, err := encodePosition(p)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO positions
			(id, status, strategy, underlyings, opened_at, closed_at, realized_pnl, doc)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				status       = EXCLUDED.status,
				strategy     = EXCLUDED.strategy,
				underlyings  = EXCLUDED.underlyings,
				closed_at    = EXCLUDED.closed_at,
				realized_pnl = EXCLUDED.realized_pnl,
				doc          = EXCLUDED.doc`,
			row.id, row.status, row.strategy, row.underlyings, row.openedAt, row.closedAt,
			row.realizedPnL, row.doc,
		)
		if err != nil {
			return fmt.Errorf("postgres: upsert position %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	s.log.Debug().Int("transactions", len(txs)).Int("positions", len(positions)).Msg("saved")
	return nil
}

func (s *Postgres) RecordRun(ctx context.Context, r Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO import_runs
		(id, file, source, archive, started_at, finished_at, parsed, ignored, imported,
		 duplicates, rejected, failed, positions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.File, r.Source, r.Archive, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		r.Parsed, r.Ignored, r.Imported, r.Duplicates, r.Rejected, r.Failed, r.Positions,
	)
	if err != nil {
		return fmt.Errorf("postgres: record run %s: %w", r.ID, err)
	}
	return nil
}

func (s *Postgres) KnownTransactionIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("postgres: known ids: %w", err)
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan id: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: known ids rows: %w", err)
	}
	return out, nil
}

func (s *Postgres) OpenPositions(ctx context.Context) ([]position.Position, error) {
	return s.positions(ctx, `SELECT doc FROM positions WHERE status = $1 ORDER BY opened_at, id`, string(position.StatusOpen))
}

func (s *Postgres) Positions(ctx context.Context) ([]position.Position, error) {
	return s.positions(ctx, `SELECT doc FROM positions ORDER BY opened_at, id`)
}

func (s *Postgres) positions(ctx context.Context, query string, args ...any) ([]position.Position, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	var out []position.Position
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		p, err := decodePosition(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions rows: %w", err)
	}
	position.SortPositions(out)
	return out, nil
}

func (s *Postgres) Position(ctx context.Context, id string) (position.Position, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM positions WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return position.Position{}, fmt.Errorf("position %q: %w", id, ErrNotFound)
		}
		return position.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return decodePosition(doc)
}

func (s *Postgres) Transactions(ctx context.Context, ids []string) ([]ledger.Transaction, error) {
	query := `
		SELECT id, time, sequence, action, symbol, quantity, price, fees, amount,
		       description, source, order_id, related_id
		FROM transactions`
	var args []any
	if len(ids) > 0 {
		query += ` WHERE id = ANY($1)`
		args = append(args, ids)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		var r txRow
		if err := rows.Scan(
			&t.ID, &t.Time, &t.Sequence, &r.action, &r.symbol,
			&r.quantity, &r.price, &r.fees, &r.amount,
			&t.Description, &t.Source, &t.OrderID, &t.RelatedID,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		if err := r.decode(&t); err != nil {
			return nil, err
		}
		t.Time = t.Time.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transactions rows: %w", err)
	}
	ledger.Sort(out)
	return out, nil
}

func (s *Postgres) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, file, source, archive, started_at, finished_at, parsed, ignored,
		       imported, duplicates, rejected, failed, positions
		FROM import_runs
		ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished time.Time
		if err := rows.Scan(
			&r.ID, &r.File, &r.Source, &r.Archive, &started, &finished,
			&r.Parsed, &r.Ignored, &r.Imported, &r.Duplicates, &r.Rejected, &r.Failed, &r.Positions,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		r.StartedAt, r.FinishedAt = started.UTC(), finished.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list runs rows: %w", err)
	}
	return out, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

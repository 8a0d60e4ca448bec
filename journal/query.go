package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/position"
)

func (s *SQLite) KnownTransactionIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM transactions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLite) OpenPositions(ctx context.Context) ([]position.Position, error) {
	return s.positions(ctx, `SELECT doc FROM positions WHERE status = ? ORDER BY opened_at, id`, string(position.StatusOpen))
}

// Positions returns every stored position ordered by opening time.
func (s *SQLite) Positions(ctx context.Context) ([]position.Position, error) {
	return s.positions(ctx, `SELECT doc FROM positions ORDER BY opened_at, id`)
}

func (s *SQLite) positions(ctx context.Context, query string, args ...any) ([]position.Position, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []position.Position
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		p, err := decodePosition([]byte(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	position.SortPositions(out)
	return out, nil
}

// Position returns a single position by ID.
func (s *SQLite) Position(ctx context.Context, id string) (position.Position, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM positions WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return position.Position{}, fmt.Errorf("position %q: %w", id, ErrNotFound)
		}
		return position.Position{}, err
	}
	return decodePosition([]byte(doc))
}

func (s *SQLite) Transactions(ctx context.Context, ids []string) ([]ledger.Transaction, error) {
	query := `
		SELECT id, time, sequence, action, symbol, quantity, price, fees, amount,
		       description, source, order_id, related_id
		FROM transactions`
	args := make([]any, len(ids))
	if len(ids) > 0 {
		for i, id := range ids {
			args[i] = id
		}
		query += ` WHERE id IN (?` + strings.Repeat(`, ?`, len(ids)-1) + `)`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		var r txRow
		if err := rows.Scan(
			&t.ID,
			&t.Time,
			&t.Sequence,
			&r.action,
			&r.symbol,
			&r.quantity,
			&r.price,
			&r.fees,
			&r.amount,
			&t.Description,
			&t.Source,
			&t.OrderID,
			&t.RelatedID,
		); err != nil {
			return nil, err
		}
		if err := r.decode(&t); err != nil {
			return nil, err
		}
		t.Time = t.Time.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ledger.Sort(out)
	return out, nil
}

// Runs returns the most recent import runs first.
func (s *SQLite) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file, source, archive, started_at, finished_at, parsed, ignored,
		       imported, duplicates, rejected, failed, positions
		FROM import_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID,
			&r.File,
			&r.Source,
			&r.Archive,
			&r.StartedAt,
			&r.FinishedAt,
			&r.Parsed,
			&r.Ignored,
			&r.Imported,
			&r.Duplicates,
			&r.Rejected,
			&r.Failed,
			&r.Positions,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

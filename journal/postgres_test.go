package journal

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a throwaway database named by OPTRACK_TEST_POSTGRES_DSN.
func TestPostgresSaveAndLoad(t *testing.T) {
	dsn := os.Getenv("OPTRACK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("OPTRACK_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := NewPostgres(ctx, dsn, 2, nopLog())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE transactions, positions, import_runs`)
	require.NoError(t, err)

	res := reconcileSample(t)
	require.NoError(t, s.Save(ctx, res.Positions, res.Transactions))
	require.NoError(t, s.Save(ctx, res.Positions, res.Transactions))

	known, err := s.KnownTransactionIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, known, 3)

	open, err := s.OpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, res.Positions[0].ID, open[0].ID)

	txs, err := s.Transactions(ctx, []string{"sto"})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Instrument.Equal(shopPut()))

	_, err = s.Position(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.RecordRun(ctx, Run{ID: "r1", File: "x.csv", StartedAt: opened, FinishedAt: opened}))
	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/position"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s, err := NewSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, path
}

var (
	opened = time.Date(2022, 3, 17, 0, 0, 0, 0, time.UTC)
	closed = time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC)
	expiry = time.Date(2022, 4, 22, 0, 0, 0, 0, time.UTC)
)

func shopPut() market.Instrument {
	return market.Option("SHOP", market.KindPut, decimal.NewFromInt(550), expiry)
}

func sampleBatch() []ledger.Transaction {
	return []ledger.Transaction{
		{
			ID: "sto", Time: opened, Action: ledger.SellToOpen, Instrument: shopPut(),
			Quantity: decimal.NewFromInt(-2), Price: decimal.RequireFromString("21.07"),
			Fees: decimal.RequireFromString("1.32"), Amount: decimal.RequireFromString("4212.68"),
			Description: "PUT SHOPIFY INC", Source: "schwab",
		},
		{
			ID: "btc", Time: closed, Action: ledger.BuyToClose, Instrument: shopPut(),
			Quantity: decimal.NewFromInt(1), Price: decimal.RequireFromString("5.00"),
			Fees: decimal.RequireFromString("0.66"), Source: "schwab",
		},
		{
			ID: "aapl", Time: closed, Action: ledger.Buy, Instrument: market.Equity("AAPL"),
			Quantity: decimal.NewFromInt(10), Price: decimal.RequireFromString("170.10"),
			Source: "schwab",
		},
	}
}

func reconcileSample(t *testing.T) position.Result {
	t.Helper()
	res := position.NewEngine(zerolog.Nop()).Reconcile(sampleBatch(), nil, nil)
	require.Empty(t, res.Failures)
	require.Len(t, res.Positions, 2)
	return res
}

func nopLog() zerolog.Logger { return zerolog.Nop() }

package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shopPut = market.Option("SHOP", market.KindPut, decimal.NewFromInt(550), time.Date(2022, 4, 22, 0, 0, 0, 0, time.UTC))

func validTx() Transaction {
	return Transaction{
		ID:         "T1",
		Time:       time.Date(2022, 3, 17, 0, 0, 0, 0, time.UTC),
		Action:     SellToOpen,
		Instrument: shopPut,
		Quantity:   decimal.NewFromInt(-1),
		Price:      decimal.RequireFromString("21.07"),
		Fees:       decimal.RequireFromString("0.66"),
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Transaction)
		field  string
	}{
		{"valid", func(*Transaction) {}, ""},
		{"missing id", func(tx *Transaction) { tx.ID = "" }, "id"},
		{"missing time", func(tx *Transaction) { tx.Time = time.Time{} }, "time"},
		{"unknown action", func(tx *Transaction) { tx.Action = "DIVIDEND" }, "action"},
		{"missing underlying", func(tx *Transaction) { tx.Instrument.Underlying = "" }, "instrument"},
		{"missing expiration", func(tx *Transaction) { tx.Instrument.Expiration = time.Time{} }, "instrument"},
		{"zero quantity", func(tx *Transaction) { tx.Quantity = decimal.Zero }, "quantity"},
		{"sell with positive quantity", func(tx *Transaction) { tx.Quantity = decimal.NewFromInt(1) }, "quantity"},
		{"buy with negative quantity", func(tx *Transaction) { tx.Action = BuyToOpen }, "quantity"},
		{"negative price", func(tx *Transaction) { tx.Price = decimal.NewFromInt(-1) }, "price"},
		{"negative fees", func(tx *Transaction) { tx.Fees = decimal.NewFromInt(-1) }, "fees"},
		{"share action on option", func(tx *Transaction) { tx.Action = Sell }, "action"},
		{"expire on shares", func(tx *Transaction) {
			tx.Action = Expire
			tx.Instrument = market.Equity("SHOP")
		}, "action"},
		{"expire with zero quantity", func(tx *Transaction) {
			tx.Action = Expire
			tx.Quantity = decimal.Zero
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTx()
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
			var merr *MalformedTransactionError
			require.True(t, errors.As(err, &merr))
			assert.Equal(t, tt.field, merr.Field)
		})
	}
}

func TestCashFlow(t *testing.T) {
	t.Parallel()

	tx := validTx()
	assert.Equal(t, "2107", tx.CashFlow(tx.Quantity).String())

	tx.Action = BuyToClose
	tx.Quantity = decimal.NewFromInt(2)
	tx.Price = decimal.RequireFromString("1.5")
	assert.Equal(t, "-300", tx.CashFlow(tx.Quantity).String())

	tx.Action = Expire
	assert.True(t, tx.CashFlow(tx.Quantity).IsZero())

	shares := Transaction{Action: Sell, Instrument: market.Equity("SHOP"), Price: decimal.NewFromInt(550)}
	assert.Equal(t, "55000", shares.CashFlow(decimal.NewFromInt(-100)).String())
}

func TestSortOrder(t *testing.T) {
	t.Parallel()

	day := time.Date(2022, 3, 17, 0, 0, 0, 0, time.UTC)
	txs := []Transaction{
		{ID: "c", Time: day.AddDate(0, 0, 1), Action: BuyToClose},
		{ID: "b", Time: day, Action: Expire},
		{ID: "z", Time: day, Action: SellToOpen},
		{ID: "a", Time: day, Action: BuyToClose},
		{ID: "s2", Time: day, Sequence: 2, Action: SellToOpen},
		{ID: "y", Time: day, Action: SellToOpen},
	}

	Sort(txs)

	var ids []string
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []string{"y", "z", "a", "b", "s2", "c"}, ids)
}

func TestParseAction(t *testing.T) {
	t.Parallel()

	a, err := ParseAction("sell to open")
	require.NoError(t, err)
	assert.Equal(t, SellToOpen, a)

	a, err = ParseAction("EXPIRE")
	require.NoError(t, err)
	assert.Equal(t, Expire, a)

	_, err = ParseAction("dividend")
	assert.Error(t, err)

	assert.True(t, BuyToOpen.IsOpening())
	assert.True(t, SellToClose.IsClosing())
	assert.True(t, Assign.IsTerminal())
	assert.True(t, Buy.IsBuy())
	assert.True(t, Sell.IsSell())
	assert.False(t, Expire.IsBuy() || Expire.IsSell())
}

package position

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day1 = time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
	day3 = day1.AddDate(0, 0, 2)
	exp  = time.Date(2022, 4, 22, 0, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func put(strike string) market.Instrument {
	return market.Option("SHOP", market.KindPut, dec(strike), exp)
}

func call(strike string) market.Instrument {
	return market.Option("SHOP", market.KindCall, dec(strike), exp)
}

func tx(id string, at time.Time, action ledger.Action, inst market.Instrument, qty, price string) ledger.Transaction {
	return ledger.Transaction{
		ID:         id,
		Time:       at,
		Action:     action,
		Instrument: inst,
		Quantity:   dec(qty),
		Price:      dec(price),
		Fees:       decimal.Zero,
	}
}

func newTestEngine() *Engine {
	return NewEngine(zerolog.Nop())
}

func TestFIFOReducesOldestLot(t *testing.T) {
	t.Parallel()

	res := newTestEngine().Reconcile([]ledger.Transaction{
		tx("o1", day1, ledger.BuyToOpen, put("550"), "5", "2.00"),
		tx("o2", day2, ledger.BuyToOpen, put("550"), "3", "3.00"),
		tx("c1", day3, ledger.SellToClose, put("550"), "-4", "4.00"),
	}, nil, nil)

	require.Empty(t, res.Failures)
	require.Len(t, res.Positions, 1)
	p := res.Positions[0]
	require.Len(t, p.Legs, 1)
	lots := p.Legs[0].Lots
	require.Len(t, lots, 2)
	assert.Equal(t, "o1", lots[0].TransactionID)
	assert.True(t, lots[0].Remaining.Equal(dec("1")), "o1 remaining %s", lots[0].Remaining)
	assert.True(t, lots[1].Remaining.Equal(dec("3")), "o2 remaining %s", lots[1].Remaining)
	assert.True(t, p.Legs[0].Quantity.Equal(dec("4")))
	assert.Equal(t, StatusOpen, p.Status)

	// 4 matched from o1: (4.00 - 2.00) * 4 * 100
	assert.True(t, p.RealizedPnL.Equal(dec("800")), "realized %s", p.RealizedPnL)
}

func TestIdempotentReconcile(t *testing.T) {
	t.Parallel()

	batch := []ledger.Transaction{
		tx("a", day1, ledger.SellToOpen, put("550"), "-2", "21.07"),
		tx("b", day2, ledger.BuyToClose, put("550"), "1", "10.00"),
		tx("c", day2, ledger.BuyToOpen, call("600"), "1", "5.00"),
	}
	eng := newTestEngine()

	first := eng.Reconcile(batch, nil, nil)
	again := eng.Reconcile(batch, nil, nil)
	assert.Equal(t, first.Positions, again.Positions)

	// Feeding the first result back in: everything is a duplicate.
	known := map[string]struct{}{}
	for _, tx := range first.Transactions {
		known[tx.ID] = struct{}{}
	}
	var open []Position
	for _, p := range first.Positions {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	second := eng.Reconcile(batch, open, known)
	assert.Empty(t, second.Positions)
	assert.Empty(t, second.Transactions)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, second.Duplicates)
}

func TestDuplicateWithinBatch(t *testing.T) {
	t.Parallel()

	o := tx("a", day1, ledger.SellToOpen, put("550"), "-1", "1.00")
	res := newTestEngine().Reconcile([]ledger.Transaction{o, o}, nil, nil)
	assert.Equal(t, []string{"a"}, res.Duplicates)
	require.Len(t, res.Positions, 1)
	assert.True(t, res.Positions[0].Legs[0].Quantity.Equal(dec("-1")))
}

func TestClosedPositionQuantitiesSumToZero(t *testing.T) {
	t.Parallel()

	open := tx("a", day1, ledger.SellToOpen, put("550"), "-3", "21.07")
	open.Fees = dec("1.95")
	closeTx := tx("b", day2, ledger.BuyToClose, put("550"), "3", "5.00")
	closeTx.Fees = dec("1.95")

	res := newTestEngine().Reconcile([]ledger.Transaction{open, closeTx}, nil, nil)
	require.Len(t, res.Positions, 1)
	p := res.Positions[0]
	assert.Equal(t, StatusClosed, p.Status)
	require.NotNil(t, p.ClosedAt)
	assert.Equal(t, day2, *p.ClosedAt)
	assert.True(t, p.ContributedQuantity(put("550")).IsZero())
	assert.Equal(t, ShortPut, p.Strategy)

	// (21.07 - 5.00) * 3 * 100 - 3.90
	assert.True(t, p.RealizedPnL.Equal(dec("4817.1")), "realized %s", p.RealizedPnL)
	assert.True(t, p.Legs[0].OpenPrice.Equal(dec("21.07")))
	assert.True(t, p.Legs[0].ClosePrice.Equal(dec("5")))
}

func TestPartialCloseNeverFlipsSign(t *testing.T) {
	t.Parallel()

	res := newTestEngine().Reconcile([]ledger.Transaction{
		tx("a", day1, ledger.BuyToOpen, call("600"), "2", "5.00"),
		tx("b", day2, ledger.SellToClose, call("600"), "-1", "6.00"),
		tx("c", day3, ledger.SellToClose, call("600"), "-5", "6.00"),
	}, nil, nil)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "c", res.Failures[0].Transaction.ID)
	var overflow *QuantityOverflowError
	require.ErrorAs(t, res.Failures[0].Err, &overflow)
	assert.True(t, errors.Is(res.Failures[0].Err, ErrQuantityOverflow))
	assert.True(t, overflow.Available.Equal(dec("1")))

	require.Len(t, res.Positions, 1)
	p := res.Positions[0]
	assert.True(t, p.Legs[0].Quantity.Equal(dec("1")))
	assert.False(t, p.Legs[0].Quantity.IsNegative())
	assert.Len(t, p.Contributions, 2)
}

func TestMultiLegStaysOpenUntilAllLegsClose(t *testing.T) {
	t.Parallel()

	short := tx("s", day1, ledger.SellToOpen, put("550"), "-1", "10.00")
	short.OrderID = "ord-1"
	long := tx("l", day1, ledger.BuyToOpen, put("500"), "1", "4.00")
	long.OrderID = "ord-1"

	res := newTestEngine().Reconcile([]ledger.Transaction{
		short, long,
		tx("c", day2, ledger.BuyToClose, put("550"), "1", "3.00"),
	}, nil, nil)

	require.Empty(t, res.Failures)
	require.Len(t, res.Positions, 1)
	p := res.Positions[0]
	assert.Len(t, p.Legs, 2)
	assert.Equal(t, Spread, p.Strategy)
	assert.Equal(t, StatusOpen, p.Status)
	assert.Nil(t, p.ClosedAt)
	assert.Equal(t, "ord-1", p.OrderID)

	res2 := newTestEngine().Reconcile([]ledger.Transaction{
		tx("x", day3, ledger.SellToClose, put("500"), "-1", "1.00"),
	}, res.Positions, nil)
	require.Empty(t, res2.Failures)
	require.Len(t, res2.Positions, 1)
	closed := res2.Positions[0]
	assert.Equal(t, StatusClosed, closed.Status)
	assert.Equal(t, p.ID, closed.ID)
	// 1000 - 400 - 300 + 100
	assert.True(t, closed.RealizedPnL.Equal(dec("400")), "realized %s", closed.RealizedPnL)

	// Input positions are not modified.
	assert.Equal(t, StatusOpen, res.Positions[0].Status)
}

func TestAssignmentLinksEquityPosition(t *testing.T) {
	t.Parallel()

	assign := tx("as", day2, ledger.Assign, put("550"), "2", "0")
	shares := tx("eq", day2, ledger.Buy, market.Equity("SHOP"), "200", "550.00")

	res := newTestEngine().Reconcile([]ledger.Transaction{
		tx("a", day1, ledger.SellToOpen, put("550"), "-2", "21.07"),
		shares,
		assign,
	}, nil, nil)

	require.Empty(t, res.Failures)
	require.Len(t, res.Positions, 2)

	var opt, eq Position
	for _, p := range res.Positions {
		if p.Legs[0].Instrument.IsOption() {
			opt = p
		} else {
			eq = p
		}
	}
	assert.Equal(t, StatusClosed, opt.Status)
	assert.True(t, opt.Legs[0].Quantity.IsZero())
	assert.True(t, opt.RealizedPnL.Equal(dec("4214")))

	assert.Equal(t, StatusOpen, eq.Status)
	assert.Equal(t, LongStock, eq.Strategy)
	require.Len(t, eq.Links, 1)
	assert.Equal(t, Link{Kind: LinkAssignment, PositionID: opt.ID, TransactionID: "as"}, eq.Links[0])
}

func TestAssignmentOnlyMatchesShortLegs(t *testing.T) {
	t.Parallel()

	res := newTestEngine().Reconcile([]ledger.Transaction{
		tx("a", day1, ledger.BuyToOpen, put("550"), "1", "2.00"),
		tx("as", day2, ledger.Assign, put("550"), "1", "0"),
		tx("ex", day2, ledger.Exercise, put("550"), "1", "0"),
	}, nil, nil)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "as", res.Failures[0].Transaction.ID)
	assert.ErrorIs(t, res.Failures[0].Err, ErrUnmatchedClose)
	require.Len(t, res.Positions, 1)
	assert.Equal(t, StatusClosed, res.Positions[0].Status)
}

func TestExpireClosesRemaining(t *testing.T) {
	t.Parallel()

	res := newTestEngine().Reconcile([]ledger.Transaction{
		tx("a", day1, ledger.SellToOpen, call("600"), "-3", "1.50"),
		tx("b", day2, ledger.BuyToClose, call("600"), "1", "0.50"),
		tx("e", exp, ledger.Expire, call("600"), "0", "0"),
	}, nil, nil)

	require.Empty(t, res.Failures)
	require.Len(t, res.Positions, 1)
	p := res.Positions[0]
	assert.Equal(t, StatusClosed, p.Status)
	assert.Equal(t, exp, *p.ClosedAt)
	// 450 - 50
	assert.True(t, p.RealizedPnL.Equal(dec("400")), "realized %s", p.RealizedPnL)
	assert.Equal(t, []string{"a", "b", "e"}, p.TransactionIDs())
}

func TestUnmatchedCloseDoesNotBlockBatch(t *testing.T) {
	t.Parallel()

	res := newTestEngine().Reconcile([]ledger.Transaction{
		tx("bad", day1, ledger.SellToClose, call("700"), "-1", "1.00"),
		tx("good", day2, ledger.SellToOpen, put("550"), "-1", "1.00"),
	}, nil, nil)

	require.Len(t, res.Failures, 1)
	var unmatched *UnmatchedClosingTransactionError
	require.ErrorAs(t, res.Failures[0].Err, &unmatched)
	assert.Equal(t, "bad", unmatched.TransactionID)

	require.Len(t, res.Positions, 1)
	assert.Equal(t, []string{"good"}, res.Positions[0].TransactionIDs())
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "good", res.Transactions[0].ID)
}

func TestMalformedTransactionIsRejected(t *testing.T) {
	t.Parallel()

	bad := tx("bad", day1, ledger.SellToOpen, put("550"), "1", "1.00")
	res := newTestEngine().Reconcile([]ledger.Transaction{bad}, nil, nil)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0].Err, ledger.ErrMalformed)
	assert.Empty(t, res.Positions)
}

func TestCloseSpansPositionsFIFO(t *testing.T) {
	t.Parallel()

	// Two spreads hold the same short put; a plain close takes the older one first.
	s1 := tx("s1", day1, ledger.SellToOpen, put("550"), "-1", "10.00")
	s1.OrderID = "A"
	l1 := tx("l1", day1, ledger.BuyToOpen, put("500"), "1", "4.00")
	l1.OrderID = "A"
	s2 := tx("s2", day2, ledger.SellToOpen, put("550"), "-1", "12.00")
	s2.OrderID = "B"
	l2 := tx("l2", day2, ledger.BuyToOpen, put("500"), "1", "5.00")
	l2.OrderID = "B"
	c := tx("c", day3, ledger.BuyToClose, put("550"), "2", "1.00")
	c.Fees = dec("1.30")

	res := newTestEngine().Reconcile([]ledger.Transaction{s1, l1, s2, l2, c}, nil, nil)
	require.Empty(t, res.Failures)
	require.Len(t, res.Positions, 2)
	for _, p := range res.Positions {
		assert.True(t, p.ContributedQuantity(put("550")).IsZero())
		assert.Equal(t, StatusOpen, p.Status)
	}
	fees := res.Positions[0].Contributions[2].Fees.Add(res.Positions[1].Contributions[2].Fees)
	assert.True(t, fees.Equal(dec("1.30")))
}

func TestEquityShortCoveredByBuy(t *testing.T) {
	t.Parallel()

	res := newTestEngine().Reconcile([]ledger.Transaction{
		tx("s", day1, ledger.Sell, market.Equity("SHOP"), "-100", "600.00"),
		tx("b", day2, ledger.Buy, market.Equity("SHOP"), "100", "550.00"),
	}, nil, nil)

	require.Empty(t, res.Failures)
	require.Len(t, res.Positions, 1)
	p := res.Positions[0]
	assert.Equal(t, ShortStock, p.Strategy)
	assert.Equal(t, StatusClosed, p.Status)
	assert.True(t, p.RealizedPnL.Equal(dec("5000")))
}

func TestRollLinksNewPosition(t *testing.T) {
	t.Parallel()

	rollClose := tx("rc", day2, ledger.BuyToClose, put("550"), "1", "3.00")
	rollClose.OrderID = "roll"
	rollOpen := tx("ro", day2, ledger.SellToOpen, put("500"), "-1", "4.00")
	rollOpen.OrderID = "roll"

	res := newTestEngine().Reconcile([]ledger.Transaction{
		tx("a", day1, ledger.SellToOpen, put("550"), "-1", "6.00"),
		rollClose, rollOpen,
	}, nil, nil)

	require.Empty(t, res.Failures)
	require.Len(t, res.Positions, 2)
	var old, rolled Position
	for _, p := range res.Positions {
		if p.IsOpen() {
			rolled = p
		} else {
			old = p
		}
	}
	require.Len(t, rolled.Links, 1)
	assert.Equal(t, Link{Kind: LinkRoll, PositionID: old.ID, TransactionID: "rc"}, rolled.Links[0])
}

func TestResultSummary(t *testing.T) {
	t.Parallel()

	r := Result{Duplicates: []string{"a"}, Failures: []Failure{{}}}
	assert.Equal(t, "applied 0, duplicates 1, failed 1, positions changed 0", r.Summary())
}

func TestShareTradeFlipsDirection(t *testing.T) {
	t.Parallel()

	cover := tx("b1", day2, ledger.Buy, market.Equity("SHOP"), "200", "450.00")
	cover.Fees = dec("2.00")
	res := newTestEngine().Reconcile([]ledger.Transaction{
		tx("s1", day1, ledger.Sell, market.Equity("SHOP"), "-100", "500.00"),
		cover,
	}, nil, nil)

	require.Empty(t, res.Failures)
	require.Len(t, res.Transactions, 2)
	require.Len(t, res.Positions, 2)

	short, long := res.Positions[0], res.Positions[1]
	assert.Equal(t, ShortStock, short.Strategy)
	assert.Equal(t, StatusClosed, short.Status)
	assert.True(t, short.ContributedQuantity(market.Equity("SHOP")).IsZero())
	// 100 * (500 - 450) less half the fees
	assert.True(t, short.RealizedPnL.Equal(dec("4999")), "realized %s", short.RealizedPnL)

	assert.Equal(t, LongStock, long.Strategy)
	assert.Equal(t, StatusOpen, long.Status)
	require.Len(t, long.Legs, 1)
	assert.True(t, long.Legs[0].Quantity.Equal(dec("100")))
	require.Len(t, long.Legs[0].Lots, 1)
	assert.Equal(t, "b1", long.Legs[0].Lots[0].TransactionID)
	assert.True(t, long.Legs[0].Lots[0].Fees.Equal(dec("1")))
	assert.True(t, long.Legs[0].OpenPrice.Equal(dec("450")))
	assert.Equal(t, []string{"b1"}, long.TransactionIDs())
}

func TestShareSellFlipsToShort(t *testing.T) {
	t.Parallel()

	res := newTestEngine().Reconcile([]ledger.Transaction{
		tx("b1", day1, ledger.Buy, market.Equity("SHOP"), "100", "450.00"),
		tx("s1", day2, ledger.Sell, market.Equity("SHOP"), "-150", "500.00"),
	}, nil, nil)

	require.Empty(t, res.Failures)
	require.Len(t, res.Positions, 2)
	assert.Equal(t, StatusClosed, res.Positions[0].Status)
	assert.True(t, res.Positions[0].RealizedPnL.Equal(dec("5000")))
	assert.Equal(t, ShortStock, res.Positions[1].Strategy)
	assert.True(t, res.Positions[1].Legs[0].Quantity.Equal(dec("-50")))
}

func TestUntaggedFillDoesNotJoinSpreadOrder(t *testing.T) {
	t.Parallel()

	tagged := tx("o1", day1, ledger.SellToOpen, put("550"), "-1", "6.00")
	tagged.OrderID = "X"
	res := newTestEngine().Reconcile([]ledger.Transaction{
		tagged,
		tx("o2", day2, ledger.SellToOpen, put("550"), "-1", "5.00"),
	}, nil, nil)

	require.Empty(t, res.Failures)
	require.Len(t, res.Positions, 2)
	assert.Equal(t, "X", res.Positions[0].OrderID)
	assert.Equal(t, []string{"o1"}, res.Positions[0].TransactionIDs())
	assert.Empty(t, res.Positions[1].OrderID)
	assert.Equal(t, []string{"o2"}, res.Positions[1].TransactionIDs())
}

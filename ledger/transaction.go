// Package ledger holds the normalized transaction model every importer
// produces and the reconciliation engine consumes.
package ledger

import (
	"sort"
	"time"

	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
)

// Transaction is one immutable economic event. Quantity is signed: buys are
// positive and sells negative. Expire, Assign and Exercise only use the
// magnitude, and zero means "everything still open".
type Transaction struct {
	ID          string            `json:"id"`
	Time        time.Time         `json:"time"`
	Sequence    int               `json:"sequence"`
	Action      Action            `json:"action"`
	Instrument  market.Instrument `json:"instrument"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Price       decimal.Decimal   `json:"price"`
	Fees        decimal.Decimal   `json:"fees"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description,omitempty"`
	Source      string            `json:"source,omitempty"`

	// OrderID tags legs that were filled as one spread order.
	OrderID string `json:"order_id,omitempty"`
	// RelatedID points a share trade at the assignment or exercise that
	// produced it.
	RelatedID string `json:"related_id,omitempty"`
}

// Symbol is the rendered instrument symbol.
func (t Transaction) Symbol() string {
	return t.Instrument.Symbol()
}

// Size is the unsigned quantity.
func (t Transaction) Size() decimal.Decimal {
	return t.Quantity.Abs()
}

// CashFlow is the signed cash moved by qty units of this transaction, before
// fees: sells bring cash in, buys pay it out, terminal events move none.
func (t Transaction) CashFlow(qty decimal.Decimal) decimal.Decimal {
	gross := t.Price.Mul(qty.Abs()).Mul(t.Instrument.Multiplier())
	switch {
	case t.Action.IsSell():
		return gross
	case t.Action.IsBuy():
		return gross.Neg()
	default:
		return decimal.Zero
	}
}

// Validate checks the record against the normalized schema.
func (t Transaction) Validate() error {
	if t.ID == "" {
		return malformed(t, "id", "is required")
	}
	if t.Time.IsZero() {
		return malformed(t, "time", "is required")
	}
	if !t.Action.Valid() {
		return malformed(t, "action", "unknown action %q", t.Action)
	}
	if err := t.Instrument.Validate(); err != nil {
		return malformed(t, "instrument", "%v", err)
	}
	if (t.Action == Buy || t.Action == Sell) && t.Instrument.IsOption() {
		return malformed(t, "action", "%s applies to shares only, use an open or close action for options", t.Action)
	}
	if t.Action.IsTerminal() && !t.Instrument.IsOption() {
		return malformed(t, "action", "%s applies to options only", t.Action)
	}
	if t.Price.IsNegative() {
		return malformed(t, "price", "must not be negative")
	}
	if t.Fees.IsNegative() {
		return malformed(t, "fees", "must not be negative")
	}
	if t.Action.IsTerminal() {
		return nil
	}
	switch {
	case t.Quantity.IsZero():
		return malformed(t, "quantity", "must not be zero")
	case t.Action.IsBuy() && t.Quantity.IsNegative():
		return malformed(t, "quantity", "%s needs a positive quantity, got %s", t.Action, t.Quantity)
	case t.Action.IsSell() && t.Quantity.IsPositive():
		return malformed(t, "quantity", "%s needs a negative quantity, got %s", t.Action, t.Quantity)
	}
	return nil
}

// Less is the total order used for matching: time, then the source sequence,
// then opens before closes, then id.
func Less(a, b Transaction) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	if a.Sequence != b.Sequence {
		return a.Sequence < b.Sequence
	}
	if ra, rb := a.Action.rank(), b.Action.rank(); ra != rb {
		return ra < rb
	}
	return a.ID < b.ID
}

// Sort orders txs in place with Less.
func Sort(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return Less(txs[i], txs[j])
	})
}

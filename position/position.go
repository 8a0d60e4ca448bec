// Package position rebuilds option and share positions from a stream of
// normalized transactions.
package position

import (
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Side is the direction a leg was opened in.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Strategy is a coarse classification of the position's legs.
type Strategy string

const (
	Custom     Strategy = "CUSTOM"
	ShortPut   Strategy = "SHORT_PUT"
	ShortCall  Strategy = "SHORT_CALL"
	LongPut    Strategy = "LONG_PUT"
	LongCall   Strategy = "LONG_CALL"
	LongStock  Strategy = "LONG_STOCK"
	ShortStock Strategy = "SHORT_STOCK"
	Spread     Strategy = "SPREAD"
)

type LinkKind string

const (
	LinkAssignment LinkKind = "ASSIGNMENT"
	LinkExercise   LinkKind = "EXERCISE"
	LinkRoll       LinkKind = "ROLL"
)

// Link points at the position this one came from.
type Link struct {
	Kind          LinkKind `json:"kind"`
	PositionID    string   `json:"position_id"`
	TransactionID string   `json:"transaction_id"`
}

// Contribution records the effect one transaction had on one leg. Quantity
// is the signed change applied to the leg's open quantity.
type Contribution struct {
	TransactionID string          `json:"transaction_id"`
	Time          time.Time       `json:"time"`
	Action        ledger.Action   `json:"action"`
	Symbol        string          `json:"symbol"`
	Opening       bool            `json:"opening"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	CashFlow      decimal.Decimal `json:"cash_flow"`
	Fees          decimal.Decimal `json:"fees"`
}

// Leg is the exposure in one instrument. Quantity is positive for long legs
// and negative for short legs and only ever moves toward zero when closing.
type Leg struct {
	Instrument market.Instrument `json:"instrument"`
	Side       Side              `json:"side"`
	Quantity   decimal.Decimal   `json:"quantity"`
	Lots       []Lot             `json:"lots"`
	OpenPrice  decimal.Decimal   `json:"open_price"`
	ClosePrice decimal.Decimal   `json:"close_price"`
}

func (l Leg) Symbol() string {
	return l.Instrument.Symbol()
}

func (l Leg) IsFlat() bool {
	return l.Quantity.IsZero()
}

// Position aggregates the transactions that together make up one continuous
// exposure, possibly across several legs opened as one order.
type Position struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id,omitempty"`
	Strategy      Strategy        `json:"strategy"`
	Status        Status          `json:"status"`
	Legs          []Leg           `json:"legs"`
	OpenedAt      time.Time       `json:"opened_at"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
	Contributions []Contribution  `json:"contributions"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	Links         []Link          `json:"links,omitempty"`
}

func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// TransactionIDs lists contributing transactions in the order they applied.
// A transaction that touched several legs is listed once.
func (p *Position) TransactionIDs() []string {
	seen := make(map[string]bool, len(p.Contributions))
	var ids []string
	for _, c := range p.Contributions {
		if !seen[c.TransactionID] {
			seen[c.TransactionID] = true
			ids = append(ids, c.TransactionID)
		}
	}
	return ids
}

// Symbols lists the rendered symbol of every leg.
func (p *Position) Symbols() []string {
	out := make([]string, len(p.Legs))
	for i, l := range p.Legs {
		out[i] = l.Symbol()
	}
	return out
}

// Underlyings lists the distinct underlying tickers, sorted.
func (p *Position) Underlyings() []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range p.Legs {
		u := strings.ToUpper(l.Instrument.Underlying)
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

// ContributedQuantity sums the signed contribution quantities for one
// instrument. It always equals that leg's open quantity.
func (p *Position) ContributedQuantity(inst market.Instrument) decimal.Decimal {
	sum := decimal.Zero
	sym := inst.Symbol()
	for _, c := range p.Contributions {
		if c.Symbol == sym {
			sum = sum.Add(c.Quantity)
		}
	}
	return sum
}

func (p *Position) leg(inst market.Instrument, side Side) int {
	for i, l := range p.Legs {
		if l.Side == side && l.Instrument.Equal(inst) {
			return i
		}
	}
	return -1
}

func (p *Position) allFlat() bool {
	for _, l := range p.Legs {
		if !l.IsFlat() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (p Position) Clone() Position {
	c := p
	c.Legs = make([]Leg, len(p.Legs))
	for i, l := range p.Legs {
		l.Lots = append([]Lot(nil), l.Lots...)
		c.Legs[i] = l
	}
	c.Contributions = append([]Contribution(nil), p.Contributions...)
	c.Links = append([]Link(nil), p.Links...)
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		c.ClosedAt = &t
	}
	return c
}

// finalize recomputes the derived fields: status, strategy and the
// weighted average open and close prices of each leg.
func (p *Position) finalize() {
	for i := range p.Legs {
		leg := &p.Legs[i]
		sym := leg.Symbol()
		openCost, openQty := decimal.Zero, decimal.Zero
		closeCost, closeQty := decimal.Zero, decimal.Zero
		for _, c := range p.Contributions {
			if c.Symbol != sym || c.Action.IsTerminal() {
				continue
			}
			q := c.Quantity.Abs()
			if c.Opening {
				openCost = openCost.Add(c.Price.Mul(q))
				openQty = openQty.Add(q)
			} else {
				closeCost = closeCost.Add(c.Price.Mul(q))
				closeQty = closeQty.Add(q)
			}
		}
		leg.OpenPrice = weightedAverage(openCost, openQty)
		leg.ClosePrice = weightedAverage(closeCost, closeQty)
	}

	p.Strategy = classify(p.Legs)
	if p.allFlat() {
		p.Status = StatusClosed
		p.RealizedPnL = p.netCash()
	} else {
		p.Status = StatusOpen
		p.ClosedAt = nil
	}
}

// netCash is the sum of every contribution's cash flow net of fees.
func (p *Position) netCash() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range p.Contributions {
		sum = sum.Add(c.CashFlow).Sub(c.Fees)
	}
	return sum
}

func weightedAverage(total, qty decimal.Decimal) decimal.Decimal {
	if qty.IsZero() {
		return decimal.Zero
	}
	return total.DivRound(qty, 4)
}

func classify(legs []Leg) Strategy {
	if len(legs) == 1 {
		l := legs[0]
		switch {
		case l.Instrument.Kind == market.KindEquity && l.Side == Long:
			return LongStock
		case l.Instrument.Kind == market.KindEquity:
			return ShortStock
		case l.Instrument.Kind == market.KindPut && l.Side == Long:
			return LongPut
		case l.Instrument.Kind == market.KindPut:
			return ShortPut
		case l.Side == Long:
			return LongCall
		default:
			return ShortCall
		}
	}
	underlying := ""
	for _, l := range legs {
		if !l.Instrument.IsOption() {
			return Custom
		}
		if underlying == "" {
			underlying = strings.ToUpper(l.Instrument.Underlying)
		} else if !strings.EqualFold(underlying, l.Instrument.Underlying) {
			return Custom
		}
	}
	if len(legs) == 0 {
		return Custom
	}
	return Spread
}

// SortPositions orders positions by opening time, then ID.
func SortPositions(ps []Position) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].OpenedAt.Equal(ps[j].OpenedAt) {
			return ps[i].OpenedAt.Before(ps[j].OpenedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

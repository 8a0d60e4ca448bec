package position

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is one opening fill. Quantity and Remaining are unsigned; the leg's
// side gives the direction.
type Lot struct {
	TransactionID string          `json:"transaction_id"`
	OpenedAt      time.Time       `json:"opened_at"`
	Quantity      decimal.Decimal `json:"quantity"`
	Remaining     decimal.Decimal `json:"remaining"`
	Price         decimal.Decimal `json:"price"`
	Fees          decimal.Decimal `json:"fees"`
}

// lotMatch is the portion of one lot consumed by a close.
type lotMatch struct {
	lot      Lot
	quantity decimal.Decimal
}

// consumeFIFO takes qty from the oldest lots first and returns what was
// matched. The caller has already checked that enough is open.
func consumeFIFO(lots []Lot, qty decimal.Decimal) []lotMatch {
	var matches []lotMatch
	left := qty
	for i := range lots {
		if !left.IsPositive() {
			break
		}
		if !lots[i].Remaining.IsPositive() {
			continue
		}
		take := decimal.Min(lots[i].Remaining, left)
		lots[i].Remaining = lots[i].Remaining.Sub(take)
		left = left.Sub(take)
		matches = append(matches, lotMatch{lot: lots[i], quantity: take})
	}
	return matches
}

// openCash is the signed cash of the opening side of a match: paid for long
// lots, received for short lots, less the lot's pro-rated fees.
func (m lotMatch) openCash(side Side, multiplier decimal.Decimal) decimal.Decimal {
	gross := m.lot.Price.Mul(m.quantity).Mul(multiplier)
	if side == Long {
		gross = gross.Neg()
	}
	fees := decimal.Zero
	if m.lot.Quantity.IsPositive() {
		fees = m.lot.Fees.Mul(m.quantity).Div(m.lot.Quantity)
	}
	return gross.Sub(fees)
}

package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/position"
	"github.com/shopspring/decimal"
)

// positionRow is a position split into its indexed columns and the JSON
// document holding legs, lots, contributions and links.
type positionRow struct {
	id          string
	status      string
	strategy    string
	underlyings string
	openedAt    time.Time
	closedAt    *time.Time
	realizedPnL string
	doc         []byte
}

func encodePosition(p position.Position) (positionRow, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return positionRow{}, fmt.Errorf("marshal position %s: %w", p.ID, err)
	}
	row := positionRow{
		id:          p.ID,
		status:      string(p.Status),
		strategy:    string(p.Strategy),
		underlyings: strings.Join(p.Underlyings(), ","),
		openedAt:    p.OpenedAt.UTC(),
		realizedPnL: p.RealizedPnL.String(),
		doc:         doc,
	}
	if p.ClosedAt != nil {
		t := p.ClosedAt.UTC()
		row.closedAt = &t
	}
	return row, nil
}

func decodePosition(doc []byte) (position.Position, error) {
	var p position.Position
	if err := json.Unmarshal(doc, &p); err != nil {
		return position.Position{}, fmt.Errorf("unmarshal position: %w", err)
	}
	return p, nil
}

// txRow holds the text columns of a stored transaction.
type txRow struct {
	action, symbol                string
	quantity, price, fees, amount string
}

func (r txRow) decode(t *ledger.Transaction) error {
	inst, err := market.ParseSymbol(r.symbol)
	if err != nil {
		return fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	t.Instrument = inst
	t.Action = ledger.Action(r.action)
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&t.Quantity, r.quantity},
		{&t.Price, r.price},
		{&t.Fees, r.fees},
		{&t.Amount, r.amount},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		*f.dst = d
	}
	return nil
}

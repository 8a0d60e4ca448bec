package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExpirationLayout is the date layout used inside option symbols.
const ExpirationLayout = "01/02/2006"

// Symbol renders the instrument as one string, the way the brokerage export
// spells it: "SHOP 04/22/2022 550.00 P" for options and "SHOP" for shares.
func (i Instrument) Symbol() string {
	if !i.IsOption() {
		return i.Underlying
	}
	suffix := "C"
	if i.Kind == KindPut {
		suffix = "P"
	}
	return fmt.Sprintf("%s %s %s %s",
		i.Underlying,
		i.Expiration.Format(ExpirationLayout),
		i.Strike.StringFixed(2),
		suffix,
	)
}

// ParseSymbol is the inverse of Symbol.
func ParseSymbol(s string) (Instrument, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		return Equity(fields[0]), nil
	case 4:
	default:
		return Instrument{}, fmt.Errorf("malformed symbol %q", s)
	}

	exp, err := time.Parse(ExpirationLayout, fields[1])
	if err != nil {
		return Instrument{}, fmt.Errorf("symbol %q: expiration: %w", s, err)
	}
	strike, err := decimal.NewFromString(fields[2])
	if err != nil {
		return Instrument{}, fmt.Errorf("symbol %q: strike: %w", s, err)
	}

	var kind Kind
	switch strings.ToUpper(fields[3]) {
	case "C", "CALL":
		kind = KindCall
	case "P", "PUT":
		kind = KindPut
	default:
		return Instrument{}, fmt.Errorf("symbol %q: unknown option type %q", s, fields[3])
	}

	inst := Option(fields[0], kind, strike, exp)
	if err := inst.Validate(); err != nil {
		return Instrument{}, fmt.Errorf("symbol %q: %w", s, err)
	}
	return inst, nil
}

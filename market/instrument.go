// market/instrument.go
package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes equities from the two option types.
type Kind string

const (
	KindEquity Kind = "EQUITY"
	KindCall   Kind = "CALL"
	KindPut    Kind = "PUT"
)

// ContractSize is the number of shares controlled by one option contract.
var ContractSize = decimal.NewFromInt(100)

// Instrument describes what was traded. Strike and Expiration are zero for
// equities.
type Instrument struct {
	Underlying string          `json:"underlying"`
	Kind       Kind            `json:"kind"`
	Strike     decimal.Decimal `json:"strike"`
	Expiration time.Time       `json:"expiration"`
}

// Equity returns the instrument for the shares of an underlying.
func Equity(underlying string) Instrument {
	return Instrument{Underlying: strings.ToUpper(strings.TrimSpace(underlying)), Kind: KindEquity}
}

// Option returns an option contract instrument.
func Option(underlying string, kind Kind, strike decimal.Decimal, expiration time.Time) Instrument {
	y, m, d := expiration.Date()
	return Instrument{
		Underlying: strings.ToUpper(strings.TrimSpace(underlying)),
		Kind:       kind,
		Strike:     strike,
		Expiration: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}
}

func (i Instrument) IsOption() bool {
	return i.Kind == KindCall || i.Kind == KindPut
}

// Multiplier converts a per-share price into the cash value of one unit.
func (i Instrument) Multiplier() decimal.Decimal {
	if i.IsOption() {
		return ContractSize
	}
	return decimal.NewFromInt(1)
}

// Equal reports whether both descriptors name the same tradable contract.
func (i Instrument) Equal(o Instrument) bool {
	if !strings.EqualFold(i.Underlying, o.Underlying) || i.Kind != o.Kind {
		return false
	}
	if !i.IsOption() {
		return true
	}
	return i.Strike.Equal(o.Strike) && sameDay(i.Expiration, o.Expiration)
}

// Validate checks that the descriptor carries every field its kind needs.
func (i Instrument) Validate() error {
	if strings.TrimSpace(i.Underlying) == "" {
		return fmt.Errorf("underlying is required")
	}
	switch i.Kind {
	case KindEquity:
		return nil
	case KindCall, KindPut:
		if !i.Strike.IsPositive() {
			return fmt.Errorf("option strike must be positive")
		}
		if i.Expiration.IsZero() {
			return fmt.Errorf("option expiration is required")
		}
		return nil
	case "":
		return fmt.Errorf("instrument kind is required")
	default:
		return fmt.Errorf("unknown instrument kind %q", i.Kind)
	}
}

func (i Instrument) String() string {
	return i.Symbol()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

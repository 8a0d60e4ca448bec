package position

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/optrack/ledger"
	"github.com/shopspring/decimal"
)

var (
	ErrUnmatchedClose   = errors.New("unmatched closing transaction")
	ErrQuantityOverflow = errors.New("quantity overflow")
)

// UnmatchedClosingTransactionError is returned for a close, expiry,
// assignment or exercise with no open position to apply to.
type UnmatchedClosingTransactionError struct {
	TransactionID string
	Action        ledger.Action
	Symbol        string
}

func (e *UnmatchedClosingTransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %s %s: no open position", e.TransactionID, e.Action, e.Symbol)
}

func (e *UnmatchedClosingTransactionError) Unwrap() error { return ErrUnmatchedClose }

// QuantityOverflowError is returned when a close asks for more than the
// compatible open legs hold. Nothing is applied. A close with no compatible
// leg at all is an UnmatchedClosingTransactionError instead.
type QuantityOverflowError struct {
	TransactionID string
	PositionID    string
	Symbol        string
	Requested     decimal.Decimal
	Available     decimal.Decimal
}

func (e *QuantityOverflowError) Error() string {
	return fmt.Sprintf("transaction %s: %s: requested %s but only %s open in position %s",
		e.TransactionID, e.Symbol, e.Requested, e.Available, e.PositionID)
}

func (e *QuantityOverflowError) Unwrap() error { return ErrQuantityOverflow }

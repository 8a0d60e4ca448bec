package ledger

import (
	"errors"
	"fmt"
)

// ErrMalformed is matched by every MalformedTransactionError.
var ErrMalformed = errors.New("malformed transaction")

// MalformedTransactionError rejects a record that is missing a required field
// or carries an inconsistent value. Line is set by adapters that know it.
type MalformedTransactionError struct {
	TransactionID string
	Line          int
	Field         string
	Reason        string
}

func (e *MalformedTransactionError) Error() string {
	where := e.TransactionID
	if e.Line > 0 {
		where = fmt.Sprintf("line %d", e.Line)
	}
	if where == "" {
		where = "<no id>"
	}
	return fmt.Sprintf("malformed transaction %s: %s: %s", where, e.Field, e.Reason)
}

func (e *MalformedTransactionError) Unwrap() error {
	return ErrMalformed
}

func malformed(t Transaction, field, format string, args ...any) *MalformedTransactionError {
	return &MalformedTransactionError{
		TransactionID: t.ID,
		Field:         field,
		Reason:        fmt.Sprintf(format, args...),
	}
}

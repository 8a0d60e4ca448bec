// Package importer runs one import: parse an export, reconcile it against
// the store and persist the result.
package importer

import (
	"io"

	"github.com/rustyeddy/optrack/ledger"
)

// Adapter turns one brokerage export format into normalized transactions.
type Adapter interface {
	Name() string
	Parse(r io.Reader) (Batch, error)
}

// Batch is what an adapter produced from one file.
type Batch struct {
	Transactions []ledger.Transaction
	// Rows counts data rows, including ignored and rejected ones.
	Rows int
	// Ignored counts rows that carry no position effect, such as dividends.
	Ignored int
	// Rejected holds one error per row that could not be converted.
	Rejected []error
}

// Package schwab reads the Charles Schwab "Transactions" CSV export.
package schwab

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/optrack/importer"
	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
)

// Name is the Source recorded on every transaction this adapter produces.
const Name = "schwab"

const (
	colDate = iota
	colAction
	colSymbol
	colDescription
	colQuantity
	colPrice
	colFees
	colAmount
	columns
)

const dateLayout = "01/02/2006"

var actions = map[string]ledger.Action{
	"Buy to Open":          ledger.BuyToOpen,
	"Sell to Open":         ledger.SellToOpen,
	"Buy to Close":         ledger.BuyToClose,
	"Sell to Close":        ledger.SellToClose,
	"Expired":              ledger.Expire,
	"Assigned":             ledger.Assign,
	"Exchange or Exercise": ledger.Exercise,
	"Buy":                  ledger.Buy,
	"Sell":                 ledger.Sell,
}

// Rows with these actions move cash but never change a position.
var cashOnly = map[string]bool{
	"Journaled Shares":       true,
	"NRA Tax Adj":            true,
	"Qualified Dividend":     true,
	"Non-Qualified Div":      true,
	"Reinvest Shares":        true,
	"Qual Div Reinvest":      true,
	"Journal":                true,
	"Credit Interest":        true,
	"Wire Funds":             true,
	"Wire Funds Received":    true,
	"Misc Cash Entry":        true,
	"Service Fee":            true,
	"MoneyLink Deposit":      true,
	"MoneyLink Transfer":     true,
	"MoneyLink Adj":          true,
	"Stock Plan Activity":    true,
	"Foreign Tax Paid":       true,
	"Mandatory Reorg Exc":    true,
	"Spin-off":               true,
	"Funds Received":         true,
	"Cash Dividend":          true,
	"Cash In Lieu":           true,
	"Reinvest Dividend":      true,
	"Stock Split":            true,
	"Cash/Stock Merger":      true,
	"Bank Interest":          true,
	"Special Qual Div":       true,
	"Pr Yr Div Reinvest":     true,
	"ADR Mgmt Fee":           true,
	"Long Term Cap Gain":     true,
	"Short Term Cap Gain":    true,
	"Return Of Capital":      true,
	"Internal Transfer":      true,
	"Security Transfer":      true,
	"Margin Interest":        true,
	"Qualified Dividend Adj": true,
}

type Options struct {
	// GroupByDate tags option rows that share a date and an underlying
	// with one OrderID, so same-day opening legs reconcile as one spread and
	// a same-day close and open are linked as a roll.
	GroupByDate bool
}

// Adapter implements importer.Adapter for Schwab exports.
type Adapter struct {
	opts Options
	log  zerolog.Logger
}

var _ importer.Adapter = (*Adapter)(nil)

func New(opts Options, log zerolog.Logger) *Adapter {
	return &Adapter{opts: opts, log: log.With().Str("adapter", Name).Logger()}
}

func (a *Adapter) Name() string { return Name }

type parsedRow struct {
	line int
	tx   ledger.Transaction
}

// Parse reads the whole export. Rows that cannot be converted are returned in
// Batch.Rejected; the error is reserved for unreadable input.
func (a *Adapter) Parse(r io.Reader) (importer.Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var (
		batch importer.Batch
		rows  []parsedRow
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				batch.Rejected = append(batch.Rejected, &ledger.MalformedTransactionError{
					Line: perr.Line, Field: "csv", Reason: perr.Err.Error(),
				})
				continue
			}
			return batch, fmt.Errorf("schwab: read: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if skip(rec) {
			continue
		}
		if len(rec) > columns {
			rec = rec[:columns]
		}
		batch.Rows++

		action := strings.TrimSpace(rec[colAction])
		if cashOnly[action] {
			batch.Ignored++
			continue
		}
		tx, err := convert(rec, line)
		if err != nil {
			batch.Rejected = append(batch.Rejected, err)
			continue
		}
		rows = append(rows, parsedRow{line: line, tx: tx})
	}

	assignSequence(rows)
	assignIDs(rows)
	if a.opts.GroupByDate {
		groupByDate(rows)
	}

	for _, pr := range rows {
		if err := pr.tx.Validate(); err != nil {
			var merr *ledger.MalformedTransactionError
			if errors.As(err, &merr) {
				merr.Line = pr.line
			}
			batch.Rejected = append(batch.Rejected, err)
			continue
		}
		batch.Transactions = append(batch.Transactions, pr.tx)
	}

	a.log.Debug().
		Int("rows", batch.Rows).
		Int("transactions", len(batch.Transactions)).
		Int("ignored", batch.Ignored).
		Int("rejected", len(batch.Rejected)).
		Msg("parsed export")
	return batch, nil
}

// skip reports title, header, footer and blank rows.
func skip(rec []string) bool {
	if len(rec) <= 1 {
		return true
	}
	first := strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff"))
	if first == "Date" || first == "Transactions Total" {
		return true
	}
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func convert(rec []string, line int) (ledger.Transaction, error) {
	bad := func(field, format string, args ...any) error {
		return &ledger.MalformedTransactionError{Line: line, Field: field, Reason: fmt.Sprintf(format, args...)}
	}
	if len(rec) < columns {
		return ledger.Transaction{}, bad("row", "want %d columns, got %d", columns, len(rec))
	}

	var tx ledger.Transaction
	tx.Source = Name
	tx.Description = strings.TrimSpace(rec[colDescription])

	when, err := parseDate(rec[colDate])
	if err != nil {
		return tx, bad("date", "%v", err)
	}
	tx.Time = when

	raw := strings.TrimSpace(rec[colAction])
	action, ok := actions[raw]
	if !ok {
		return tx, bad("action", "unknown action %q", raw)
	}
	tx.Action = action

	tx.Instrument, err = market.ParseSymbol(rec[colSymbol])
	if err != nil {
		return tx, bad("symbol", "%v", err)
	}

	qty, err := parseQuantity(rec[colQuantity])
	if err != nil {
		return tx, bad("quantity", "%v", err)
	}
	if action.IsSell() {
		qty = qty.Neg()
	}
	tx.Quantity = qty

	if tx.Price, err = parseMoney(rec[colPrice]); err != nil {
		return tx, bad("price", "%v", err)
	}
	if tx.Fees, err = parseMoney(rec[colFees]); err != nil {
		return tx, bad("fees", "%v", err)
	}
	if tx.Amount, err = parseMoney(rec[colAmount]); err != nil {
		return tx, bad("amount", "%v", err)
	}
	return tx, nil
}

// parseDate accepts "03/17/2022" and "03/18/2022 as of 03/17/2022", where
// the "as of" date is the trade date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "as of "); i >= 0 {
		s = strings.TrimSpace(s[i+len("as of "):])
	}
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func parseQuantity(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, nil
	}
	q, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid quantity %q", s)
	}
	return q.Abs(), nil
}

// parseMoney reads "$21.07", "-$1.00", "($1.00)" and "" (zero). The sign is
// dropped: direction comes from the action.
func parseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	clean := strings.NewReplacer("$", "", ",", "", "(", "", ")", "", "-", "").Replace(s)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// assignSequence orders same-day rows. The export lists newest first, so the
// last row in the file gets the lowest sequence.
func assignSequence(rows []parsedRow) {
	for i := range rows {
		rows[i].tx.Sequence = len(rows) - i
	}
}

// assignIDs builds the transaction key from the row content. Identical rows
// get an occurrence suffix counted from the oldest row.
func assignIDs(rows []parsedRow) {
	seen := map[string]int{}
	for i := len(rows) - 1; i >= 0; i-- {
		base := key(rows[i].tx)
		seen[base]++
		id := base
		if n := seen[base]; n > 1 {
			id = fmt.Sprintf("%s~%d", base, n)
		}
		rows[i].tx.ID = id
	}
}

func key(t ledger.Transaction) string {
	return fmt.Sprintf("%s:%s_#%s_%s@%s",
		t.Time.Format(time.DateOnly), t.Action, t.Size().String(), t.Symbol(), t.Price.String())
}

// groupByDate is a best-effort order detector: Schwab only reports the trade
// date, so option legs on one underlying and one day are assumed to be a
// single order. Two or more opening legs form a spread; closing legs next to
// an opening leg form a roll.
func groupByDate(rows []parsedRow) {
	type group struct {
		opens, closes []int
	}
	groups := map[string]*group{}
	for i, pr := range rows {
		t := pr.tx
		if !t.Instrument.IsOption() || t.OrderID != "" {
			continue
		}
		if !t.Action.IsOpening() && !t.Action.IsClosing() {
			continue
		}
		k := t.Time.Format(time.DateOnly) + ":" + strings.ToUpper(t.Instrument.Underlying)
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
		}
		if t.Action.IsOpening() {
			g.opens = append(g.opens, i)
		} else {
			g.closes = append(g.closes, i)
		}
	}
	for k, g := range groups {
		if len(g.opens) == 0 || len(g.opens)+len(g.closes) < 2 {
			continue
		}
		for _, i := range append(g.opens, g.closes...) {
			rows[i].tx.OrderID = k
		}
	}
}

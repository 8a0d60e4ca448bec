package journal

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rustyeddy/optrack/position"
)

var csvHeader = []string{
	"position_id", "strategy", "status", "opened", "closed", "realized_pnl",
	"symbol", "side", "quantity", "open_price", "close_price",
}

// CSVWriter exports positions one leg per row.
type CSVWriter struct {
	w          *csv.Writer
	dateLayout string
	header     bool
}

func NewCSV(w io.Writer, dateLayout string) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), dateLayout: dateLayout}
}

func (c *CSVWriter) Write(p position.Position) error {
	if !c.header {
		if err := c.w.Write(csvHeader); err != nil {
			return err
		}
		c.header = true
	}

	closed := ""
	if p.ClosedAt != nil {
		closed = p.ClosedAt.Format(c.dateLayout)
	}
	for _, l := range p.Legs {
		err := c.w.Write([]string{
			p.ID,
			string(p.Strategy),
			string(p.Status),
			p.OpenedAt.Format(c.dateLayout),
			closed,
			p.RealizedPnL.StringFixed(2),
			l.Symbol(),
			strings.ToLower(string(l.Side)),
			l.Quantity.String(),
			l.OpenPrice.StringFixed(2),
			l.ClosePrice.StringFixed(2),
		})
		if err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

// Close writes the header if nothing else was written and flushes.
func (c *CSVWriter) Close() error {
	if !c.header {
		if err := c.w.Write(csvHeader); err != nil {
			return err
		}
		c.header = true
	}
	c.w.Flush()
	return c.w.Error()
}

// WriteCSV exports ps to w.
func WriteCSV(w io.Writer, ps []position.Position, dateLayout string) error {
	c := NewCSV(w, dateLayout)
	for _, p := range ps {
		if err := c.Write(p); err != nil {
			return err
		}
	}
	return c.Close()
}

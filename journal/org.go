package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/position"
)

// FormatPositionOrg renders a Position as an Org-mode block suitable for
// pasting into a trading journal. Structured facts go in the PROPERTIES
// drawer; legs, contributing transactions and links follow as lists, with
// an empty Review section for notes.
func FormatPositionOrg(p position.Position) string {
	heading := fmt.Sprintf("** %s: %s (%s)", p.Strategy, strings.Join(p.Underlyings(), ","), shortID(p.ID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":ID: %s\n", p.ID))
	b.WriteString(fmt.Sprintf(":STRATEGY: %s\n", p.Strategy))
	b.WriteString(fmt.Sprintf(":STATUS: %s\n", p.Status))
	if p.OrderID != "" {
		b.WriteString(fmt.Sprintf(":ORDER_ID: %s\n", p.OrderID))
	}
	b.WriteString(fmt.Sprintf(":OPENED: %s\n", p.OpenedAt.UTC().Format(time.RFC3339)))
	if p.ClosedAt != nil {
		b.WriteString(fmt.Sprintf(":CLOSED: %s\n", p.ClosedAt.UTC().Format(time.RFC3339)))
	}
	b.WriteString(fmt.Sprintf(":REALIZED_PNL: %s\n", p.RealizedPnL.StringFixed(2)))
	b.WriteString(":END:\n")
	b.WriteString("\n")

	b.WriteString("*** Legs\n")
	for _, l := range p.Legs {
		b.WriteString(fmt.Sprintf("- %s %s qty=%s open=%s close=%s\n",
			l.Side, l.Symbol(), l.Quantity, l.OpenPrice.StringFixed(2), l.ClosePrice.StringFixed(2)))
	}
	b.WriteString("\n")

	b.WriteString("*** Transactions\n")
	for _, c := range p.Contributions {
		line := fmt.Sprintf("- %s %s %s %s", c.Time.UTC().Format(time.DateOnly), c.Action, c.Quantity, c.Symbol)
		if !c.Action.IsTerminal() {
			line += fmt.Sprintf(" @ %s", c.Price.StringFixed(2))
		}
		if c.Fees.IsPositive() {
			line += fmt.Sprintf(" fees %s", c.Fees.StringFixed(2))
		}
		b.WriteString(fmt.Sprintf("%s  [%s]\n", line, c.TransactionID))
	}

	if len(p.Links) > 0 {
		b.WriteString("\n*** Links\n")
		for _, l := range p.Links {
			b.WriteString(fmt.Sprintf("- %s from %s via %s\n", l.Kind, l.PositionID, l.TransactionID))
		}
	}
	b.WriteString("\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatPositionsOrg renders multiple positions separated by blank lines.
func FormatPositionsOrg(ps []position.Position) string {
	var b strings.Builder
	for i, p := range ps {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatPositionOrg(p))
	}
	return b.String()
}

// FormatTransactionOrg renders one stored transaction as an Org list item.
func FormatTransactionOrg(t ledger.Transaction) string {
	return fmt.Sprintf("- %s %s %s %s @ %s fees %s  [%s]\n",
		t.Time.UTC().Format(time.DateOnly), t.Action, t.Quantity, t.Symbol(),
		t.Price.StringFixed(2), t.Fees.StringFixed(2), t.ID)
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}

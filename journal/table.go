package journal

import (
	"fmt"
	"io"
	"strings"

	"github.com/rustyeddy/optrack/position"
)

// WriteTable renders the listing view: one line per position and one
// indented line per leg. Lines are cut at maxWidth when it is positive.
func WriteTable(w io.Writer, ps []position.Position, dateLayout string, maxWidth int) error {
	for _, p := range ps {
		closed := "-"
		if p.ClosedAt != nil {
			closed = p.ClosedAt.Format(dateLayout)
		}
		head := fmt.Sprintf("%s  %-11s %-6s opened %s  closed %s  pnl %s",
			shortID(p.ID), p.Strategy, p.Status, p.OpenedAt.Format(dateLayout), closed,
			p.RealizedPnL.StringFixed(2))
		if err := writeLine(w, head, maxWidth); err != nil {
			return err
		}
		for _, l := range p.Legs {
			leg := fmt.Sprintf("    %s, contracts=%s open=%s, close=%s",
				l.Symbol(), l.Quantity, l.OpenPrice.StringFixed(2), l.ClosePrice.StringFixed(2))
			if err := writeLine(w, leg, maxWidth); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteRuns renders import runs, newest first.
func WriteRuns(w io.Writer, runs []Run, dateLayout string) error {
	for _, r := range runs {
		_, err := fmt.Fprintf(w, "%s  %s %s  %s  imported=%d duplicates=%d rejected=%d failed=%d positions=%d\n",
			r.ID, r.StartedAt.Format(dateLayout), r.StartedAt.Format("15:04:05"), r.File,
			r.Imported, r.Duplicates, r.Rejected, r.Failed, r.Positions)
		if err != nil {
			return err
		}
	}
	return nil
}

func writeLine(w io.Writer, s string, maxWidth int) error {
	if maxWidth > 3 && len(s) > maxWidth {
		s = s[:maxWidth-3] + "..."
	}
	_, err := io.WriteString(w, strings.TrimRight(s, " ")+"\n")
	return err
}

// Package filter narrows a set of positions for listing.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rustyeddy/optrack/position"
)

// Filter selects positions. Zero fields match everything.
type Filter struct {
	// Symbol is a regular expression matched, case-insensitively, against
	// the rendered symbol of each leg.
	Symbol string
	// Underlying must equal the underlying of at least one leg.
	Underlying string
	// Start keeps positions opened on or after this date.
	Start *time.Time
	// End keeps positions closed on or before this date. Open positions
	// have no close date and are dropped when End is set.
	End *time.Time
}

// Matcher is a compiled Filter.
type Matcher struct {
	f       Filter
	pattern *regexp.Regexp
	start   time.Time
	end     time.Time
}

// Compile validates f and prepares it for matching.
func Compile(f Filter) (*Matcher, error) {
	m := &Matcher{f: f}
	if f.Symbol != "" {
		re, err := regexp.Compile("(?i)" + f.Symbol)
		if err != nil {
			return nil, fmt.Errorf("symbol pattern %q: %w", f.Symbol, err)
		}
		m.pattern = re
	}
	if f.Start != nil {
		m.start = dayStart(*f.Start)
	}
	if f.End != nil {
		m.end = dayStart(*f.End).AddDate(0, 0, 1)
	}
	if f.Start != nil && f.End != nil && !m.end.After(m.start) {
		return nil, fmt.Errorf("range end %s is before start %s",
			f.End.Format(time.DateOnly), f.Start.Format(time.DateOnly))
	}
	return m, nil
}

// Match reports whether p passes every criterion.
func (m *Matcher) Match(p position.Position) bool {
	if m.pattern != nil && !m.matchSymbol(p) {
		return false
	}
	if m.f.Underlying != "" && !m.matchUnderlying(p) {
		return false
	}
	if m.f.Start != nil && p.OpenedAt.Before(m.start) {
		return false
	}
	if m.f.End != nil {
		if p.ClosedAt == nil || !p.ClosedAt.Before(m.end) {
			return false
		}
	}
	return true
}

func (m *Matcher) matchSymbol(p position.Position) bool {
	for _, sym := range p.Symbols() {
		if m.pattern.MatchString(sym) {
			return true
		}
	}
	return false
}

func (m *Matcher) matchUnderlying(p position.Position) bool {
	for _, l := range p.Legs {
		if strings.EqualFold(l.Instrument.Underlying, strings.TrimSpace(m.f.Underlying)) {
			return true
		}
	}
	return false
}

// Apply returns the matching positions ordered by opening time, then ID.
func (m *Matcher) Apply(ps []position.Position) []position.Position {
	out := make([]position.Position, 0, len(ps))
	for _, p := range ps {
		if m.Match(p) {
			out = append(out, p)
		}
	}
	position.SortPositions(out)
	return out
}

// Apply compiles f and applies it to ps.
func Apply(f Filter, ps []position.Position) ([]position.Position, error) {
	m, err := Compile(f)
	if err != nil {
		return nil, err
	}
	return m.Apply(ps), nil
}

// ParseDate parses a range bound in layout, falling back to ISO dates.
func ParseDate(layout, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, l := range []string{layout, time.DateOnly} {
		if l == "" {
			continue
		}
		if t, err := time.ParseInLocation(l, s, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q (want %s)", s, layout)
}

func dayStart(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

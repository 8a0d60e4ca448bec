package filter

import (
	"testing"
	"time"

	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/position"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func pos(id string, opened time.Time, closed *time.Time, insts ...market.Instrument) position.Position {
	p := position.Position{ID: id, OpenedAt: opened, ClosedAt: closed, Status: position.StatusOpen}
	if closed != nil {
		p.Status = position.StatusClosed
	}
	for _, in := range insts {
		p.Legs = append(p.Legs, position.Leg{Instrument: in, Side: position.Short})
	}
	return p
}

func shopPut() market.Instrument {
	return market.Option("SHOP", market.KindPut, decimal.NewFromInt(550), date(2022, 4, 22))
}

func aaplCall() market.Instrument {
	return market.Option("AAPL", market.KindCall, decimal.NewFromInt(170), date(2022, 5, 20))
}

func ids(ps []position.Position) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestRangeStart(t *testing.T) {
	t.Parallel()

	ps := []position.Position{
		pos("jun", date(2022, 6, 1), nil, shopPut()),
		pos("jan", date(2022, 1, 1), nil, shopPut()),
		pos("apr", date(2022, 4, 1), nil, shopPut()),
	}
	start := date(2022, 3, 1)
	got, err := Apply(Filter{Start: &start}, ps)
	require.NoError(t, err)
	assert.Equal(t, []string{"apr", "jun"}, ids(got))
}

func TestRangeEndExcludesOpenPositions(t *testing.T) {
	t.Parallel()

	closedMar := date(2022, 3, 31).Add(15 * time.Hour)
	closedMay := date(2022, 5, 2)
	ps := []position.Position{
		pos("open", date(2022, 1, 1), nil, shopPut()),
		pos("mar", date(2022, 2, 1), &closedMar, shopPut()),
		pos("may", date(2022, 2, 1), &closedMay, shopPut()),
	}
	end := date(2022, 3, 31)
	got, err := Apply(Filter{End: &end}, ps)
	require.NoError(t, err)
	assert.Equal(t, []string{"mar"}, ids(got))
}

func TestSymbolAndUnderlying(t *testing.T) {
	t.Parallel()

	ps := []position.Position{
		pos("shop", date(2022, 1, 1), nil, shopPut()),
		pos("aapl", date(2022, 1, 2), nil, aaplCall()),
		pos("both", date(2022, 1, 3), nil, aaplCall(), market.Equity("shop")),
	}

	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"all", Filter{}, []string{"shop", "aapl", "both"}},
		{"symbol regexp case-insensitive", Filter{Symbol: "^shop"}, []string{"shop", "both"}},
		{"symbol on strike", Filter{Symbol: `170\.00 C$`}, []string{"aapl", "both"}},
		{"underlying exact", Filter{Underlying: "aapl"}, []string{"aapl", "both"}},
		{"underlying not prefix", Filter{Underlying: "SHO"}, []string{}},
		{"combined", Filter{Symbol: " P$", Underlying: "SHOP"}, []string{"shop"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.f, ps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	_, err := Compile(Filter{Symbol: "("})
	assert.Error(t, err)

	start, end := date(2022, 3, 1), date(2022, 2, 1)
	_, err = Compile(Filter{Start: &start, End: &end})
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	got, err := ParseDate("01/02/2006", "03/01/2022")
	require.NoError(t, err)
	assert.Equal(t, date(2022, 3, 1), *got)

	got, err = ParseDate("01/02/2006", "2022-03-01")
	require.NoError(t, err)
	assert.Equal(t, date(2022, 3, 1), *got)

	got, err = ParseDate("01/02/2006", "")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseDate("01/02/2006", "March 1")
	assert.Error(t, err)
}

package journal

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ps := reconcileSample(t).Positions
	require.NoError(t, WriteTable(&buf, ps, "01/02/2006", 120))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "SHORT_PUT")
	assert.Contains(t, lines[0], "opened 03/17/2022  closed -  pnl 1605.68")
	assert.Equal(t, "    SHOP 04/22/2022 550.00 P, contracts=-1 open=21.07, close=5.00", lines[1])
	assert.Contains(t, lines[2], "LONG_STOCK")
	assert.Equal(t, "    AAPL, contracts=10 open=170.10, close=0.00", lines[3])
}

func TestWriteTableTruncates(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, reconcileSample(t).Positions, "01/02/2006", 20))
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		assert.LessOrEqual(t, len(line), 20)
	}
	assert.Contains(t, buf.String(), "...")
}

func TestWriteRuns(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, WriteRuns(&buf, []Run{{ID: "R1", File: "x.csv", StartedAt: start, Imported: 3}}, "01/02/2006"))
	assert.Equal(t, "R1  01/02/2024 03:04:05  x.csv  imported=3 duplicates=0 rejected=0 failed=0 positions=0\n", buf.String())
}

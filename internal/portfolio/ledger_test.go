package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/marketclock"
	"github.com/wonny/screener/internal/results"
)

// 2024-03-01 is a Friday
var screened = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func row(ticker string, save map[string]any) results.Row {
	return results.Row{Ticker: ticker, Date: screened, Save: save}
}

func TestFromRows(t *testing.T) {
	rows := []results.Row{
		row("AAA", map[string]any{"LTP": 100.0, "LTP1": 105.0, "LTP2": 103.0}),
		row("BBB", map[string]any{"LTP": 50.0, "LTP1": 48.0, "LTP2": 49.0}),
		// no realized horizons
		row("CCC", map[string]any{"LTP": 10.0, "LTP1": nil}),
		{Ticker: "DDD", Date: screened, Fallback: true, Save: map[string]any{"LTP": 1.0, "LTP1": 2.0}},
	}

	p := FromRows("bt", rows, []int{1, 2}, marketclock.NSE())

	entries := p.Entries()
	require.Len(t, entries, 5)

	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.Date + " " + e.Ticker + " " + e.Action()
	}
	assert.Equal(t, []string{
		"2024-03-01 AAA [+]",
		"2024-03-01 BBB [+]",
		"2024-03-01 BBB [+]", // sold on day one, bought back for the second horizon
		"2024-03-04 BBB [-]",
		"2024-03-05 AAA [-]",
	}, got)

	assert.Equal(t, -48.0, p.InitialValue())
	assert.Equal(t, 49.0, p.CurrentValue())
	assert.Equal(t, -49.0, p.Profit())
	assert.True(t, p.Holds("BBB"))
	assert.False(t, p.Holds("AAA"))
	assert.False(t, p.Holds("DDD"))

	last := entries[len(entries)-1]
	assert.Equal(t, 49.0, last.RunningTotal)
	assert.Equal(t, -4.0, last.Profits)
}

func TestHoldRecordsGrowth(t *testing.T) {
	rows := []results.Row{
		row("AAA", map[string]any{"LTP": 100.0, "LTP1": 101.0, "LTP2": 104.5}),
	}

	p := FromRows("bt", rows, []int{1, 2}, marketclock.NSE())
	entries := p.Entries()
	require.Len(t, entries, 2)

	assert.Equal(t, 0, entries[1].Quantity)
	assert.Equal(t, 3.5, entries[1].Growth)
	assert.Equal(t, "2024-03-05", entries[1].Date)
	// no sale yet
	assert.Zero(t, p.Profit())
	assert.Zero(t, p.InitialValue(), "second date holds only a zero-quantity line")
}

func TestEmptyLedger(t *testing.T) {
	p := FromRows("empty", nil, []int{1}, marketclock.NSE())
	assert.Empty(t, p.Entries())
	assert.Zero(t, p.InitialValue())
	assert.Zero(t, p.CurrentValue())
	assert.Zero(t, p.Profit())
}

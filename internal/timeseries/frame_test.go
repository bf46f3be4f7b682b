package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func seq(n int, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + float64(i)
	}
	return out
}

func sample(t *testing.T, n int) *Frame {
	t.Helper()
	f, err := FromOHLCV(dates(n), seq(n, 10), seq(n, 11), seq(n, 9), seq(n, 10.5), seq(n, 1000))
	require.NoError(t, err)
	return f
}

func TestFromOHLCV(t *testing.T) {
	f := sample(t, 5)
	assert.Equal(t, 5, f.Len())
	assert.Equal(t, []string{Open, High, Low, Close, Volume}, f.Columns())
	assert.Equal(t, 14.5, f.Last(Close))
	assert.True(t, math.IsNaN(f.Last(RSI)))

	_, err := FromOHLCV(dates(3), seq(2, 0), seq(3, 0), seq(3, 0), seq(3, 0), seq(3, 0))
	assert.Error(t, err)
}

func TestSetColumnsAppendOnly(t *testing.T) {
	f := sample(t, 3)

	require.NoError(t, f.SetFloat(RSI, []float64{40, 50, 60}))
	require.NoError(t, f.SetString(Pattern, []string{"", "", "Doji"}))
	require.NoError(t, f.SetFloat(RSI, []float64{41, 51, 61}))

	assert.Equal(t, []string{Open, High, Low, Close, Volume, RSI, Pattern}, f.Columns())
	assert.Equal(t, 61.0, f.Last(RSI))
	assert.Equal(t, "Doji", f.LastString(Pattern))
	assert.True(t, f.IsString(Pattern))
	assert.Error(t, f.SetFloat(CCI, []float64{1}))
}

func TestSlicesAreIndependent(t *testing.T) {
	f := sample(t, 10)

	head := f.Head(4)
	tail := f.Tail(3)
	assert.Equal(t, 4, head.Len())
	assert.Equal(t, 3, tail.Len())
	assert.Equal(t, 13.5, head.Last(Close))
	assert.Equal(t, 19.5, tail.Last(Close))
	assert.Equal(t, f.Index()[7], tail.Index()[0])

	head.Float(Close)[0] = -1
	assert.Equal(t, 10.5, f.Float(Close)[0])

	assert.Equal(t, 10, f.Tail(50).Len())
	assert.Equal(t, 0, f.Head(-2).Len())
}

func TestEqualTreatsNaNAsEqual(t *testing.T) {
	a := sample(t, 3)
	require.NoError(t, a.SetFloat(MF, []float64{math.NaN(), 1, 2}))
	b := a.Clone()

	assert.True(t, a.Equal(b))

	require.NoError(t, b.SetFloat(MF, []float64{math.NaN(), 1, 3}))
	assert.False(t, a.Equal(b))
}

func TestCarryAux(t *testing.T) {
	prev := sample(t, 3)
	require.NoError(t, prev.SetFloat(MF, []float64{0, 0, 1200}))
	require.NoError(t, prev.SetString(MFDate, []string{"", "", "2024-01-03"}))
	require.NoError(t, prev.SetFloat(FairValue, []float64{0, 0, 12.5}))

	fresh := sample(t, 4)
	fresh.CarryAux(prev)

	assert.Equal(t, []float64{1200, 1200, 1200, 1200}, fresh.Float(MF))
	assert.Equal(t, "2024-01-03", fresh.LastString(MFDate))
	assert.Equal(t, 12.5, fresh.Last(FairValue))
	assert.False(t, fresh.Has(FII))
}

func TestTruncateKeepsMostRecentRows(t *testing.T) {
	a, b := Truncate(sample(t, 10), sample(t, 6))
	assert.Equal(t, 6, a.Len())
	assert.Equal(t, 6, b.Len())
	assert.Equal(t, 19.5, a.Last(Close))
}

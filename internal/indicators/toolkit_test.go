package indicators

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/records"
	"github.com/wonny/screener/internal/timeseries"
)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

// bars builds a frame from closes: open half a point below, one point of range
func bars(t *testing.T, closes, vols []float64) *timeseries.Frame {
	t.Helper()
	n := len(closes)
	o, h, l := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, c := range closes {
		o[i], h[i], l[i] = c-0.5, c+1, c-1
	}
	if vols == nil {
		vols = fill(1000, n)
	}
	f, err := timeseries.FromOHLCV(dates(n), o, h, l, closes, vols)
	require.NoError(t, err)
	return f
}

func input(full *timeseries.Frame, days int) Input {
	return Input{
		Ticker:   "SBIN",
		Full:     full,
		Windowed: full.Tail(days),
		Host:     full,
		Record:   records.New(nil),
		Params:   Params{DaysToLookback: days, MinLTP: 20, MaxLTP: 50000, VolumeRatio: 2.5},
	}
}

func TestPreprocess(t *testing.T) {
	tk := NewToolkit()
	data := bars(t, fill(100, 60), nil)

	full, windowed, err := tk.Preprocess(data, 22)
	require.NoError(t, err)
	assert.Equal(t, 60, full.Len())
	assert.Equal(t, 22, windowed.Len())
	for _, col := range []string{ColSMA, ColLMA, ColVolMA, timeseries.RSI, timeseries.CCI} {
		assert.True(t, full.Has(col), col)
	}
	assert.False(t, data.Has(ColSMA), "input must not be mutated")

	_, _, err = tk.Preprocess(nil, 22)
	assert.ErrorIs(t, err, contracts.ErrEmptyData)
}

func TestEvaluate_RSIBand(t *testing.T) {
	tests := []struct {
		name   string
		rsi    float64
		passed bool
	}{
		{"below band", 50, false},
		{"inside band", 70, true},
		{"upper edge", 75, true},
		{"above band", 80, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input(bars(t, fill(100, 30), nil), 22)
			require.NoError(t, in.Windowed.SetFloat(timeseries.RSI, fill(tt.rsi, 22)))
			in.Params.MinRSI, in.Params.MaxRSI = 60, 75

			res, err := NewToolkit().Evaluate(context.Background(), CheckRSI, in)
			require.NoError(t, err)
			assert.Equal(t, tt.passed, res.Passed)
			assert.Equal(t, tt.rsi, in.Record.Saved(records.RSI))
		})
	}
}

func TestEvaluate_Breakout(t *testing.T) {
	closes := fill(100, 30)

	t.Run("fresh breakout", func(t *testing.T) {
		c := append(append([]float64(nil), closes[:29]...), 104)
		in := input(bars(t, c, nil), 22)
		in.Params.AlreadyBrokenOut = true

		res, err := NewToolkit().Evaluate(context.Background(), CheckBreakout, in)
		require.NoError(t, err)
		assert.True(t, res.Passed)
		assert.Equal(t, 101.0, res.Value)
		assert.Equal(t, "BO: 101.00 R: 105.00", in.Record.Saved(records.Breakout))
	})

	t.Run("probable breakout below resistance", func(t *testing.T) {
		c := append(append([]float64(nil), closes[:29]...), 99.5)
		in := input(bars(t, c, nil), 22)

		res, err := NewToolkit().Evaluate(context.Background(), CheckBreakout, in)
		require.NoError(t, err)
		assert.True(t, res.Passed)
	})

	t.Run("flat close is not a fresh breakout", func(t *testing.T) {
		in := input(bars(t, closes, nil), 22)
		in.Params.AlreadyBrokenOut = true

		res, err := NewToolkit().Evaluate(context.Background(), CheckBreakout, in)
		require.NoError(t, err)
		assert.False(t, res.Passed)
	})
}

func TestEvaluate_VolumeSurge(t *testing.T) {
	tests := []struct {
		name   string
		last   float64
		passed bool
	}{
		{"surge", 3000, true},
		{"no surge", 2000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vols := fill(1000, 30)
			vols[29] = tt.last
			tk := NewToolkit()
			full, windowed, err := tk.Preprocess(bars(t, fill(100, 30), vols), 22)
			require.NoError(t, err)

			in := input(full, 22)
			in.Windowed = windowed
			in.Params.MinVolume = 1500

			res, err := tk.Evaluate(context.Background(), CheckVolume, in)
			require.NoError(t, err)
			assert.Equal(t, tt.passed, res.Passed)
			assert.True(t, res.Flag)
		})
	}
}

func TestEvaluate_LTPRange(t *testing.T) {
	in := input(bars(t, fill(10, 30), nil), 22)
	res, err := NewToolkit().Evaluate(context.Background(), CheckLTP, in)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, 10.0, in.Record.Saved(records.LTP))
}

func TestEvaluate_Consolidation(t *testing.T) {
	c := make([]float64, 30)
	for i := range c {
		c[i] = 100 + float64(i%6)
	}
	in := input(bars(t, c, nil), 22)
	in.Params.ConsolidationPct = 10

	res, err := NewToolkit().Evaluate(context.Background(), CheckConsolidation, in)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.InDelta(t, 4.76, res.Value, 0.01)
	assert.Equal(t, "Range:4.8%", in.Record.Saved(records.Consol))
}

func TestEvaluate_Trend(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = 100 + 2*float64(i)
	}
	in := input(bars(t, up, nil), 22)
	res, err := NewToolkit().Evaluate(context.Background(), CheckTrend, in)
	require.NoError(t, err)
	assert.Greater(t, res.Value, 30.0)
	assert.Equal(t, TrendStrongUp, in.Record.Saved(records.Trend))

	flat := input(bars(t, fill(100, 30), nil), 22)
	_, err = NewToolkit().Evaluate(context.Background(), CheckTrend, flat)
	require.NoError(t, err)
	assert.Equal(t, TrendSideways, flat.Record.Saved(records.Trend))
}

func TestDetectCandle(t *testing.T) {
	f, err := timeseries.FromOHLCV(dates(2),
		[]float64{105, 99},
		[]float64{106, 107},
		[]float64{99, 98},
		[]float64{100, 106},
		[]float64{1000, 1000})
	require.NoError(t, err)
	assert.Equal(t, PatternBullishEngulfing, detectCandle(f))
	_, ok := BullishReversalPatterns[detectCandle(f)]
	assert.True(t, ok)
}

type stubFunds struct {
	calls int
	flow  contracts.FundFlow
	err   error
}

func (s *stubFunds) Lookup(context.Context, string) (contracts.FundFlow, error) {
	s.calls++
	return s.flow, s.err
}

func TestEvaluate_UptrendCarriesFundFlow(t *testing.T) {
	src := &stubFunds{flow: contracts.FundFlow{MFStake: 1.5, MFDate: "2024-03", FairValue: 120}}
	tk := NewToolkit(WithFundFlow(src))
	in := input(bars(t, fill(100, 30), nil), 22)

	res, err := tk.Evaluate(context.Background(), CheckUptrend, in)
	require.NoError(t, err)
	assert.Equal(t, 1.5, res.Value)
	assert.Equal(t, 20.0, res.Extra)
	assert.Equal(t, 1.5, in.Host.Last(timeseries.MF))
	assert.Equal(t, "2024-03", in.Host.LastString(timeseries.MFDate))

	// second pass reads the carried columns
	_, err = tk.Evaluate(context.Background(), CheckUptrend, in)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	// a forced refresh always hits the source
	_, err = tk.Evaluate(context.Background(), CheckFundFlow, in)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestEvaluate_Errors(t *testing.T) {
	in := input(bars(t, fill(100, 30), nil), 22)
	tk := NewToolkit()

	_, err := tk.Evaluate(context.Background(), CheckLorentzian, in)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = tk.Evaluate(context.Background(), CheckFundFlow, in)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = tk.Evaluate(context.Background(), Check("nope"), in)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tk.Evaluate(ctx, CheckLTP, in)
	assert.True(t, errors.Is(err, context.Canceled))

	in.Windowed = nil
	_, err = tk.Evaluate(context.Background(), CheckLTP, in)
	assert.ErrorIs(t, err, contracts.ErrEmptyData)
}

func TestValidityChecks(t *testing.T) {
	up := make([]float64, 60)
	for i := range up {
		up[i] = 100 + 3*float64(i)
	}
	in := input(bars(t, up, nil), 22)

	assert.True(t, validityChecks[CheckHigherHighsLowsCloses](in))
	assert.False(t, validityChecks[CheckLowerHighsLows](in))
	assert.True(t, validityChecks[Check52WeekHighBreakout](in))
	assert.True(t, validityChecks[CheckShortTermBullish](in))
}

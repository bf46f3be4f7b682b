package indicators

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/records"
	"github.com/wonny/screener/internal/timeseries"
)

// ErrUnavailable means the runtime lacks a capability a check needs.
// Callers treat it as "no match", never as a failure.
var ErrUnavailable = errors.New("indicator capability unavailable")

// Columns added by Preprocess
const (
	ColSMA   = "SMA"   // 50 period
	ColLMA   = "LMA"   // 200 period
	ColVolMA = "VolMA" // 20 period
)

// Check names one indicator evaluation
type Check string

// Baseline and enrichment checks
const (
	CheckLTP           Check = "ltp"
	CheckVolume        Check = "volume"
	Check52Week        Check = "week52"
	CheckNewlyListed   Check = "newly_listed"
	CheckIPOBase       Check = "ipo_base"
	CheckTrend         Check = "trend"
	CheckCCI           Check = "cci"
	CheckMovingAverage Check = "moving_averages"
	CheckInsideBar     Check = "inside_bar"
	CheckMomentum      Check = "momentum"
	CheckCandlePattern Check = "candle_pattern"
	CheckUptrend       Check = "uptrend"
	CheckFundFlow      Check = "fund_flow_refresh"
)

// Strategy checks
const (
	CheckBreakout          Check = "breakout"
	CheckPotentialBreakout Check = "potential_breakout"
	CheckConsolidation     Check = "consolidation"
	CheckLowestVolume      Check = "lowest_volume"
	CheckRSI               Check = "rsi"
	CheckRSICrossMA        Check = "rsi_cross_ma"
	CheckRisingRSI         Check = "rising_rsi"
	CheckPSARRSI           Check = "psar_rsi"
	CheckNarrowRange       Check = "narrow_range"
	CheckVSA               Check = "vsa"
	CheckMASupport         Check = "ma_support"
	CheckLorentzian        Check = "lorentzian"
	CheckConfluence        Check = "confluence"
	CheckVCP               Check = "vcp"
	CheckTrendline         Check = "trendline"
	CheckBBandsSqueeze     Check = "bbands_squeeze"
	CheckPriceRising       Check = "price_rising"
)

// Validity checks
const (
	CheckShortTermBullish      Check = "short_term_bullish"
	CheckPriceVolumeBreakout   Check = "price_volume_breakout"
	CheckBullishRSIMACD        Check = "bullish_rsi_macd"
	CheckNR4                   Check = "nr4"
	Check52WeekLowBreakout     Check = "week52_low_breakout"
	Check10DayLowBreakout      Check = "day10_low_breakout"
	Check52WeekHighBreakout    Check = "week52_high_breakout"
	CheckAroonBullishCross     Check = "aroon_bullish_cross"
	CheckMACDHistogramBelow0   Check = "macd_histogram_below_zero"
	CheckBullishForTomorrow    Check = "bullish_for_tomorrow"
	CheckBreakingOutNow        Check = "breaking_out_now"
	CheckHigherHighsLowsCloses Check = "higher_highs_lows_closes"
	CheckLowerHighsLows        Check = "lower_highs_lows"
	CheckATRCross              Check = "atr_cross"
	CheckHigherBullishOpens    Check = "higher_bullish_opens"
)

// Params are the thresholds a check may read
type Params struct {
	MinLTP, MaxLTP      float64
	VolumeRatio         float64
	MinVolume           float64
	MinRSI, MaxRSI      float64
	ConsolidationPct    float64
	DaysToLookback      int
	DaysForLowestVolume int
	MALength            int
	MARange             float64 // percent band around an average
	ConfluencePct       float64 // fraction, e.g. 0.1
	InsideBarLookback   int
	ChartPattern        int // inside bar direction: 1 bullish, 2 bearish
	Direction           int // 1 bullish, 2 bearish, 3 either
	AlreadyBrokenOut    bool
	PeriodDays          int
	OnlyMF              bool
	StageTwo            bool
}

// Input is everything a check may read or annotate
type Input struct {
	Ticker   string
	Exchange string
	Full     *timeseries.Frame // long history, oldest first
	Windowed *timeseries.Frame // lookback-limited tail of Full
	Host     *timeseries.Frame // resolved series as cached; aux columns are written here
	Record   *records.Pair
	Params   Params
}

// note annotates the record when one is attached
func (in Input) note(key string, display, save any) {
	if in.Record == nil {
		return
	}
	_ = in.Record.Set(key, display, save)
}

// Result is the outcome of one check
type Result struct {
	Passed bool
	Value  float64 // primary numeric reading (sign carries direction where relevant)
	Extra  float64 // secondary reading
	Flag   bool    // secondary boolean (stage two, min volume quantity)
}

// Evaluator is the indicator capability the screening core calls
type Evaluator interface {
	Preprocess(data *timeseries.Frame, daysToLookback int) (full, windowed *timeseries.Frame, err error)
	Evaluate(ctx context.Context, check Check, in Input) (Result, error)
}

// Toolkit is the reference Evaluator
// ⭐ SSOT: indicator math for the screener lives in this package only
type Toolkit struct {
	funds contracts.FundFlowSource
}

// Option customizes a Toolkit
type Option func(*Toolkit)

// WithFundFlow wires the ownership / fair value source used by uptrend checks
func WithFundFlow(src contracts.FundFlowSource) Option {
	return func(t *Toolkit) { t.funds = src }
}

// NewToolkit creates the reference evaluator
func NewToolkit(opts ...Option) *Toolkit {
	t := &Toolkit{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Preprocess appends moving averages, RSI and CCI to a copy of data and
// returns it with its lookback-limited tail
func (t *Toolkit) Preprocess(data *timeseries.Frame, daysToLookback int) (*timeseries.Frame, *timeseries.Frame, error) {
	if data.Empty() {
		return nil, nil, contracts.ErrEmptyData
	}
	full := data.Clone()
	closes := full.Float(timeseries.Close)
	if closes == nil {
		return nil, nil, fmt.Errorf("preprocess: missing %s column", timeseries.Close)
	}
	high, low := full.Float(timeseries.High), full.Float(timeseries.Low)

	for _, col := range []struct {
		name string
		vals []float64
	}{
		{ColSMA, SMA(closes, 50)},
		{ColLMA, SMA(closes, 200)},
		{ColVolMA, SMA(full.Float(timeseries.Volume), 20)},
		{timeseries.RSI, RSI(closes, 14)},
		{timeseries.CCI, CCI(high, low, closes, 20)},
	} {
		if err := full.SetFloat(col.name, col.vals); err != nil {
			return nil, nil, err
		}
	}

	return full, full.Tail(daysToLookback), nil
}

// Evaluate runs one check
func (t *Toolkit) Evaluate(ctx context.Context, check Check, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if in.Full.Empty() || in.Windowed.Empty() {
		return Result{}, contracts.ErrEmptyData
	}

	switch check {
	// baseline
	case CheckLTP:
		return t.validateLTP(in), nil
	case CheckVolume:
		return t.validateVolume(in), nil
	case Check52Week:
		return t.find52WeekHighLow(in), nil
	case CheckNewlyListed:
		return t.validateNewlyListed(in), nil
	case CheckIPOBase:
		return t.validateIPOBase(in), nil

	// strategies
	case CheckBreakout:
		return t.findBreakout(in), nil
	case CheckPotentialBreakout:
		return t.findPotentialBreakout(in), nil
	case CheckConsolidation:
		return t.validateConsolidation(in), nil
	case CheckLowestVolume:
		return t.validateLowestVolume(in), nil
	case CheckRSI:
		return t.validateRSI(in), nil
	case CheckRSICrossMA:
		return t.findRSICrossingMA(in), nil
	case CheckRisingRSI:
		return t.findRisingRSI(in), nil
	case CheckPSARRSI:
		return t.findPSARReversalWithRSI(in), nil
	case CheckNarrowRange:
		return t.validateNarrowRange(in, in.Params.MALength), nil
	case CheckVSA:
		return t.validateVolumeSpread(in), nil
	case CheckMASupport:
		return t.findReversalMA(in), nil
	case CheckConfluence:
		return t.validateConfluence(in), nil
	case CheckVCP:
		return t.validateVCP(in), nil
	case CheckBBandsSqueeze:
		return t.findBBandsSqueeze(in), nil
	case CheckPriceRising:
		return t.validatePriceRising(in), nil
	case CheckLorentzian, CheckTrendline:
		return Result{}, ErrUnavailable

	// late checks
	case CheckTrend:
		return t.findTrend(in), nil
	case CheckCCI:
		return t.validateCCI(in), nil
	case CheckMovingAverage:
		return t.validateMovingAverages(in), nil
	case CheckInsideBar:
		return t.validateInsideBar(in), nil
	case CheckMomentum:
		return t.validateMomentum(in), nil
	case CheckCandlePattern:
		return t.findPattern(in), nil
	case CheckUptrend:
		return t.findUptrend(ctx, in)
	case CheckFundFlow:
		return t.refreshFundFlow(ctx, in)
	}

	if fn, ok := validityChecks[check]; ok {
		return Result{Passed: fn(in)}, nil
	}
	return Result{}, fmt.Errorf("unknown check %q", check)
}

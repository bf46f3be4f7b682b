package strategy

import (
	"fmt"

	"github.com/wonny/screener/internal/indicators"
)

// Strategy is one mutually exclusive screening rule.
// ⭐ SSOT: the variant set is closed; numeric menu codes exist only in FromCodes/Codes
type Strategy interface {
	Name() string
	isStrategy()
}

// ReversalKind selects the sub-strategy of Reversal
type ReversalKind int

const (
	BullishCandle ReversalKind = iota + 1
	BearishCandle
	Momentum
	MASupport
	VSA
	NarrowRange
	Lorentzian
	PSARRSI
	RisingRSI
	RSICrossMA
)

var reversalNames = map[ReversalKind]string{
	BullishCandle: "bullish_candle",
	BearishCandle: "bearish_candle",
	Momentum:      "momentum",
	MASupport:     "ma_support",
	VSA:           "vsa",
	NarrowRange:   "narrow_range",
	Lorentzian:    "lorentzian",
	PSARRSI:       "psar_rsi",
	RisingRSI:     "rising_rsi",
	RSICrossMA:    "rsi_cross_ma",
}

// ChartPatternKind selects the sub-strategy of ChartPattern
type ChartPatternKind int

const (
	InsideBarBullish ChartPatternKind = iota + 1
	InsideBarBearish
	Confluence
	VCP
	Trendline
	BBandsSqueeze
	Candlestick
)

var chartNames = map[ChartPatternKind]string{
	InsideBarBullish: "inside_bar_bullish",
	InsideBarBearish: "inside_bar_bearish",
	Confluence:       "confluence",
	VCP:              "vcp",
	Trendline:        "trendline",
	BBandsSqueeze:    "bbands_squeeze",
	Candlestick:      "candlestick",
}

// FundFlowKind selects the ownership / valuation reading of FundFlow
type FundFlowKind int

const (
	MFBuying    FundFlowKind = 3
	FIIBuying   FundFlowKind = 5
	MFSelling   FundFlowKind = 6
	FIISelling  FundFlowKind = 7
	Undervalued FundFlowKind = 8
	Overvalued  FundFlowKind = 9
)

var fundFlowNames = map[FundFlowKind]string{
	MFBuying:    "mf_buying",
	FIIBuying:   "fii_buying",
	MFSelling:   "mf_selling",
	FIISelling:  "fii_selling",
	Undervalued: "undervalued",
	Overvalued:  "overvalued",
}

type (
	NoFilter         struct{}
	BreakoutProbable struct{}
	BreakoutToday    struct{}
	Consolidating    struct{}
	LowestVolume     struct{}
	RSIBand          struct{}
	Reversal         struct{ Kind ReversalKind }
	ChartPattern     struct{ Kind ChartPatternKind }
	CCIBand          struct{}
	VolumeRatio      struct{}
	PriceRising      struct{}
	ShortTermBullish struct{}
	ValidityCheck    struct {
		Code  int
		Check indicators.Check
	}
	FundFlow struct{ Kind FundFlowKind }
	Hidden   struct{}
)

func (NoFilter) isStrategy()         {}
func (BreakoutProbable) isStrategy() {}
func (BreakoutToday) isStrategy()    {}
func (Consolidating) isStrategy()    {}
func (LowestVolume) isStrategy()     {}
func (RSIBand) isStrategy()          {}
func (Reversal) isStrategy()         {}
func (ChartPattern) isStrategy()     {}
func (CCIBand) isStrategy()          {}
func (VolumeRatio) isStrategy()      {}
func (PriceRising) isStrategy()      {}
func (ShortTermBullish) isStrategy() {}
func (ValidityCheck) isStrategy()    {}
func (FundFlow) isStrategy()         {}
func (Hidden) isStrategy()           {}

func (NoFilter) Name() string         { return "no_filter" }
func (BreakoutProbable) Name() string { return "breakout_probable" }
func (BreakoutToday) Name() string    { return "breakout_today" }
func (Consolidating) Name() string    { return "consolidating" }
func (LowestVolume) Name() string     { return "lowest_volume" }
func (RSIBand) Name() string          { return "rsi_band" }
func (r Reversal) Name() string       { return "reversal/" + reversalNames[r.Kind] }
func (c ChartPattern) Name() string   { return "chart/" + chartNames[c.Kind] }
func (CCIBand) Name() string          { return "cci_band" }
func (VolumeRatio) Name() string      { return "volume_ratio" }
func (PriceRising) Name() string      { return "price_rising" }
func (ShortTermBullish) Name() string { return "short_term_bullish" }
func (v ValidityCheck) Name() string  { return "validity/" + string(v.Check) }
func (f FundFlow) Name() string       { return "fund_flow/" + fundFlowNames[f.Kind] }
func (Hidden) Name() string           { return "hidden" }

// OnlyMF reports whether the fair value reading is irrelevant
func (f FundFlow) OnlyMF() bool {
	return f.Kind == FIIBuying || f.Kind == MFSelling
}

// validityCodes maps the single-check menu codes
var validityCodes = map[int]indicators.Check{
	12: indicators.CheckPriceVolumeBreakout,
	13: indicators.CheckBullishRSIMACD,
	14: indicators.CheckNR4,
	15: indicators.Check52WeekLowBreakout,
	16: indicators.Check10DayLowBreakout,
	17: indicators.Check52WeekHighBreakout,
	18: indicators.CheckAroonBullishCross,
	19: indicators.CheckMACDHistogramBelow0,
	20: indicators.CheckBullishForTomorrow,
	23: indicators.CheckBreakingOutNow,
	24: indicators.CheckHigherHighsLowsCloses,
	25: indicators.CheckLowerHighsLows,
	27: indicators.CheckATRCross,
	28: indicators.CheckHigherBullishOpens,
}

// FromCodes maps the menu option triple to a strategy.
// The sub-option is read only for the two compound codes (6, 7) and 21.
func FromCodes(execute, reversal, chart int) (Strategy, error) {
	switch execute {
	case 0, 22:
		return NoFilter{}, nil
	case 1:
		return BreakoutProbable{}, nil
	case 2:
		return BreakoutToday{}, nil
	case 3:
		return Consolidating{}, nil
	case 4:
		return LowestVolume{}, nil
	case 5:
		return RSIBand{}, nil
	case 6:
		if _, ok := reversalNames[ReversalKind(reversal)]; !ok {
			return nil, fmt.Errorf("unknown reversal option %d", reversal)
		}
		return Reversal{Kind: ReversalKind(reversal)}, nil
	case 7:
		if _, ok := chartNames[ChartPatternKind(chart)]; !ok {
			return nil, fmt.Errorf("unknown chart pattern option %d", chart)
		}
		return ChartPattern{Kind: ChartPatternKind(chart)}, nil
	case 8:
		return CCIBand{}, nil
	case 9:
		return VolumeRatio{}, nil
	case 10:
		return PriceRising{}, nil
	case 11:
		return ShortTermBullish{}, nil
	case 21:
		if _, ok := fundFlowNames[FundFlowKind(reversal)]; !ok {
			return nil, fmt.Errorf("unknown fund flow option %d", reversal)
		}
		return FundFlow{Kind: FundFlowKind(reversal)}, nil
	case 26:
		return Hidden{}, nil
	}
	if check, ok := validityCodes[execute]; ok {
		return ValidityCheck{Code: execute, Check: check}, nil
	}
	return nil, fmt.Errorf("unknown execute option %d", execute)
}

// Codes maps a strategy back to its menu option triple
func Codes(s Strategy) (execute, reversal, chart int) {
	switch v := s.(type) {
	case NoFilter:
		return 0, 0, 0
	case BreakoutProbable:
		return 1, 0, 0
	case BreakoutToday:
		return 2, 0, 0
	case Consolidating:
		return 3, 0, 0
	case LowestVolume:
		return 4, 0, 0
	case RSIBand:
		return 5, 0, 0
	case Reversal:
		return 6, int(v.Kind), 0
	case ChartPattern:
		return 7, 0, int(v.Kind)
	case CCIBand:
		return 8, 0, 0
	case VolumeRatio:
		return 9, 0, 0
	case PriceRising:
		return 10, 0, 0
	case ShortTermBullish:
		return 11, 0, 0
	case ValidityCheck:
		return v.Code, 0, 0
	case FundFlow:
		return 21, int(v.Kind), 0
	case Hidden:
		return 26, 0, 0
	}
	return -1, 0, 0
}

// Late-check gates. Each reports whether the pipeline skips or runs a shared
// step for this strategy.

// IsCandlestick reports whether the strategy itself is the candle match
func IsCandlestick(s Strategy) bool {
	c, ok := s.(ChartPattern)
	return ok && c.Kind == Candlestick
}

// SkipsMAValidity: confluence, short-term bullish and MA support read the
// averages themselves
func SkipsMAValidity(s Strategy) bool {
	switch v := s.(type) {
	case ShortTermBullish:
		return true
	case ChartPattern:
		return v.Kind == Confluence
	case Reversal:
		return v.Kind == MASupport
	}
	return false
}

// NeedsInsideBar reports the inside bar chart patterns
func NeedsInsideBar(s Strategy) bool {
	c, ok := s.(ChartPattern)
	return ok && c.Kind < Confluence
}

// ImpliesMomentum: these strategies either are or contradict a momentum read
func ImpliesMomentum(s Strategy) bool {
	switch v := s.(type) {
	case Reversal:
		return v.Kind == Lorentzian || v.Kind == NarrowRange || v.Kind == VSA
	case ChartPattern:
		return v.Kind == InsideBarBullish || v.Kind == InsideBarBearish || v.Kind == Trendline || v.Kind == VCP
	}
	return false
}

// IsLorentzian reports the classification strategy
func IsLorentzian(s Strategy) bool {
	r, ok := s.(Reversal)
	return ok && r.Kind == Lorentzian
}

// NeedsUptrend reports the fund flow strategies that read ownership live
func NeedsUptrend(s Strategy) bool {
	_, ok := s.(FundFlow)
	return ok
}

package strategy

import (
	"github.com/wonny/screener/internal/indicators"
)

// Flags are the intermediate readings the final predicate combines
type Flags struct {
	Strategy          Verdict
	HasMinVolumeRatio bool
	Pattern           string  // candlestick label, "" if none
	MAReversal        float64 // +1 support, -1 resistance, 0 none
	Momentum          bool
	InsideBar         float64 // lookback of a confirmed inside bar, 0 if none
	ValidCCI          bool
	IPOBase           bool // newly listed mode only
	MFStake           float64
	FairValueDiff     float64
}

// IsReportable decides whether a ticker that survived every check becomes a row
func IsReportable(s Strategy, f Flags, consolidationPct float64) bool {
	switch v := s.(type) {
	case NoFilter, Hidden:
		return true
	case BreakoutProbable, BreakoutToday:
		return f.Strategy.Matched && f.HasMinVolumeRatio
	case Consolidating:
		return f.Strategy.Value > 0 && f.Strategy.Value <= consolidationPct
	case CCIBand:
		return f.ValidCCI
	case VolumeRatio:
		return f.HasMinVolumeRatio
	case Reversal:
		return reversalReportable(v, f)
	case ChartPattern:
		// an IPO base stands in for the pattern, never for the inside bar
		if f.IPOBase && v.Kind >= Confluence {
			return true
		}
		if NeedsInsideBar(v) {
			return f.InsideBar > 0
		}
		return f.Strategy.Matched
	case FundFlow:
		switch v.Kind {
		case MFBuying, FIIBuying:
			return f.MFStake > 0
		case MFSelling, FIISelling:
			return f.MFStake < 0
		case Undervalued:
			return f.FairValueDiff > 0
		case Overvalued:
			return f.FairValueDiff < 0
		}
		return false
	}
	return f.Strategy.Matched
}

func reversalReportable(v Reversal, f Flags) bool {
	_, bullish := indicators.BullishReversalPatterns[f.Pattern]
	_, bearish := indicators.BearishReversalPatterns[f.Pattern]

	switch v.Kind {
	case BullishCandle:
		return f.MAReversal > 0 || bullish
	case BearishCandle:
		return f.MAReversal < 0 || bearish
	case Momentum:
		return f.Momentum
	case VSA:
		return f.Strategy.Matched && bullish
	}
	return f.Strategy.Matched
}

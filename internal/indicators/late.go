package indicators

import (
	"fmt"
	"math"
	"strings"

	"github.com/wonny/screener/internal/records"
	"github.com/wonny/screener/internal/timeseries"
)

// Trend labels written to the record
const (
	TrendStrongUp   = "Strong Up"
	TrendWeakUp     = "Weak Up"
	TrendSideways   = "Sideways"
	TrendWeakDown   = "Weak Down"
	TrendStrongDown = "Strong Down"
)

// MA-Signal labels written by validateMovingAverages
const (
	SignalBullish   = "Bullish"
	SignalBearish   = "Bearish"
	SignalNeutral   = "Neutral"
	Signal50Support = "50MA-Support"
	Signal50Resist  = "50MA-Resist"
	Signal200Support = "200MA-Support"
	Signal200Resist = "200MA-Resist"
)

// findTrend fits a line through the lookback closes and buckets its angle.
// Value is the angle in degrees, one percent per bar being 45°.
func (t *Toolkit) findTrend(in Input) Result {
	closes := lastN(in.Windowed.Float(timeseries.Close), in.Params.DaysToLookback)
	avg := mean(closes)
	if len(closes) < 2 || math.IsNaN(avg) || avg == 0 {
		in.note(records.Trend, "Unknown", "Unknown")
		return Result{}
	}
	slope := Slope(closes) / avg * 100
	angle := round2(math.Atan(slope) * 180 / math.Pi)

	label := trendLabel(angle)
	in.note(records.Trend, fmt.Sprintf("%s (%.0f°)", label, angle), label)
	return Result{Passed: true, Value: angle}
}

func trendLabel(angle float64) string {
	switch {
	case angle >= 30:
		return TrendStrongUp
	case angle >= 10:
		return TrendWeakUp
	case angle > -10:
		return TrendSideways
	case angle > -30:
		return TrendWeakDown
	default:
		return TrendStrongDown
	}
}

// validateCCI reads the CCI bounds from the RSI band params
func (t *Toolkit) validateCCI(in Input) Result {
	cci := math.Round(in.Windowed.Last(timeseries.CCI))
	if math.IsNaN(cci) {
		return Result{}
	}
	in.note(records.CCI, fmt.Sprintf("%.0f", cci), cci)
	return Result{Passed: cci >= in.Params.MinRSI && cci <= in.Params.MaxRSI, Value: cci}
}

// validateMovingAverages labels the 50/200 alignment. Value is +1 when price
// sits on an average from above (support) and -1 from below (resistance).
func (t *Toolkit) validateMovingAverages(in Input) Result {
	sma, lma := in.Windowed.Last(ColSMA), in.Windowed.Last(ColLMA)
	ltp := in.Windowed.Last(timeseries.Close)
	if math.IsNaN(sma) {
		return Result{}
	}
	band := in.Params.MARange
	if band <= 0 {
		band = 1.25
	}

	label := SignalNeutral
	switch {
	case !math.IsNaN(lma) && sma > lma && ltp > sma:
		label = SignalBullish
	case !math.IsNaN(lma) && sma < lma && ltp < sma:
		label = SignalBearish
	}

	value := 0.0
	near := func(ma float64) bool { return !math.IsNaN(ma) && math.Abs(ltp-ma)/ma*100 <= band }
	switch {
	case near(sma) && ltp >= sma:
		label, value = Signal50Support, 1
	case near(sma):
		label, value = Signal50Resist, -1
	case near(lma) && ltp >= lma:
		label, value = Signal200Support, 1
	case near(lma):
		label, value = Signal200Resist, -1
	}

	in.note(records.MASignal, label, label)
	return Result{Passed: true, Value: value}
}

// validateInsideBar: every bar after the mother bar stays inside its range.
// ChartPattern 1 also wants an up trend with bullish averages, 2 the opposite.
func (t *Toolkit) validateInsideBar(in Input) Result {
	n := in.Params.InsideBarLookback
	if n <= 0 {
		n = 7
	}
	high, low := in.Windowed.Float(timeseries.High), in.Windowed.Float(timeseries.Low)
	if len(high) <= n {
		return Result{}
	}
	mh, ml := at(high, n), at(low, n)
	for back := n - 1; back >= 0; back-- {
		if at(high, back) > mh || at(low, back) < ml {
			return Result{}
		}
	}

	if in.Record != nil {
		trend := in.Record.SavedString(records.Trend)
		signal := in.Record.SavedString(records.MASignal)
		switch in.Params.ChartPattern {
		case 1:
			if !strings.Contains(trend, "Up") || !strings.Contains(signal, SignalBullish) {
				return Result{}
			}
		case 2:
			if !strings.Contains(trend, "Down") || !strings.Contains(signal, SignalBearish) {
				return Result{}
			}
		}
	}

	label := fmt.Sprintf("Inside Bar (%d)", n)
	in.note(records.Pattern, label, label)
	return Result{Passed: true, Value: float64(n)}
}

// validateMomentum: three green candles with rising opens and closes
func (t *Toolkit) validateMomentum(in Input) Result {
	opens, closes := in.Windowed.Float(timeseries.Open), in.Windowed.Float(timeseries.Close)
	if len(closes) < 3 {
		return Result{}
	}
	for back := 0; back < 3; back++ {
		if at(closes, back) <= at(opens, back) {
			return Result{}
		}
		if back < 2 && (at(closes, back) <= at(closes, back+1) || at(opens, back) <= at(opens, back+1)) {
			return Result{}
		}
	}
	return Result{Passed: true, Value: round2((at(closes, 0) - at(opens, 2)) / at(opens, 2) * 100)}
}

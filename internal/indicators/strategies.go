package indicators

import (
	"fmt"
	"math"

	"github.com/wonny/screener/internal/records"
	"github.com/wonny/screener/internal/timeseries"
)

// findBreakout reads the resistance of the lookback window. AlreadyBrokenOut
// asks for a close above it today; otherwise a close within 3% below it.
func (t *Toolkit) findBreakout(in Input) Result {
	highs := in.Windowed.Float(timeseries.High)
	closes := in.Windowed.Float(timeseries.Close)
	if len(highs) < 2 {
		return Result{}
	}

	resistance := maxOf(highs[:len(highs)-1])
	recent := maxOf(lastN(in.Full.Float(timeseries.High), yearBars))
	ltp := at(closes, 0)
	prev := at(closes, 1)

	label := fmt.Sprintf("BO: %.2f R: %.2f", resistance, recent)
	in.note(records.Breakout, label, label)

	var passed bool
	if in.Params.AlreadyBrokenOut {
		passed = ltp > resistance && prev <= resistance
	} else {
		passed = ltp <= resistance && ltp >= 0.97*resistance
	}
	return Result{Passed: passed, Value: resistance, Extra: recent}
}

// findPotentialBreakout: today's close clears every close of the lookback
// after three higher closes
func (t *Toolkit) findPotentialBreakout(in Input) Result {
	closes := in.Full.Float(timeseries.Close)
	days := in.Params.DaysToLookback
	if days <= 0 || len(closes) < days+3 {
		return Result{}
	}
	ltp := at(closes, 0)
	prior := closes[len(closes)-1-days : len(closes)-1]
	rising := at(closes, 0) > at(closes, 1) && at(closes, 1) > at(closes, 2)
	return Result{Passed: rising && ltp > maxOf(prior), Value: maxOf(prior)}
}

func (t *Toolkit) validateConsolidation(in Input) Result {
	closes := in.Windowed.Float(timeseries.Close)
	hc, lc := maxOf(closes), minOf(closes)
	if hc <= 0 || math.IsInf(hc, 0) {
		return Result{}
	}
	pct := round2((hc - lc) / hc * 100)
	label := fmt.Sprintf("Range:%.1f%%", pct)
	in.note(records.Consol, label, label)
	return Result{Passed: pct != 0 && pct <= in.Params.ConsolidationPct, Value: pct}
}

func (t *Toolkit) validateLowestVolume(in Input) Result {
	days := in.Params.DaysForLowestVolume
	if days <= 0 {
		days = 30
	}
	vols := lastN(in.Full.Float(timeseries.Volume), days)
	vol := at(vols, 0)
	return Result{Passed: len(vols) > 1 && vol <= minOf(vols), Value: vol}
}

func (t *Toolkit) validateRSI(in Input) Result {
	rsi := math.Round(in.Windowed.Last(timeseries.RSI))
	if math.IsNaN(rsi) {
		return Result{}
	}
	in.note(records.RSI, fmt.Sprintf("%.0f", rsi), rsi)
	if in.Windowed.Has(timeseries.RSIi) {
		rsii := math.Round(in.Windowed.Last(timeseries.RSIi))
		if !math.IsNaN(rsii) {
			in.note(records.RSIi, fmt.Sprintf("%.0f", rsii), rsii)
		}
	}
	return Result{Passed: rsi >= in.Params.MinRSI && rsi <= in.Params.MaxRSI, Value: rsi}
}

// findRSICrossingMA: RSI crossing its own 9 period average
func (t *Toolkit) findRSICrossingMA(in Input) Result {
	rsi := validTail(in.Full.Float(timeseries.RSI))
	ma := SMA(rsi, 9)
	if len(rsi) < 11 || math.IsNaN(at(ma, 1)) {
		return Result{}
	}
	up := at(rsi, 1) <= at(ma, 1) && at(rsi, 0) > at(ma, 0)
	down := at(rsi, 1) >= at(ma, 1) && at(rsi, 0) < at(ma, 0)

	var passed bool
	switch direction(in.Params.Direction) {
	case 1:
		passed = up
	case 2:
		passed = down
	default:
		passed = up || down
	}
	if passed {
		label := "RSI-MA Buy"
		if down {
			label = "RSI-MA Sell"
		}
		in.note(records.MASignal, label, label)
	}
	return Result{Passed: passed, Value: at(rsi, 0)}
}

func (t *Toolkit) findRisingRSI(in Input) Result {
	rsi := in.Full.Float(timeseries.RSI)
	r0, r1, r2 := at(rsi, 0), at(rsi, 1), at(rsi, 2)
	return Result{Passed: r0 > r1 && r1 > r2 && r0 >= 50, Value: r0}
}

// findPSARReversalWithRSI: the SAR flipped below price on the last bar with RSI confirming
func (t *Toolkit) findPSARReversalWithRSI(in Input) Result {
	high, low := in.Full.Float(timeseries.High), in.Full.Float(timeseries.Low)
	closes := in.Full.Float(timeseries.Close)
	sar := PSAR(high, low, 0.02, 0.2)
	if len(closes) < 3 {
		return Result{}
	}
	flipped := at(closes, 1) < at(sar, 1) && at(closes, 0) > at(sar, 0)
	rsi := in.Full.Last(timeseries.RSI)
	passed := flipped && rsi >= 50
	if passed {
		in.note(records.Pattern, "PSAR-RSI Rev", "PSAR-RSI Rev")
	}
	return Result{Passed: passed, Value: at(sar, 0)}
}

// validateNarrowRange: the last bar has the narrowest range of the last nr bars
func (t *Toolkit) validateNarrowRange(in Input, nr int) Result {
	if nr <= 0 {
		nr = 4
	}
	high, low := in.Full.Float(timeseries.High), in.Full.Float(timeseries.Low)
	if len(high) < nr {
		return Result{}
	}
	ranges := make([]float64, nr)
	for i := 0; i < nr; i++ {
		ranges[i] = at(high, nr-1-i) - at(low, nr-1-i)
	}
	passed := ranges[nr-1] <= minOf(ranges)
	if passed {
		label := fmt.Sprintf("NR%d", nr)
		in.note(records.Pattern, label, label)
	}
	return Result{Passed: passed, Value: ranges[nr-1]}
}

// validateVolumeSpread: high effort (volume) with a narrow spread closing in
// the upper half of the bar, i.e. supply absorbed
func (t *Toolkit) validateVolumeSpread(in Input) Result {
	high, low := in.Windowed.Float(timeseries.High), in.Windowed.Float(timeseries.Low)
	closes, vols := in.Windowed.Float(timeseries.Close), in.Windowed.Float(timeseries.Volume)
	if len(closes) < 5 {
		return Result{}
	}
	spreads := make([]float64, len(high))
	for i := range high {
		spreads[i] = high[i] - low[i]
	}
	spread := at(spreads, 0)
	avgSpread := mean(spreads[:len(spreads)-1])
	avgVol := mean(vols[:len(vols)-1])

	upperHalf := spread > 0 && (at(closes, 0)-at(low, 0))/spread >= 0.5
	passed := at(vols, 0) >= 1.5*avgVol && spread <= 0.7*avgSpread && upperHalf
	return Result{Passed: passed, Value: at(vols, 0) / avgVol}
}

// findReversalMA: price dipped to the moving average and closed back above it
func (t *Toolkit) findReversalMA(in Input) Result {
	length := in.Params.MALength
	if length <= 0 {
		return Result{}
	}
	closes, low := in.Full.Float(timeseries.Close), in.Full.Float(timeseries.Low)
	ma := EMA(closes, length)
	m := at(ma, 0)
	if math.IsNaN(m) {
		return Result{}
	}
	passed := at(low, 0) <= m*1.01 && at(closes, 0) > m && at(closes, 1) > at(ma, 1)
	if passed {
		label := fmt.Sprintf("Reversal-%dMA", length)
		in.note(records.MASignal, label, label)
	}
	return Result{Passed: passed, Value: m}
}

// validateConfluence: the 50 and 200 period averages within a fraction of each other
func (t *Toolkit) validateConfluence(in Input) Result {
	sma, lma := in.Full.Last(ColSMA), in.Full.Last(ColLMA)
	if math.IsNaN(sma) || math.IsNaN(lma) || lma == 0 {
		return Result{}
	}
	pct := in.Params.ConfluencePct
	if pct <= 0 {
		pct = 0.1
	}
	gap := math.Abs(sma-lma) / lma
	if gap > pct {
		return Result{Value: gap}
	}

	bullish := sma >= lma
	var passed bool
	switch direction(in.Params.Direction) {
	case 1:
		passed = bullish
	case 2:
		passed = !bullish
	default:
		passed = true
	}
	if passed {
		side := "Up"
		if !bullish {
			side = "Down"
		}
		label := fmt.Sprintf("Confluence %s (%.1f%%)", side, gap*100)
		in.note(records.MASignal, label, label)
	}
	return Result{Passed: passed, Value: gap}
}

// validateVCP: three consecutive contracting ranges near the yearly high
func (t *Toolkit) validateVCP(in Input) Result {
	high, low := in.Full.Float(timeseries.High), in.Full.Float(timeseries.Low)
	const seg = 15
	if len(high) < 3*seg {
		return Result{}
	}
	var depth [3]float64
	for s := 0; s < 3; s++ {
		end := len(high) - (2-s)*seg
		h := maxOf(high[end-seg : end])
		l := minOf(low[end-seg : end])
		depth[s] = (h - l) / h
	}
	yearHigh := maxOf(lastN(high, yearBars))
	ltp := in.Full.Last(timeseries.Close)
	passed := depth[0] > depth[1] && depth[1] > depth[2] && ltp >= 0.9*yearHigh
	if passed {
		in.note(records.Pattern, "VCP", "VCP")
	}
	return Result{Passed: passed, Value: depth[2]}
}

// findBBandsSqueeze filter: 1 breakout up from a squeeze, 2 breakdown, 3 in squeeze, 4 any
func (t *Toolkit) findBBandsSqueeze(in Input) Result {
	closes := in.Full.Float(timeseries.Close)
	upper, mid, lower := Bollinger(closes, 20, 2)
	if len(closes) < 40 || math.IsNaN(at(mid, 20)) {
		return Result{}
	}
	width := make([]float64, 0, 20)
	for back := 20; back >= 1; back-- {
		width = append(width, (at(upper, back)-at(lower, back))/at(mid, back))
	}
	squeezed := width[len(width)-1] <= minOf(width)*1.05
	ltp := at(closes, 0)
	up := squeezed && ltp > at(upper, 0)
	down := squeezed && ltp < at(lower, 0)
	inSqueeze := (at(upper, 0)-at(lower, 0))/at(mid, 0) <= minOf(width)*1.05

	filter := in.Params.MALength
	if filter <= 0 {
		filter = 4
	}
	var passed bool
	switch filter {
	case 1:
		passed = up
	case 2:
		passed = down
	case 3:
		passed = inSqueeze
	default:
		passed = up || down || inSqueeze
	}
	if passed {
		in.note(records.Pattern, "BBands-SQZ", "BBands-SQZ")
	}
	return Result{Passed: passed, Value: width[len(width)-1]}
}

func (t *Toolkit) validatePriceRising(in Input) Result {
	closes := in.Windowed.Float(timeseries.Close)
	ltp, prev := at(closes, 0), at(closes, 1)
	if math.IsNaN(prev) || prev == 0 {
		return Result{}
	}
	change := (ltp - prev) / prev * 100
	return Result{Passed: change >= 2, Value: round2(change)}
}

// validTail drops the leading warm-up NaNs
func validTail(vals []float64) []float64 {
	for i, v := range vals {
		if !math.IsNaN(v) {
			return vals[i:]
		}
	}
	return nil
}

// direction maps a non-positive filter to "either"
func direction(d int) int {
	if d <= 0 || d > 3 {
		return 3
	}
	return d
}

package indicators

import (
	"fmt"
	"math"

	"github.com/wonny/screener/internal/records"
	"github.com/wonny/screener/internal/timeseries"
)

// yearBars is one year of daily sessions
const yearBars = 250

func (t *Toolkit) validateLTP(in Input) Result {
	closes := in.Full.Float(timeseries.Close)
	ltp := at(closes, 0)
	prev := at(closes, 1)

	change := 0.0
	if !math.IsNaN(prev) && prev != 0 {
		change = round2((ltp - prev) / prev * 100)
	}
	in.note(records.LTP, records.Price(ltp), round2(ltp))
	in.note(records.Change, records.Percent(change), change)

	if days := in.Params.DaysToLookback; days > 0 {
		base := at(closes, days)
		if !math.IsNaN(base) && base != 0 {
			pd := round2((ltp - base) / base * 100)
			in.note(records.Period22, records.Percent(pd), pd)
		}
	}

	valid := ltp >= in.Params.MinLTP && ltp <= in.Params.MaxLTP

	// stage two: trading in the upper part of the yearly range, above a rising base
	stageTwo := true
	if in.Full.Len() > yearBars {
		yearHigh := maxOf(lastN(in.Full.Float(timeseries.High), yearBars))
		yearLow := minOf(lastN(in.Full.Float(timeseries.Low), yearBars))
		sma, lma := in.Full.Last(ColSMA), in.Full.Last(ColLMA)
		if ltp < 1.25*yearLow || ltp < 0.75*yearHigh || !(sma > lma) {
			stageTwo = false
		}
	}

	return Result{Passed: valid, Value: ltp, Extra: change, Flag: stageTwo}
}

func (t *Toolkit) validateVolume(in Input) Result {
	vols := in.Windowed.Float(timeseries.Volume)
	vol := at(vols, 0)

	volMA := in.Windowed.Last(ColVolMA)
	if math.IsNaN(volMA) || volMA == 0 {
		volMA = mean(vols[:len(vols)-1])
	}

	ratio := 0.0
	if !math.IsNaN(volMA) && volMA > 0 {
		ratio = round2(vol / volMA)
	}
	in.note(records.Volume, records.Ratio(ratio), ratio)

	return Result{
		Passed: ratio >= in.Params.VolumeRatio,
		Value:  ratio,
		Extra:  vol,
		Flag:   vol >= in.Params.MinVolume,
	}
}

func (t *Toolkit) find52WeekHighLow(in Input) Result {
	high := maxOf(lastN(in.Full.Float(timeseries.High), yearBars))
	low := minOf(lastN(in.Full.Float(timeseries.Low), yearBars))

	in.note(records.High52, records.Price(high), round2(high))
	in.note(records.Low52, records.Price(low), round2(low))

	return Result{Passed: true, Value: high, Extra: low}
}

func (t *Toolkit) validateNewlyListed(in Input) Result {
	idx := in.Full.Index()
	span := idx[len(idx)-1].Sub(idx[0]).Hours() / 24
	listed := in.Params.PeriodDays > 0 && span < float64(in.Params.PeriodDays)*0.95
	return Result{Passed: listed, Value: span}
}

// validateIPOBase looks for a newly listed stock that corrected at least 20%
// from its post-listing high and is now back within 10% of it
func (t *Toolkit) validateIPOBase(in Input) Result {
	highs := in.Full.Float(timeseries.High)
	closes := in.Full.Float(timeseries.Close)
	if len(highs) < 10 {
		return Result{}
	}

	peak := 0
	for i := 0; i < len(highs)-1; i++ {
		if highs[i] > highs[peak] {
			peak = i
		}
	}
	ipoHigh := highs[peak]
	trough := minOf(closes[peak:])
	ltp := at(closes, 0)

	corrected := trough <= 0.8*ipoHigh
	nearHigh := ltp >= 0.9*ipoHigh && ltp <= 1.05*ipoHigh
	if !(corrected && nearHigh) {
		return Result{}
	}

	gap := round2((ltp - ipoHigh) / ipoHigh * 100)
	label := fmt.Sprintf("IPO Base (%.1f%%)", gap)
	in.note(records.Pattern, label, label)
	return Result{Passed: true, Value: gap}
}

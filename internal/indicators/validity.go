package indicators

import (
	"github.com/wonny/screener/internal/timeseries"
)

// validityChecks are the pass/fail screens without record side effects
var validityChecks = map[Check]func(Input) bool{
	CheckShortTermBullish:      shortTermBullish,
	CheckPriceVolumeBreakout:   priceVolumeBreakout,
	CheckBullishRSIMACD:        bullishRSIMACD,
	CheckNR4:                   func(in Input) bool { return (&Toolkit{}).validateNarrowRange(in, 4).Passed },
	Check52WeekLowBreakout:     week52LowBreakout,
	Check10DayLowBreakout:      day10LowBreakout,
	Check52WeekHighBreakout:    week52HighBreakout,
	CheckAroonBullishCross:     aroonBullishCross,
	CheckMACDHistogramBelow0:   func(in Input) bool { _, _, h := macd(in); return at(h, 0) < 0 },
	CheckBullishForTomorrow:    bullishForTomorrow,
	CheckBreakingOutNow:        breakingOutNow,
	CheckHigherHighsLowsCloses: higherHighsLowsCloses,
	CheckLowerHighsLows:        lowerHighsLows,
	CheckATRCross:              atrCross,
	CheckHigherBullishOpens:    higherBullishOpens,
}

func ohlc(f *timeseries.Frame) (o, h, l, c []float64) {
	return f.Float(timeseries.Open), f.Float(timeseries.High), f.Float(timeseries.Low), f.Float(timeseries.Close)
}

func macd(in Input) (line, sig, hist []float64) {
	return MACD(in.Full.Float(timeseries.Close), 12, 26, 9)
}

// shortTermBullish: 9 > 21 > 50 EMA stack with price above the fastest
func shortTermBullish(in Input) bool {
	closes := in.Full.Float(timeseries.Close)
	e9, e21, e50 := at(EMA(closes, 9), 0), at(EMA(closes, 21), 0), at(EMA(closes, 50), 0)
	return at(closes, 0) > e9 && e9 > e21 && e21 > e50
}

func priceVolumeBreakout(in Input) bool {
	_, h, _, c := ohlc(in.Full)
	vols := in.Full.Float(timeseries.Volume)
	volMA := in.Full.Last(ColVolMA)
	return at(vols, 0) >= 2*volMA && at(c, 0) > at(h, 1)
}

func bullishRSIMACD(in Input) bool {
	_, _, hist := macd(in)
	return in.Full.Last(timeseries.RSI) >= 55 && at(hist, 0) > 0 && at(hist, 0) > at(hist, 1)
}

// week52LowBreakout: touched the yearly low within the last 10 bars, now above yesterday's high
func week52LowBreakout(in Input) bool {
	_, h, l, c := ohlc(in.Full)
	if len(l) < 12 {
		return false
	}
	yearLow := minOf(lastN(l, yearBars))
	recentLow := minOf(lastN(l, 10))
	return recentLow <= yearLow*1.02 && at(c, 0) > at(h, 1)
}

func day10LowBreakout(in Input) bool {
	_, h, l, c := ohlc(in.Full)
	if len(l) < 11 {
		return false
	}
	tenLow := minOf(l[len(l)-11 : len(l)-1])
	touched := minOf(lastN(l, 3)) <= tenLow
	return touched && at(c, 0) > at(c, 1) && at(c, 0) > at(h, 1)
}

func week52HighBreakout(in Input) bool {
	_, h, _, c := ohlc(in.Full)
	if len(h) < 2 {
		return false
	}
	prior := lastN(h[:len(h)-1], yearBars)
	return at(c, 0) > maxOf(prior)
}

func aroonBullishCross(in Input) bool {
	_, h, l, _ := ohlc(in.Full)
	up, down := Aroon(h, l, 14)
	return at(up, 1) <= at(down, 1) && at(up, 0) > at(down, 0)
}

// bullishForTomorrow: negative but rising histogram with a rising MACD line
func bullishForTomorrow(in Input) bool {
	line, _, hist := macd(in)
	return at(hist, 0) < 0 && at(hist, 0) > at(hist, 1) && at(hist, 1) > at(hist, 2) && at(line, 0) > at(line, 1)
}

func breakingOutNow(in Input) bool {
	o, h, _, c := ohlc(in.Full)
	if len(c) < 11 {
		return false
	}
	bodies := make([]float64, 10)
	for i := range bodies {
		b := at(c, i+1) - at(o, i+1)
		if b < 0 {
			b = -b
		}
		bodies[i] = b
	}
	body := at(c, 0) - at(o, 0)
	return body > 0 && body > 2*mean(bodies) && at(c, 0) > maxOf(h[len(h)-11:len(h)-1])
}

func higherHighsLowsCloses(in Input) bool {
	_, h, l, c := ohlc(in.Full)
	for back := 0; back < 2; back++ {
		if !(at(h, back) > at(h, back+1) && at(l, back) > at(l, back+1) && at(c, back) > at(c, back+1)) {
			return false
		}
	}
	return len(c) >= 3
}

func lowerHighsLows(in Input) bool {
	_, h, l, _ := ohlc(in.Full)
	for back := 0; back < 2; back++ {
		if !(at(h, back) < at(h, back+1) && at(l, back) < at(l, back+1)) {
			return false
		}
	}
	return len(h) >= 3
}

func atrCross(in Input) bool {
	o, h, l, c := ohlc(in.Full)
	atr := at(ATR(h, l, c, 14), 0)
	return at(c, 0) > at(o, 0) && at(c, 0)-at(o, 0) > atr
}

func higherBullishOpens(in Input) bool {
	o, h, _, c := ohlc(in.Full)
	return at(o, 0) > at(h, 1) && at(c, 0) > at(o, 0)
}

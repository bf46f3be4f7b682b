package indicators

import (
	"math"

	"github.com/wonny/screener/internal/records"
	"github.com/wonny/screener/internal/timeseries"
)

// Candlestick pattern names
const (
	PatternBullishEngulfing = "Bullish Engulfing"
	PatternBearishEngulfing = "Bearish Engulfing"
	PatternMorningStar      = "Morning Star"
	PatternEveningStar      = "Evening Star"
	PatternHammer           = "Hammer"
	PatternShootingStar     = "Shooting Star"
	PatternPiercingLine     = "Piercing Line"
	PatternDarkCloudCover   = "Dark Cloud Cover"
	PatternBullishHarami    = "Bullish Harami"
	PatternBearishHarami    = "Bearish Harami"
	PatternDoji             = "Doji"
)

// BullishReversalPatterns are the patterns that qualify a buy signal
var BullishReversalPatterns = map[string]struct{}{
	PatternBullishEngulfing: {},
	PatternMorningStar:      {},
	PatternHammer:           {},
	PatternPiercingLine:     {},
	PatternBullishHarami:    {},
}

// BearishReversalPatterns are the patterns that qualify a sell signal
var BearishReversalPatterns = map[string]struct{}{
	PatternBearishEngulfing: {},
	PatternEveningStar:      {},
	PatternShootingStar:     {},
	PatternDarkCloudCover:   {},
	PatternBearishHarami:    {},
}

type candle struct{ o, h, l, c float64 }

func (k candle) body() float64  { return math.Abs(k.c - k.o) }
func (k candle) span() float64  { return k.h - k.l }
func (k candle) green() bool    { return k.c > k.o }
func (k candle) red() bool      { return k.c < k.o }
func (k candle) mid() float64   { return (k.o + k.c) / 2 }
func (k candle) upper() float64 { return k.h - math.Max(k.o, k.c) }
func (k candle) lower() float64 { return math.Min(k.o, k.c) - k.l }

func candleAt(f *timeseries.Frame, back int) (candle, bool) {
	k := candle{
		o: at(f.Float(timeseries.Open), back),
		h: at(f.Float(timeseries.High), back),
		l: at(f.Float(timeseries.Low), back),
		c: at(f.Float(timeseries.Close), back),
	}
	if math.IsNaN(k.o) || math.IsNaN(k.c) || math.IsNaN(k.h) || math.IsNaN(k.l) {
		return k, false
	}
	return k, true
}

// findPattern names the most specific candlestick pattern on the last bars.
// Three-bar patterns win over two-bar ones which win over single bars.
func (t *Toolkit) findPattern(in Input) Result {
	name := detectCandle(in.Windowed)
	if name == "" {
		return Result{}
	}
	in.note(records.Pattern, name, name)
	return Result{Passed: true}
}

func detectCandle(f *timeseries.Frame) string {
	c0, ok0 := candleAt(f, 0)
	if !ok0 {
		return ""
	}
	c1, ok1 := candleAt(f, 1)
	c2, ok2 := candleAt(f, 2)

	if ok1 && ok2 {
		small := c1.body() <= 0.3*c2.body()
		if c2.red() && small && c0.green() && c0.c > c2.mid() {
			return PatternMorningStar
		}
		if c2.green() && small && c0.red() && c0.c < c2.mid() {
			return PatternEveningStar
		}
	}
	if ok1 {
		switch {
		case c1.red() && c0.green() && c0.o <= c1.c && c0.c >= c1.o:
			return PatternBullishEngulfing
		case c1.green() && c0.red() && c0.o >= c1.c && c0.c <= c1.o:
			return PatternBearishEngulfing
		case c1.red() && c0.green() && c0.o < c1.l && c0.c > c1.mid() && c0.c < c1.o:
			return PatternPiercingLine
		case c1.green() && c0.red() && c0.o > c1.h && c0.c < c1.mid() && c0.c > c1.o:
			return PatternDarkCloudCover
		case c1.red() && c0.green() && c0.o > c1.c && c0.c < c1.o:
			return PatternBullishHarami
		case c1.green() && c0.red() && c0.o < c1.c && c0.c > c1.o:
			return PatternBearishHarami
		}
	}

	span := c0.span()
	if span <= 0 {
		return ""
	}
	switch {
	case c0.body() <= 0.1*span:
		return PatternDoji
	case c0.lower() >= 2*c0.body() && c0.upper() <= 0.3*c0.body():
		return PatternHammer
	case c0.upper() >= 2*c0.body() && c0.lower() <= 0.3*c0.body():
		return PatternShootingStar
	}
	return ""
}

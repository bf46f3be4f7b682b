package indicators

import (
	"math"
)

// Rolling and smoothing helpers over oldest-first slices. Warm-up rows are NaN.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA is the simple moving average
func SMA(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	if period <= 0 || len(vals) < period {
		return out
	}
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= period {
			sum -= vals[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA is the exponential moving average seeded with the first SMA
func EMA(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	if period <= 0 || len(vals) < period {
		return out
	}
	k := 2.0 / float64(period+1)
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += vals[i]
	}
	out[period-1] = seed / float64(period)
	for i := period; i < len(vals); i++ {
		out[i] = vals[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI is Wilder's relative strength index
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}
	gain, loss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(period)
	loss /= float64(period)
	out[period] = rsiFrom(gain, loss)

	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		gain = (gain*float64(period-1) + g) / float64(period)
		loss = (loss*float64(period-1) + l) / float64(period)
		out[i] = rsiFrom(gain, loss)
	}
	return out
}

func rsiFrom(gain, loss float64) float64 {
	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

// CCI is the commodity channel index over typical price
func CCI(high, low, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if period <= 0 || n < period {
		return out
	}
	tp := make([]float64, n)
	for i := range tp {
		tp[i] = (high[i] + low[i] + closes[i]) / 3
	}
	ma := SMA(tp, period)
	for i := period - 1; i < n; i++ {
		dev := 0.0
		for j := i - period + 1; j <= i; j++ {
			dev += math.Abs(tp[j] - ma[i])
		}
		dev /= float64(period)
		if dev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - ma[i]) / (0.015 * dev)
	}
	return out
}

// MACD returns the MACD line, signal line and histogram
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	n := len(closes)
	line = nanSlice(n)
	fe, se := EMA(closes, fast), EMA(closes, slow)
	start := -1
	for i := 0; i < n; i++ {
		if !math.IsNaN(fe[i]) && !math.IsNaN(se[i]) {
			line[i] = fe[i] - se[i]
			if start < 0 {
				start = i
			}
		}
	}
	sig = nanSlice(n)
	hist = nanSlice(n)
	if start < 0 {
		return line, sig, hist
	}
	tail := EMA(line[start:], signal)
	for i, v := range tail {
		sig[start+i] = v
		if !math.IsNaN(v) {
			hist[start+i] = line[start+i] - v
		}
	}
	return line, sig, hist
}

// ATR is Wilder's average true range
func ATR(high, low, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if period <= 0 || n <= period {
		return out
	}
	tr := make([]float64, n)
	tr[0] = high[0] - low[0]
	for i := 1; i < n; i++ {
		tr[i] = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-closes[i-1]), math.Abs(low[i]-closes[i-1])))
	}
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)
	for i := period + 1; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// Bollinger returns the upper, middle and lower bands
func Bollinger(closes []float64, period int, k float64) (upper, mid, lower []float64) {
	n := len(closes)
	mid = SMA(closes, period)
	upper, lower = nanSlice(n), nanSlice(n)
	for i := period - 1; i < n && period > 0; i++ {
		if i < 0 {
			continue
		}
		sd := stddev(closes[i-period+1:i+1], mid[i])
		upper[i] = mid[i] + k*sd
		lower[i] = mid[i] - k*sd
	}
	return upper, mid, lower
}

func stddev(vals []float64, mean float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	ss := 0.0
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(vals)))
}

// Aroon returns the up and down oscillators
func Aroon(high, low []float64, period int) (up, down []float64) {
	n := len(high)
	up, down = nanSlice(n), nanSlice(n)
	for i := period; i < n; i++ {
		hi, lo := i-period, i-period
		for j := i - period; j <= i; j++ {
			if high[j] >= high[hi] {
				hi = j
			}
			if low[j] <= low[lo] {
				lo = j
			}
		}
		up[i] = float64(period-(i-hi)) / float64(period) * 100
		down[i] = float64(period-(i-lo)) / float64(period) * 100
	}
	return up, down
}

// PSAR is the parabolic stop and reverse
func PSAR(high, low []float64, step, maxStep float64) []float64 {
	n := len(high)
	out := nanSlice(n)
	if n < 2 {
		return out
	}
	bull := true
	af := step
	ep := high[0]
	sar := low[0]
	out[0] = sar
	for i := 1; i < n; i++ {
		sar = sar + af*(ep-sar)
		if bull {
			sar = math.Min(sar, low[i-1])
			if low[i] < sar {
				bull, sar, ep, af = false, ep, low[i], step
			} else if high[i] > ep {
				ep = high[i]
				af = math.Min(af+step, maxStep)
			}
		} else {
			sar = math.Max(sar, high[i-1])
			if high[i] > sar {
				bull, sar, ep, af = true, ep, high[i], step
			} else if low[i] < ep {
				ep = low[i]
				af = math.Min(af+step, maxStep)
			}
		}
		out[i] = sar
	}
	return out
}

// Slope is the least-squares slope of vals against their position
func Slope(vals []float64) float64 {
	n := float64(len(vals))
	if n < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, v := range vals {
		x := float64(i)
		sx += x
		sy += v
		sxy += x * v
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}

func maxOf(vals []float64) float64 {
	m := math.Inf(-1)
	for _, v := range vals {
		if !math.IsNaN(v) && v > m {
			m = v
		}
	}
	return m
}

func minOf(vals []float64) float64 {
	m := math.Inf(1)
	for _, v := range vals {
		if !math.IsNaN(v) && v < m {
			m = v
		}
	}
	return m
}

func mean(vals []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// lastN returns the trailing n values (fewer if the slice is short)
func lastN(vals []float64, n int) []float64 {
	if n >= len(vals) {
		return vals
	}
	if n <= 0 {
		return nil
	}
	return vals[len(vals)-n:]
}

// at returns vals[len-1-back], NaN when out of range
func at(vals []float64, back int) float64 {
	i := len(vals) - 1 - back
	if i < 0 || i >= len(vals) {
		return math.NaN()
	}
	return vals[i]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package records

import (
	"math"
)

// RealizeHorizons fills LTP<n>/Growth<n> from the validation slice of a
// backtest. closes[0] is the anchor (the last input row); closes[n] is the
// realized close n sessions later. Horizons beyond the slice stay NaN.
func (p *Pair) RealizeHorizons(closes []float64) {
	if len(closes) == 0 {
		return
	}
	anchor := closes[0]
	for _, prd := range p.periods {
		if prd >= len(closes) || anchor == 0 {
			continue
		}
		ltpKey, growthKey := HorizonKeys(prd)
		realized := closes[prd]
		growth := round2((realized - anchor) / anchor * 100)
		_ = p.Set(ltpKey, Price(realized), round2(realized))
		_ = p.Set(growthKey, Percent(growth), growth)
	}
}

// Growth returns the realized growth of a horizon, NaN if not realized
func (p *Pair) Growth(period int) float64 {
	_, key := HorizonKeys(period)
	if v, ok := p.save[key].(float64); ok {
		return v
	}
	return math.NaN()
}

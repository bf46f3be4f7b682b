package records

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
)

// Fixed keys of every result row
const (
	Stock     = "Stock"
	LTP       = "LTP"
	Change    = "%Chng"
	High52    = "52Wk H"
	Low52     = "52Wk L"
	RSI       = "RSI"
	RSIi      = "RSIi"
	Volume    = "Volume"
	Period22  = "22-Pd %"
	Consol    = "Consol."
	Breakout  = "Breakout"
	MASignal  = "MA-Signal"
	Trend     = "Trend"
	Pattern   = "Pattern"
	CCI       = "CCI"
	FairValue = "FairValue"
)

type field struct {
	key string
	def any
}

// baseSchema is the declared key order and default of every row
var baseSchema = []field{
	{Stock, ""},
	{LTP, 0.0},
	{Change, 0.0},
	{High52, 0.0},
	{Low52, 0.0},
	{RSI, 0.0},
	{RSIi, 0.0},
	{Volume, ""},
	{Period22, ""},
	{Consol, "Range:0%"},
	{Breakout, "BO: 0 R: 0"},
	{MASignal, ""},
	{Trend, ""},
	{Pattern, ""},
	{CCI, 0.0},
	{FairValue, "-"},
}

// Pair is the display/persistence record of one ticker
// ⭐ SSOT: both maps always share the exact same key set
type Pair struct {
	keys    []string
	known   map[string]struct{}
	display map[string]any
	save    map[string]any
	periods []int
}

// HorizonKeys returns the realized price and growth keys of a horizon
func HorizonKeys(period int) (ltp, growth string) {
	return "LTP" + strconv.Itoa(period), "Growth" + strconv.Itoa(period)
}

// New creates a pair with every declared key at its default.
// Horizon fields default to NaN.
func New(periods []int) *Pair {
	p := &Pair{
		known:   make(map[string]struct{}, len(baseSchema)+2*len(periods)),
		display: make(map[string]any, len(baseSchema)+2*len(periods)),
		save:    make(map[string]any, len(baseSchema)+2*len(periods)),
		periods: append([]int(nil), periods...),
	}
	for _, f := range baseSchema {
		p.declare(f.key, f.def)
	}
	for _, prd := range periods {
		ltpKey, growthKey := HorizonKeys(prd)
		p.declare(ltpKey, math.NaN())
		p.declare(growthKey, math.NaN())
	}
	return p
}

func (p *Pair) declare(key string, def any) {
	p.keys = append(p.keys, key)
	p.known[key] = struct{}{}
	p.display[key] = def
	p.save[key] = def
}

// Keys returns the declared key order
func (p *Pair) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Periods returns the configured horizons
func (p *Pair) Periods() []int {
	return p.periods
}

// Set writes a display value and a raw value under one declared key
func (p *Pair) Set(key string, display, save any) error {
	if _, ok := p.known[key]; !ok {
		return fmt.Errorf("record: undeclared key %q", key)
	}
	p.display[key] = display
	p.save[key] = save
	return nil
}

// SetBoth writes the same value to both maps
func (p *Pair) SetBoth(key string, v any) error {
	return p.Set(key, v, v)
}

// Display returns the display value of a key
func (p *Pair) Display(key string) any {
	return p.display[key]
}

// Saved returns the raw value of a key
func (p *Pair) Saved(key string) any {
	return p.save[key]
}

// SavedString returns the raw value of a key as text
func (p *Pair) SavedString(key string) string {
	if s, ok := p.save[key].(string); ok {
		return s
	}
	return fmt.Sprint(p.save[key])
}

// Maps returns copies of both maps
func (p *Pair) Maps() (display, save map[string]any) {
	display = make(map[string]any, len(p.display))
	save = make(map[string]any, len(p.save))
	for k, v := range p.display {
		display[k] = v
	}
	for k, v := range p.save {
		save[k] = v
	}
	return display, save
}

// Price formats a price for display
func Price(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return humanize.CommafWithDigits(round2(v), 2)
}

// Percent formats a change for display
func Percent(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", v)
}

// Ratio formats a volume ratio for display
func Ratio(v float64) string {
	return fmt.Sprintf("%.2fx", v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

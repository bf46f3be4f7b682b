package timeseries

import (
	"fmt"
	"math"
	"time"
)

// Standard OHLCV column names
const (
	Open   = "Open"
	High   = "High"
	Low    = "Low"
	Close  = "Close"
	Volume = "Volume"
)

// Derived columns appended by later stages
const (
	RSI       = "RSI"
	RSIi      = "RSIi"
	MASignal  = "MA-Signal"
	Pattern   = "Pattern"
	CCI       = "CCI"
	FairValue = "FairValue"
	MF        = "MF"
	MFDate    = "MF_Date"
	FII       = "FII"
	FIIDate   = "FII_Date"
)

// AuxColumns refresh on a slower cadence than price and survive a re-fetch
var AuxColumns = []string{MF, MFDate, FII, FIIDate, FairValue}

// Frame is an ordered price/volume series, oldest row first
// ⭐ SSOT: every stage reads and appends columns through this type
type Frame struct {
	index   []time.Time
	columns []string
	floats  map[string][]float64
	strs    map[string][]string
}

// New creates an empty frame over the given row labels
func New(index []time.Time) *Frame {
	idx := make([]time.Time, len(index))
	copy(idx, index)
	return &Frame{
		index:  idx,
		floats: make(map[string][]float64),
		strs:   make(map[string][]string),
	}
}

// FromOHLCV builds a frame with the five standard columns
func FromOHLCV(index []time.Time, open, high, low, closes, volume []float64) (*Frame, error) {
	f := New(index)
	for _, c := range []struct {
		name string
		vals []float64
	}{
		{Open, open}, {High, high}, {Low, low}, {Close, closes}, {Volume, volume},
	} {
		if err := f.SetFloat(c.name, c.vals); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Len returns the number of rows
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.index)
}

// Empty reports whether the frame has no rows
func (f *Frame) Empty() bool {
	return f.Len() == 0
}

// Index returns the row labels (read-only)
func (f *Frame) Index() []time.Time {
	return f.index
}

// Columns returns column names in insertion order (read-only)
func (f *Frame) Columns() []string {
	return f.columns
}

// Has reports whether a column exists
func (f *Frame) Has(col string) bool {
	_, fl := f.floats[col]
	_, st := f.strs[col]
	return fl || st
}

// IsString reports whether a column holds labels rather than numbers
func (f *Frame) IsString(col string) bool {
	_, ok := f.strs[col]
	return ok
}

// Float returns a numeric column (read-only); nil if absent
func (f *Frame) Float(col string) []float64 {
	return f.floats[col]
}

// String returns a label column (read-only); nil if absent
func (f *Frame) String(col string) []string {
	return f.strs[col]
}

// SetFloat appends a numeric column, or replaces it wholesale if it exists
func (f *Frame) SetFloat(col string, vals []float64) error {
	if len(vals) != f.Len() {
		return fmt.Errorf("column %s: %d values for %d rows", col, len(vals), f.Len())
	}
	if _, ok := f.strs[col]; ok {
		delete(f.strs, col)
	} else if _, ok := f.floats[col]; !ok {
		f.columns = append(f.columns, col)
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	f.floats[col] = cp
	return nil
}

// SetString appends a label column, or replaces it wholesale if it exists
func (f *Frame) SetString(col string, vals []string) error {
	if len(vals) != f.Len() {
		return fmt.Errorf("column %s: %d values for %d rows", col, len(vals), f.Len())
	}
	if _, ok := f.floats[col]; ok {
		delete(f.floats, col)
	} else if _, ok := f.strs[col]; !ok {
		f.columns = append(f.columns, col)
	}
	cp := make([]string, len(vals))
	copy(cp, vals)
	f.strs[col] = cp
	return nil
}

// Last returns the most recent value of a numeric column, NaN when unavailable
func (f *Frame) Last(col string) float64 {
	vals := f.floats[col]
	if len(vals) == 0 {
		return math.NaN()
	}
	return vals[len(vals)-1]
}

// LastString returns the most recent label of a column, "" when unavailable
func (f *Frame) LastString(col string) string {
	vals := f.strs[col]
	if len(vals) == 0 {
		return ""
	}
	return vals[len(vals)-1]
}

// Slice returns rows [i, j) as an independent frame
func (f *Frame) Slice(i, j int) *Frame {
	n := f.Len()
	if i < 0 {
		i = 0
	}
	if j > n {
		j = n
	}
	if i > j {
		i = j
	}

	out := New(f.index[i:j])
	out.columns = append([]string(nil), f.columns...)
	for k, v := range f.floats {
		out.floats[k] = append([]float64(nil), v[i:j]...)
	}
	for k, v := range f.strs {
		out.strs[k] = append([]string(nil), v[i:j]...)
	}
	return out
}

// Head returns the first n rows
func (f *Frame) Head(n int) *Frame {
	return f.Slice(0, n)
}

// Tail returns the last n rows
func (f *Frame) Tail(n int) *Frame {
	return f.Slice(f.Len()-n, f.Len())
}

// Clone returns a deep copy
func (f *Frame) Clone() *Frame {
	return f.Slice(0, f.Len())
}

// Equal compares labels, column order and values (NaN equals NaN)
func (f *Frame) Equal(o *Frame) bool {
	if f.Len() != o.Len() || len(f.columns) != len(o.columns) {
		return false
	}
	for i := range f.index {
		if !f.index[i].Equal(o.index[i]) {
			return false
		}
	}
	for i, col := range f.columns {
		if o.columns[i] != col {
			return false
		}
		if f.IsString(col) != o.IsString(col) {
			return false
		}
		if f.IsString(col) {
			a, b := f.strs[col], o.strs[col]
			for r := range a {
				if a[r] != b[r] {
					return false
				}
			}
			continue
		}
		a, b := f.floats[col], o.floats[col]
		for r := range a {
			if a[r] != b[r] && !(math.IsNaN(a[r]) && math.IsNaN(b[r])) {
				return false
			}
		}
	}
	return true
}

// CarryAux copies slow-changing auxiliary columns from a previous snapshot.
// Values are broadcast from the previous snapshot's most recent row.
func (f *Frame) CarryAux(prev *Frame) {
	if prev.Empty() || f.Empty() {
		return
	}
	for _, col := range AuxColumns {
		switch {
		case prev.IsString(col):
			_ = f.SetString(col, repeatString(prev.LastString(col), f.Len()))
		case prev.Has(col):
			_ = f.SetFloat(col, repeatFloat(prev.Last(col), f.Len()))
		}
	}
}

// Truncate cuts both frames to their common (most recent) length
func Truncate(a, b *Frame) (*Frame, *Frame) {
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}
	return a.Tail(n), b.Tail(n)
}

func repeatFloat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func repeatString(v string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = v
	}
	return out
}

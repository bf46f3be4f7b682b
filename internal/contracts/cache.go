package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/wonny/screener/internal/timeseries"
)

// IndexLayout is the serialized form of a row label
const IndexLayout = time.RFC3339Nano

// CacheEntry is the serialized snapshot of one ticker's series
// ⭐ SSOT: the only on-the-wire shape of a cached series
//
// Invariant: len(Data) == len(Index) and every row is len(Columns) wide
// once Repair has run.
type CacheEntry struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
	Index   []string `json:"index"`
}

// NewCacheEntry serializes a frame. NaN becomes null.
func NewCacheEntry(f *timeseries.Frame) CacheEntry {
	cols := append([]string(nil), f.Columns()...)
	entry := CacheEntry{
		Columns: cols,
		Data:    make([][]any, f.Len()),
		Index:   make([]string, f.Len()),
	}

	for r, ts := range f.Index() {
		entry.Index[r] = ts.Format(IndexLayout)
		row := make([]any, len(cols))
		for c, col := range cols {
			if f.IsString(col) {
				row[c] = f.String(col)[r]
				continue
			}
			v := f.Float(col)[r]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				row[c] = nil
			} else {
				row[c] = v
			}
		}
		entry.Data[r] = row
	}
	return entry
}

// Empty reports whether the entry carries no rows
func (e CacheEntry) Empty() bool {
	return len(e.Data) == 0
}

// Width returns the row width, 0 for an empty entry
func (e CacheEntry) Width() int {
	if len(e.Data) == 0 {
		return 0
	}
	return len(e.Data[0])
}

// Repair pads the column list with placeholder names until it matches the
// row width. Row data is never dropped. Returns the number of names added.
func (e *CacheEntry) Repair() int {
	added := 0
	width := e.Width()
	for len(e.Columns) < width {
		e.Columns = append(e.Columns, fmt.Sprintf("temp%d", width-len(e.Columns)))
		added++
	}
	return added
}

// Validate checks the structural invariants of an entry
func (e CacheEntry) Validate() error {
	if len(e.Data) != len(e.Index) {
		return fmt.Errorf("cache entry: %d rows for %d index labels", len(e.Data), len(e.Index))
	}
	for i, row := range e.Data {
		if len(row) != len(e.Columns) {
			return fmt.Errorf("cache entry: row %d is %d wide, %d columns declared", i, len(row), len(e.Columns))
		}
	}
	return nil
}

// Frame deserializes the entry, repairing schema drift first. A column is
// a label column when any of its cells is a string.
func (e CacheEntry) Frame() (*timeseries.Frame, error) {
	repaired := CacheEntry{
		Columns: append([]string(nil), e.Columns...),
		Data:    e.Data,
		Index:   e.Index,
	}
	repaired.Repair()
	if err := repaired.Validate(); err != nil {
		return nil, err
	}

	index := make([]time.Time, len(repaired.Index))
	for i, label := range repaired.Index {
		ts, err := time.Parse(IndexLayout, label)
		if err != nil {
			return nil, fmt.Errorf("cache entry: bad index label %q: %w", label, err)
		}
		index[i] = ts
	}

	f := timeseries.New(index)
	for c, col := range repaired.Columns {
		if isLabelColumn(repaired.Data, c) {
			vals := make([]string, len(repaired.Data))
			for r, row := range repaired.Data {
				if s, ok := row[c].(string); ok {
					vals[r] = s
				}
			}
			if err := f.SetString(col, vals); err != nil {
				return nil, err
			}
			continue
		}

		vals := make([]float64, len(repaired.Data))
		for r, row := range repaired.Data {
			v, err := toFloat(row[c])
			if err != nil {
				return nil, fmt.Errorf("cache entry: column %s row %d: %w", col, r, err)
			}
			vals[r] = v
		}
		if err := f.SetFloat(col, vals); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func isLabelColumn(data [][]any, c int) bool {
	for _, row := range data {
		if _, ok := row[c].(string); ok {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported cell type %T", v)
	}
}

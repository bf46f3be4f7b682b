package results

import (
	"math"
	"strconv"
	"time"

	"github.com/wonny/screener/internal/contracts"
)

// Row is one persisted result of a run
type Row struct {
	RunID     string         `json:"run_id"`
	Ticker    string         `json:"ticker"`
	Date      time.Time      `json:"date"` // last session the screen saw
	Window    int            `json:"window"`
	Fallback  bool           `json:"fallback"`
	Keys      []string       `json:"keys"`
	Display   map[string]any `json:"display"`
	Save      map[string]any `json:"save"`
	CreatedAt time.Time      `json:"created_at"`
}

// FromMatch flattens a match into a row. NaN cells become null so the
// row survives JSON encoding.
func FromMatch(runID string, m *contracts.Match, now time.Time) Row {
	row := Row{
		RunID:     runID,
		Ticker:    m.Ticker,
		Window:    m.Window,
		Fallback:  m.Fallback,
		Keys:      append([]string(nil), m.Keys...),
		Display:   sanitize(m.Display),
		Save:      sanitize(m.Save),
		CreatedAt: now,
	}
	if m.Series != nil && !m.Series.Empty() {
		idx := m.Series.Index()
		row.Date = idx[len(idx)-1]
	}
	return row
}

// Float reads a numeric saved cell; absent or unparsable cells read as 0
func (r Row) Float(key string) float64 {
	switch v := r.Save[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func sanitize(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return out
}

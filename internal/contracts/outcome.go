package contracts

import (
	"github.com/wonny/screener/internal/timeseries"
)

// OutcomeKind discriminates the three ways one ticker can end
type OutcomeKind int

const (
	KindNotEligible OutcomeKind = iota
	KindMatched
	KindUnexpected
)

func (k OutcomeKind) String() string {
	switch k {
	case KindMatched:
		return "matched"
	case KindUnexpected:
		return "unexpected"
	default:
		return "not_eligible"
	}
}

// Outcome is the single result of screening one ticker
// ⭐ SSOT: Matched(records) | NotEligible(reason) | Unexpected(detail)
type Outcome struct {
	Kind   OutcomeKind
	Ticker string
	Match  *Match
	Reason Reason
	Detail string
	Err    error
}

// Match is the reportable tuple handed to the result consumer
type Match struct {
	Ticker  string
	Keys    []string // column order shared by Display and Save
	Display map[string]any
	Save    map[string]any
	Window  int

	// Series is the screened view: the preprocessed input with its
	// indicator columns, ending on the screened bar. Backtest validation
	// rows are never part of it.
	Series *timeseries.Frame

	// Fallback marks a bounded-backtest trend summary row
	Fallback bool
}

// Matched wraps a reportable match
func Matched(m *Match) Outcome {
	return Outcome{Kind: KindMatched, Ticker: m.Ticker, Match: m}
}

// NotEligible converts a control signal into an outcome
func NotEligible(ticker string, sig *Signal) Outcome {
	return Outcome{Kind: KindNotEligible, Ticker: ticker, Reason: sig.Reason, Detail: sig.Detail, Err: sig}
}

// Unexpected records a fault that was isolated to this ticker
func Unexpected(ticker string, err error) Outcome {
	return Outcome{Kind: KindUnexpected, Ticker: ticker, Detail: err.Error(), Err: err}
}

// IsMatched reports whether the outcome carries a row
func (o Outcome) IsMatched() bool {
	return o.Kind == KindMatched && o.Match != nil
}

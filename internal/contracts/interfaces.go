package contracts

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/screener/internal/timeseries"
)

// ErrDataUnavailable is returned by a Fetcher when the upstream has no series
var ErrDataUnavailable = errors.New("data unavailable")

// ProgressSource exposes run progress to collaborators that report it
type ProgressSource interface {
	Percent(total int) (float64, bool)
}

// FetchRequest describes one series download
type FetchRequest struct {
	Ticker         string
	Period         string // e.g. "450d"
	Duration       string // candle size, e.g. "1d", "1m"
	Proxy          string
	Start          time.Time // zero means "derive from Period"
	End            time.Time
	ExchangeSuffix string // ".NS" for the primary exchange, "" otherwise
	TotalSymbols   int
	Progress       ProgressSource
}

// Fetcher downloads a price/volume series
// ⭐ SSOT: the only network dependency of the screening core
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (*timeseries.Frame, error)
}

// FundFlow is the slow-changing ownership and valuation record of a ticker
type FundFlow struct {
	MFStake   float64 `json:"mf_stake"` // change in mutual fund holding
	MFDate    string  `json:"mf_date"`
	FIIStake  float64 `json:"fii_stake"`
	FIIDate   string  `json:"fii_date"`
	FairValue float64 `json:"fair_value"`
}

// FundFlowSource supplies fund ownership and fair value readings
type FundFlowSource interface {
	Lookup(ctx context.Context, ticker string) (FundFlow, error)
}

// ResultSink consumes matched rows downstream of the pipeline
type ResultSink interface {
	Consume(ctx context.Context, runID string, m *Match) error
}

package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/datacache"
	"github.com/wonny/screener/internal/marketclock"
	"github.com/wonny/screener/internal/timeseries"
	"github.com/wonny/screener/pkg/logger"
)

// Request describes one series to resolve
type Request struct {
	Ticker         string
	Period         string
	Duration       string
	Proxy          string
	ExchangeSuffix string
	TotalSymbols   int
	Window         int // backtest window, 0 for live
	CacheEnabled   bool
	DownloadOnly   bool
}

// intraday reports whether the request needs an explicit start date
func (r Request) intraday() bool {
	return r.Period == "1d" || strings.HasSuffix(r.Duration, "m")
}

// Source tells how a series was obtained
type Source string

const (
	SourceFetch Source = "fetch"
	SourceCache Source = "cache"
)

// Result is a resolved series
type Result struct {
	Frame   *timeseries.Frame
	Source  Source
	Written bool      // snapshot was written back to the store
	Start   time.Time // zero unless an intraday start was computed
}

// Resolver decides fetch-vs-cache per ticker
// ⭐ SSOT: cache staleness policy lives here only
type Resolver struct {
	fetcher  contracts.Fetcher
	clock    *marketclock.Clock
	progress contracts.ProgressSource
	logger   *logger.Logger
}

// New creates a resolver; progress may be nil
func New(fetcher contracts.Fetcher, clock *marketclock.Clock, progress contracts.ProgressSource, log *logger.Logger) *Resolver {
	return &Resolver{fetcher: fetcher, clock: clock, progress: progress, logger: log}
}

// Resolve returns the series of req.Ticker from store or the fetcher.
//
// Decision table, first match wins:
//
//	caching disabled                   -> fetch, store untouched
//	download-only and no entry         -> fetch
//	no entry during trading hours      -> fetch
//	no entry or empty entry            -> fetch
//	otherwise                          -> deserialize
//
// In download-only mode the snapshot is written and ErrDownloadOnly is
// returned alongside the result.
func (r *Resolver) Resolve(ctx context.Context, store datacache.Store, req Request) (Result, error) {
	var (
		entry contracts.CacheEntry
		found bool
	)
	// read even with caching disabled: a previous snapshot still supplies the aux columns
	if store != nil {
		var err error
		entry, found, err = store.Get(ctx, req.Ticker)
		if err != nil {
			// a broken cache never fails the ticker
			r.logger.WithError(err).WithTicker(req.Ticker).Warn("Cache read failed")
			entry, found = contracts.CacheEntry{}, false
		}
	}
	trading := r.clock.IsTradingTime()

	var start time.Time
	if req.intraday() {
		if req.Window > 0 {
			start = r.clock.NthPastTradingDate(req.Window)
		} else {
			start = r.clock.TradingDate()
		}
	}

	res := Result{Start: start}
	needFetch := !req.CacheEnabled ||
		(req.DownloadOnly && !found) ||
		(!found && trading) ||
		!found || entry.Empty()

	if !needFetch {
		frame, err := entry.Frame()
		if err != nil {
			r.logger.WithError(err).WithTicker(req.Ticker).Warn("Cached snapshot unreadable, refetching")
			needFetch = true
		} else {
			res.Frame, res.Source = frame, SourceCache
		}
	}

	if needFetch {
		frame, err := r.fetch(ctx, req, start)
		if err != nil {
			return Result{}, err
		}
		if found && !entry.Empty() {
			if prev, err := entry.Frame(); err == nil {
				frame.CarryAux(prev)
			}
		}
		res.Frame, res.Source = frame, SourceFetch
	}

	absent := !found || entry.Empty()
	writeBack := (req.CacheEnabled && !trading && absent) ||
		req.DownloadOnly ||
		(req.CacheEnabled && !found)
	if writeBack && start.IsZero() && store != nil && !res.Frame.Empty() {
		if err := store.Put(ctx, req.Ticker, contracts.NewCacheEntry(res.Frame)); err != nil {
			r.logger.WithError(err).WithTicker(req.Ticker).Warn("Cache write failed")
		} else {
			res.Written = true
		}
	}

	if req.DownloadOnly {
		return res, contracts.ErrDownloadOnly.With("%s cached", req.Ticker)
	}
	return res, nil
}

func (r *Resolver) fetch(ctx context.Context, req Request, start time.Time) (*timeseries.Frame, error) {
	frame, err := r.fetcher.Fetch(ctx, contracts.FetchRequest{
		Ticker:         req.Ticker,
		Period:         req.Period,
		Duration:       req.Duration,
		Proxy:          req.Proxy,
		Start:          start,
		ExchangeSuffix: req.ExchangeSuffix,
		TotalSymbols:   req.TotalSymbols,
		Progress:       r.progress,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.Ticker, err)
	}
	if frame == nil {
		return nil, fmt.Errorf("fetch %s: %w", req.Ticker, contracts.ErrDataUnavailable)
	}
	return frame, nil
}

// Refresh writes an updated snapshot over the existing entry
func (r *Resolver) Refresh(ctx context.Context, store datacache.Store, ticker string, frame *timeseries.Frame) error {
	if store == nil || frame.Empty() {
		return nil
	}
	if err := store.Put(ctx, ticker, contracts.NewCacheEntry(frame)); err != nil {
		return fmt.Errorf("refresh %s: %w", ticker, err)
	}
	return nil
}

package screener

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/datacache"
	"github.com/wonny/screener/internal/indicators"
	"github.com/wonny/screener/internal/progress"
	"github.com/wonny/screener/internal/records"
	"github.com/wonny/screener/internal/resolver"
	"github.com/wonny/screener/internal/screenconfig"
	"github.com/wonny/screener/internal/strategy"
	"github.com/wonny/screener/internal/timeseries"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
)

// newlyListedPeriod caps the download in newly-listed mode
const newlyListedPeriod = 250

// Request is one ticker invocation
type Request struct {
	Ticker       string
	Strategy     strategy.Strategy
	MenuOption   string // run mode, e.g. "X" scan, "B" backtest
	Window       int    // backtest window, 0 for a live scan
	Exchange     string // "" means the primary exchange
	TotalSymbols int
	Proxy        string

	// Per-run knobs supplied by the caller
	MinRSI, MaxRSI      float64 // also the CCI bounds for the CCI strategy
	VolumeRatio         float64 // <= 0 falls back to the profile
	InsideBarLookback   float64 // inside bar count, or the confluence fraction
	MALength            int     // MA length, NR length, confluence / bbands filter
	DaysForLowestVolume int

	NewlyListedOnly bool
	DownloadOnly    bool
	Monitor         bool // skip the expensive enrichment pass

	Partitions datacache.Partitions
}

// Pipeline screens one ticker at a time
// ⭐ SSOT: per-ticker orchestration lives here only
type Pipeline struct {
	cfg        *screenconfig.Config
	resolver   *resolver.Resolver
	eval       indicators.Evaluator
	selector   *strategy.Selector
	progress   *progress.Coordinator
	metrics    *metrics.Registry
	logger     *logger.Logger
	diagnostic bool
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithMetrics records per-ticker outcomes and durations
func WithMetrics(reg *metrics.Registry) Option {
	return func(p *Pipeline) { p.metrics = reg }
}

// WithDiagnostic surfaces unexpected failures at warn level
func WithDiagnostic(on bool) Option {
	return func(p *Pipeline) { p.diagnostic = on }
}

// New creates a pipeline
func New(
	cfg *screenconfig.Config,
	res *resolver.Resolver,
	eval indicators.Evaluator,
	prog *progress.Coordinator,
	log *logger.Logger,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		resolver: res,
		eval:     eval,
		selector: strategy.NewSelector(eval, log),
		progress: prog,
		logger:   log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Screen evaluates one ticker. It never panics and never returns an error:
// every failure is folded into the outcome.
func (p *Pipeline) Screen(ctx context.Context, req Request) (out contracts.Outcome) {
	started := time.Now()
	p.progress.IncStarted()

	defer func() {
		if r := recover(); r != nil {
			out = contracts.Unexpected(req.Ticker, fmt.Errorf("panic: %v", r))
			p.logger.WithTicker(req.Ticker).WithField("stack", string(debug.Stack())).Error("Screening panicked")
		}
		if p.metrics != nil {
			p.metrics.Screened.WithLabelValues(out.Kind.String()).Inc()
			p.metrics.ScreenDuration.Observe(time.Since(started).Seconds())
		}
	}()

	if ctx.Err() != nil {
		return contracts.NotEligible(req.Ticker, contracts.ErrInterrupted)
	}

	match, err := p.screen(ctx, req)
	if err != nil {
		return p.classify(ctx, req.Ticker, err)
	}
	return contracts.Matched(match)
}

// classify maps a short-circuit to its outcome
func (p *Pipeline) classify(ctx context.Context, ticker string, err error) contracts.Outcome {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return contracts.NotEligible(ticker, contracts.ErrInterrupted)
	}
	if sig, ok := contracts.AsSignal(err); ok {
		return contracts.NotEligible(ticker, sig)
	}
	if errors.Is(err, contracts.ErrDataUnavailable) {
		return contracts.NotEligible(ticker, contracts.ErrEmptyData.With("%v", err))
	}

	log := p.logger.WithTicker(ticker).WithError(err)
	if p.diagnostic {
		log.Warn("Unexpected screening failure")
	} else {
		log.Debug("Unexpected screening failure")
	}
	return contracts.Unexpected(ticker, err)
}

// exchange returns the normalized exchange of a request
func (r Request) exchange() string {
	if r.Exchange == "" {
		return screenconfig.PrimaryExchange
	}
	return r.Exchange
}

func (p *Pipeline) screen(ctx context.Context, req Request) (*contracts.Match, error) {
	st := req.Strategy
	if st == nil {
		st = strategy.NoFilter{}
	}

	// 1. defaults
	volumeRatio := req.VolumeRatio
	if volumeRatio <= 0 {
		volumeRatio = p.cfg.Thresholds.VolumeRatio
	}
	period := p.cfg.Data.Period
	periodDays, _ := screenconfig.PeriodDays(period)
	if req.NewlyListedOnly && periodDays > newlyListedPeriod {
		period, periodDays = fmt.Sprintf("%dd", newlyListedPeriod), newlyListedPeriod
	}

	// 2. primary series
	suffix := ""
	if req.exchange() == screenconfig.PrimaryExchange {
		suffix = ".NS"
	}
	resolved, err := p.resolver.Resolve(ctx, req.Partitions.Daily, resolver.Request{
		Ticker:         req.Ticker,
		Period:         period,
		Duration:       p.cfg.Data.Duration,
		Proxy:          req.Proxy,
		ExchangeSuffix: suffix,
		TotalSymbols:   req.TotalSymbols,
		Window:         req.Window,
		CacheEnabled:   p.cfg.Cache.Enabled,
		DownloadOnly:   req.DownloadOnly,
	})
	if errors.Is(err, contracts.ErrDownloadOnly) {
		p.progress.IncMatched()
		p.refreshFundFlow(ctx, req, resolved.Frame)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	data := resolved.Frame
	if data.Empty() || data.Len() < req.Window {
		return nil, contracts.ErrEmptyData.With("%d rows for window %d", data.Len(), req.Window)
	}

	// 3. full and windowed views; backtests only ever see the input slice
	var validation *timeseries.Frame
	input := data
	days := p.cfg.EffectiveDaysToLookback()
	if req.Window > 0 {
		input, validation, err = resolver.SplitBacktest(data, req.Window)
		if err != nil {
			return nil, contracts.ErrEmptyData.With("%v", err)
		}
		days = p.cfg.Data.DaysToLookback
	}
	full, windowed, err := p.eval.Preprocess(input, days)
	if err != nil {
		return nil, fmt.Errorf("preprocess %s: %w", req.Ticker, err)
	}
	if windowed.Empty() {
		return nil, contracts.ErrEmptyData.With("empty lookback window")
	}

	record := records.New(p.cfg.Backtest.Periods)
	if validation != nil {
		record.RealizeHorizons(validation.Float(timeseries.Close))
	}

	// 4. intraday RSI, live scans only
	if p.cfg.WantsIntradayRSI() && req.Window == 0 {
		full, windowed = p.alignIntradayRSI(ctx, req, full, windowed, days)
	}

	in := indicators.Input{
		Ticker:   req.Ticker,
		Exchange: req.exchange(),
		Full:     full,
		Windowed: windowed,
		Host:     data,
		Record:   record,
		Params: indicators.Params{
			MinLTP:              p.cfg.MinLTPFor(req.exchange()),
			MaxLTP:              p.cfg.Thresholds.MaxLTP,
			VolumeRatio:         volumeRatio,
			MinVolume:           p.cfg.MinVolumeFloor(),
			MinRSI:              req.MinRSI,
			MaxRSI:              req.MaxRSI,
			ConsolidationPct:    p.cfg.Thresholds.ConsolidationPercentage,
			DaysToLookback:      p.cfg.Data.DaysToLookback,
			DaysForLowestVolume: req.DaysForLowestVolume,
			MALength:            req.MALength,
			MARange:             maRange,
			InsideBarLookback:   int(req.InsideBarLookback),
			ConfluencePct:       confluenceFraction(req.InsideBarLookback),
			PeriodDays:          periodDays,
			StageTwo:            p.cfg.Thresholds.StageTwo,
		},
	}
	s := &stages{p: p, req: req, st: st, in: in, data: data}

	// 5. baseline
	if err := s.baseline(ctx); err != nil {
		return nil, err
	}

	// 6. exactly one strategy
	if req.NewlyListedOnly {
		s.flags.IPOBase = s.run(ctx, indicators.CheckIPOBase).Passed
	}
	verdict, err := p.selector.Evaluate(ctx, st, s.in)
	if err != nil {
		return nil, err
	}
	s.flags.Strategy = verdict
	if !verdict.Matched {
		return s.fallback(ctx, contracts.ErrEligibilityNotMet.With("%s", st.Name()))
	}

	// 7. late checks; strategies decided here fall back like step 6
	if err := s.late(ctx); err != nil {
		if sig, ok := contracts.AsSignal(err); ok && errors.Is(sig, contracts.ErrEligibilityNotMet) {
			return s.fallback(ctx, sig)
		}
		return nil, err
	}

	// 8. final predicate
	if !strategy.IsReportable(st, s.flags, p.cfg.Thresholds.ConsolidationPercentage) {
		return nil, contracts.ErrNotReportable.With("%s", st.Name())
	}

	// 9. enrichment
	s.enrich(ctx)
	p.progress.IncMatched()

	// 10. report
	return s.match(false), nil
}

// maRange is the percent band around an average that counts as touching it
const maRange = 1.25

// confluenceFraction reads the caller's confluence percentage as a fraction
func confluenceFraction(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}

// refreshFundFlow pulls fresh ownership and fair value readings into a
// download-only snapshot and writes it back
func (p *Pipeline) refreshFundFlow(ctx context.Context, req Request, frame *timeseries.Frame) {
	if frame.Empty() {
		return
	}
	in := indicators.Input{Ticker: req.Ticker, Full: frame, Windowed: frame, Host: frame}
	if _, ok := p.selector.Check(ctx, indicators.CheckFundFlow, in); !ok {
		return
	}
	if err := p.resolver.Refresh(ctx, req.Partitions.Daily, req.Ticker, frame); err != nil {
		p.logger.WithTicker(req.Ticker).WithError(err).Warn("Fund flow write-back failed")
	}
}

// alignIntradayRSI copies 1m RSI into the daily views. A failed intraday
// fetch leaves the daily views untouched.
func (p *Pipeline) alignIntradayRSI(ctx context.Context, req Request, full, windowed *timeseries.Frame, days int) (*timeseries.Frame, *timeseries.Frame) {
	res, err := p.resolver.Resolve(ctx, req.Partitions.Intraday, resolver.Request{
		Ticker:       req.Ticker,
		Period:       "1d",
		Duration:     "1m",
		Proxy:        req.Proxy,
		TotalSymbols: req.TotalSymbols,
		CacheEnabled: p.cfg.Cache.Enabled,
	})
	if err != nil {
		p.logger.WithTicker(req.Ticker).WithError(err).Debug("Intraday series unavailable")
		return full, windowed
	}
	iFull, iWindowed, err := p.eval.Preprocess(res.Frame, days)
	if err != nil {
		p.logger.WithTicker(req.Ticker).WithError(err).Debug("Intraday preprocess failed")
		return full, windowed
	}
	alignedFull, alignedWindowed, err := resolver.AlignIntraday(full, windowed, iFull, iWindowed)
	if err != nil {
		p.logger.WithTicker(req.Ticker).WithError(err).Debug("Intraday alignment failed")
		return full, windowed
	}
	return alignedFull, alignedWindowed
}

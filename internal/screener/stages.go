package screener

import (
	"context"
	"fmt"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/indicators"
	"github.com/wonny/screener/internal/records"
	"github.com/wonny/screener/internal/screenconfig"
	"github.com/wonny/screener/internal/strategy"
	"github.com/wonny/screener/internal/timeseries"
)

// stages carries the state of one ticker through steps 5 to 10
type stages struct {
	p     *Pipeline
	req   Request
	st    strategy.Strategy
	in    indicators.Input
	data  *timeseries.Frame // resolved series as cached
	flags strategy.Flags
}

func (s *stages) run(ctx context.Context, check indicators.Check) indicators.Result {
	res, _ := s.p.selector.Check(ctx, check, s.in)
	return res
}

// runWith runs a check with adjusted parameters
func (s *stages) runWith(ctx context.Context, check indicators.Check, adjust func(*indicators.Params)) indicators.Result {
	in := s.in
	adjust(&in.Params)
	res, _ := s.p.selector.Check(ctx, check, in)
	return res
}

// filtered is false only for the unfiltered strategy, which waives the
// stage-two and volume floors
func (s *stages) filtered() bool {
	_, none := s.st.(strategy.NoFilter)
	return !none
}

func (s *stages) baseline(ctx context.Context) error {
	if s.req.NewlyListedOnly && !s.run(ctx, indicators.CheckNewlyListed).Passed {
		return contracts.ErrNotNewlyListed.With("%s listed before %dd", s.in.Ticker, s.in.Params.PeriodDays)
	}

	s.annotateTicker()

	ltp := s.run(ctx, indicators.CheckLTP)
	if !ltp.Passed {
		return contracts.ErrPriceOutOfRange.With("ltp %.2f outside [%.2f, %.2f]",
			ltp.Value, s.in.Params.MinLTP, s.in.Params.MaxLTP)
	}
	if s.in.Params.StageTwo && !ltp.Flag && s.filtered() {
		return contracts.ErrNotStageTwo.With("ltp %.2f", ltp.Value)
	}

	vol := s.run(ctx, indicators.CheckVolume)
	s.flags.HasMinVolumeRatio = vol.Passed
	_, ratioOnly := s.st.(strategy.VolumeRatio)
	if (!vol.Flag && s.filtered()) || (ratioOnly && !vol.Passed) {
		return contracts.ErrInsufficientVolume.With("volume %.0f ratio %.2f", vol.Extra, vol.Value)
	}
	return ctx.Err()
}

// annotateTicker writes the Stock field; display carries a chart link
func (s *stages) annotateTicker() {
	display := s.in.Ticker
	if _, hidden := s.st.(strategy.Hidden); !hidden {
		display = chartLink(s.in.Ticker, s.in.Exchange)
	}
	_ = s.in.Record.Set(records.Stock, display, s.in.Ticker)
}

// chartLink renders an OSC 8 terminal hyperlink to the ticker's chart
func chartLink(ticker, exchange string) string {
	market := "NASDAQ"
	if exchange == screenconfig.PrimaryExchange {
		market = "NSE"
	}
	url := fmt.Sprintf("https://in.tradingview.com/chart?symbol=%s%%3A%s", market, ticker)
	return fmt.Sprintf("\x1b]8;;%s\x1b\\%s\x1b]8;;\x1b\\", url, ticker)
}

func (s *stages) late(ctx context.Context) error {
	// candlestick detection runs exactly once
	switch {
	case strategy.IsCandlestick(s.st):
		s.flags.Pattern = s.in.Record.SavedString(records.Pattern)
	default:
		res, ok := s.p.selector.Check(ctx, indicators.CheckCandlePattern, s.in)
		switch {
		case ok && res.Passed:
			s.flags.Pattern = s.in.Record.SavedString(records.Pattern)
		case !ok:
			_ = s.in.Record.SetBoth(records.Pattern, "")
		}
	}

	s.run(ctx, indicators.CheckTrend)

	if ff, ok := s.st.(strategy.FundFlow); ok && s.req.Window == 0 {
		res := s.runWith(ctx, indicators.CheckUptrend, func(p *indicators.Params) { p.OnlyMF = ff.OnlyMF() })
		s.flags.MFStake, s.flags.FairValueDiff = res.Value, res.Extra
		s.writeBack(ctx)
	}

	// CCI reads the trend written above
	if _, ok := s.st.(strategy.CCIBand); ok {
		s.flags.ValidCCI = s.run(ctx, indicators.CheckCCI).Passed
		if !s.flags.ValidCCI {
			return s.notMet(ctx, "cci outside [%.0f, %.0f]", s.in.Params.MinRSI, s.in.Params.MaxRSI)
		}
	}

	if !strategy.SkipsMAValidity(s.st) {
		s.flags.MAReversal = s.run(ctx, indicators.CheckMovingAverage).Value
	}
	if rv, ok := s.st.(strategy.Reversal); ok && (rv.Kind == strategy.BullishCandle || rv.Kind == strategy.BearishCandle) && !strategy.IsReportable(rv, s.flags, 0) {
		return s.notMet(ctx, "pattern %q ma signal %.0f", s.flags.Pattern, s.flags.MAReversal)
	}

	// inside bar reads the trend and the MA signal
	if cp, ok := s.st.(strategy.ChartPattern); ok && strategy.NeedsInsideBar(cp) {
		res := s.runWith(ctx, indicators.CheckInsideBar, func(p *indicators.Params) { p.ChartPattern = int(cp.Kind) })
		if res.Passed {
			s.flags.InsideBar = res.Value
		}
		if s.flags.InsideBar == 0 {
			return s.notMet(ctx, "no inside bar in %d bars", s.in.Params.InsideBarLookback)
		}
	}

	if !strategy.ImpliesMomentum(s.st) && !s.flags.IPOBase {
		s.flags.Momentum = s.run(ctx, indicators.CheckMomentum).Passed
	}
	if rv, ok := s.st.(strategy.Reversal); ok && rv.Kind == strategy.Momentum && !s.flags.Momentum {
		return s.notMet(ctx, "no momentum")
	}
	return ctx.Err()
}

// notMet fails a strategy decided by a late reading. A cancelled context
// wins over the signal.
func (s *stages) notMet(ctx context.Context, format string, args ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return contracts.ErrEligibilityNotMet.With("%s: %s", s.st.Name(), fmt.Sprintf(format, args...))
}

// enrich fills the record fields the matched strategy did not compute.
// Monitor runs keep only RSI and the 52 week range.
func (s *stages) enrich(ctx context.Context) {
	if _, ok := s.st.(strategy.RSIBand); !ok {
		s.run(ctx, indicators.CheckRSI)
	}
	s.run(ctx, indicators.Check52Week)
	if s.req.Monitor {
		return
	}

	if !strategy.IsLorentzian(s.st) {
		s.run(ctx, indicators.CheckLorentzian)
	}
	switch s.st.(type) {
	case strategy.BreakoutProbable, strategy.BreakoutToday:
	default:
		s.runWith(ctx, indicators.CheckBreakout, func(p *indicators.Params) { p.AlreadyBrokenOut = false })
	}
	if _, ok := s.st.(strategy.Consolidating); !ok {
		s.run(ctx, indicators.CheckConsolidation)
	}
	if _, ok := s.st.(strategy.CCIBand); !ok {
		s.run(ctx, indicators.CheckCCI)
	}

	// ownership and fair value: once, live scans only
	if !strategy.NeedsUptrend(s.st) && s.req.Window == 0 {
		s.run(ctx, indicators.CheckUptrend)
		s.writeBack(ctx)
	}
}

// writeBack stores the aux columns gathered on the host series
func (s *stages) writeBack(ctx context.Context) {
	if !s.p.cfg.Cache.Enabled {
		return
	}
	if err := s.p.resolver.Refresh(ctx, s.req.Partitions.Daily, s.in.Ticker, s.data); err != nil {
		s.p.logger.WithTicker(s.in.Ticker).WithError(err).Warn("Cache write-back failed")
	}
}

// fallback turns a failed strategy inside a bounded backtest into a trend
// summary row; anywhere else the signal stands
func (s *stages) fallback(ctx context.Context, sig *contracts.Signal) (*contracts.Match, error) {
	if !s.p.cfg.FallbackAllowed(s.req.MenuOption, s.req.Window) {
		return nil, sig
	}
	s.run(ctx, indicators.CheckMovingAverage)
	s.run(ctx, indicators.CheckTrend)
	s.run(ctx, indicators.Check52Week)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.match(true), nil
}

func (s *stages) match(fallback bool) *contracts.Match {
	display, save := s.in.Record.Maps()
	return &contracts.Match{
		Ticker:   s.in.Ticker,
		Keys:     s.in.Record.Keys(),
		Display:  display,
		Save:     save,
		Series:   s.in.Full,
		Window:   s.req.Window,
		Fallback: fallback,
	}
}

package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/screener/internal/indicators"
	"github.com/wonny/screener/pkg/logger"
)

// Verdict is the result of running one strategy
type Verdict struct {
	Matched bool
	Value   float64 // strategy reading, e.g. consolidation range
	Checks  []indicators.Check
}

// Selector evaluates strategies through an indicator capability
// ⭐ SSOT: strategy → indicator check dispatch lives here only
type Selector struct {
	eval   indicators.Evaluator
	logger *logger.Logger
}

// NewSelector creates a selector
func NewSelector(eval indicators.Evaluator, log *logger.Logger) *Selector {
	return &Selector{eval: eval, logger: log}
}

// Evaluate runs exactly one strategy. Only a cancelled context is returned as
// an error; any indicator failure is a non-match.
func (s *Selector) Evaluate(ctx context.Context, st Strategy, in indicators.Input) (Verdict, error) {
	p := in.Params

	switch v := st.(type) {
	case NoFilter, Hidden, FundFlow, CCIBand, VolumeRatio:
		// decided by later readings in the final predicate
		return Verdict{Matched: true}, nil

	case BreakoutProbable:
		p.AlreadyBrokenOut = false
		bo, err := s.run(ctx, indicators.CheckBreakout, in, p)
		if err != nil {
			return Verdict{}, err
		}
		pot, err := s.run(ctx, indicators.CheckPotentialBreakout, in, p)
		if err != nil {
			return Verdict{}, err
		}
		return Verdict{Matched: bo.Passed || pot.Passed, Value: bo.Value,
			Checks: []indicators.Check{indicators.CheckBreakout, indicators.CheckPotentialBreakout}}, nil

	case BreakoutToday:
		p.AlreadyBrokenOut = true
		return s.single(ctx, indicators.CheckBreakout, in, p)

	case Consolidating:
		return s.single(ctx, indicators.CheckConsolidation, in, p)

	case LowestVolume:
		return s.single(ctx, indicators.CheckLowestVolume, in, p)

	case RSIBand:
		return s.single(ctx, indicators.CheckRSI, in, p)

	case PriceRising:
		return s.single(ctx, indicators.CheckPriceRising, in, p)

	case ShortTermBullish:
		return s.single(ctx, indicators.CheckShortTermBullish, in, p)

	case ValidityCheck:
		return s.single(ctx, v.Check, in, p)

	case Reversal:
		return s.reversal(ctx, v, in, p)

	case ChartPattern:
		return s.chartPattern(ctx, v, in, p)
	}
	return Verdict{}, fmt.Errorf("unhandled strategy %T", st)
}

func (s *Selector) reversal(ctx context.Context, v Reversal, in indicators.Input, p indicators.Params) (Verdict, error) {
	switch v.Kind {
	case BullishCandle, BearishCandle, Momentum:
		// decided by the late pattern, MA and momentum readings
		return Verdict{Matched: true}, nil
	case MASupport:
		if p.MALength <= 0 {
			return Verdict{}, nil
		}
		return s.single(ctx, indicators.CheckMASupport, in, p)
	case VSA:
		return s.single(ctx, indicators.CheckVSA, in, p)
	case NarrowRange:
		if p.MALength <= 0 {
			p.MALength = 4
		}
		return s.single(ctx, indicators.CheckNarrowRange, in, p)
	case Lorentzian:
		return s.single(ctx, indicators.CheckLorentzian, in, p)
	case PSARRSI:
		return s.single(ctx, indicators.CheckPSARRSI, in, p)
	case RisingRSI:
		return s.single(ctx, indicators.CheckRisingRSI, in, p)
	case RSICrossMA:
		p.Direction = p.MALength
		if p.Direction <= 0 {
			p.Direction = 3
		}
		return s.single(ctx, indicators.CheckRSICrossMA, in, p)
	}
	return Verdict{}, fmt.Errorf("unhandled reversal kind %d", v.Kind)
}

func (s *Selector) chartPattern(ctx context.Context, v ChartPattern, in indicators.Input, p indicators.Params) (Verdict, error) {
	switch v.Kind {
	case InsideBarBullish, InsideBarBearish:
		// needs trend and MA signal first; runs as a late check
		return Verdict{Matched: true}, nil
	case Confluence:
		p.Direction = p.MALength
		if p.Direction <= 0 {
			p.Direction = 3
		}
		return s.single(ctx, indicators.CheckConfluence, in, p)
	case VCP:
		return s.single(ctx, indicators.CheckVCP, in, p)
	case Trendline:
		return s.single(ctx, indicators.CheckTrendline, in, p)
	case BBandsSqueeze:
		if p.MALength <= 0 {
			p.MALength = 4
		}
		return s.single(ctx, indicators.CheckBBandsSqueeze, in, p)
	case Candlestick:
		return s.single(ctx, indicators.CheckCandlePattern, in, p)
	}
	return Verdict{}, fmt.Errorf("unhandled chart pattern kind %d", v.Kind)
}

func (s *Selector) single(ctx context.Context, check indicators.Check, in indicators.Input, p indicators.Params) (Verdict, error) {
	res, err := s.run(ctx, check, in, p)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{Matched: res.Passed, Value: res.Value, Checks: []indicators.Check{check}}, nil
}

func (s *Selector) run(ctx context.Context, check indicators.Check, in indicators.Input, p indicators.Params) (indicators.Result, error) {
	in.Params = p
	res, ok := s.Check(ctx, check, in)
	if !ok {
		if err := ctx.Err(); err != nil {
			return indicators.Result{}, err
		}
	}
	return res, nil
}

// Check runs one indicator in isolation. A failing or panicking indicator is
// logged and reported as not passed (ok=false).
func (s *Selector) Check(ctx context.Context, check indicators.Check, in indicators.Input) (res indicators.Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(map[string]interface{}{
				"ticker": in.Ticker,
				"check":  string(check),
				"panic":  fmt.Sprint(r),
			}).Warn("Indicator panicked")
			res, ok = indicators.Result{}, false
		}
	}()

	res, err := s.eval.Evaluate(ctx, check, in)
	if err != nil {
		if !errors.Is(err, indicators.ErrUnavailable) && ctx.Err() == nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"ticker": in.Ticker,
				"check":  string(check),
			}).Debug("Indicator failed")
		}
		return indicators.Result{}, false
	}
	return res, true
}

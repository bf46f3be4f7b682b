package indicators

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/records"
	"github.com/wonny/screener/internal/timeseries"
)

// findUptrend reads the fund ownership change (Value) and the fair value gap
// (Extra, fair value minus LTP). Readings already carried on the host series
// are reused; otherwise they are looked up once and written back to it.
func (t *Toolkit) findUptrend(ctx context.Context, in Input) (Result, error) {
	ltp := in.Full.Last(timeseries.Close)

	flow, ok := carriedFlow(in.Host)
	if !ok {
		if t.funds == nil {
			return Result{Passed: true}, nil
		}
		looked, err := t.funds.Lookup(ctx, in.Ticker)
		if err != nil {
			return Result{}, fmt.Errorf("fund flow %s: %w", in.Ticker, err)
		}
		flow = looked
		if err := writeFlow(in.Host, flow, in.Params.OnlyMF); err != nil {
			return Result{}, err
		}
	}

	res := Result{Passed: true, Value: flow.MFStake}
	if in.Params.OnlyMF {
		return res, nil
	}

	if flow.FairValue > 0 && !math.IsNaN(ltp) {
		res.Extra = round2(flow.FairValue - ltp)
		gap := res.Extra / ltp * 100
		in.note(records.FairValue, fmt.Sprintf("%s (%s)", records.Price(flow.FairValue), records.Percent(gap)), round2(flow.FairValue))
	}
	return res, nil
}

// refreshFundFlow forces a lookup and overwrites the carried readings
func (t *Toolkit) refreshFundFlow(ctx context.Context, in Input) (Result, error) {
	if t.funds == nil {
		return Result{}, ErrUnavailable
	}
	flow, err := t.funds.Lookup(ctx, in.Ticker)
	if err != nil {
		return Result{}, fmt.Errorf("fund flow %s: %w", in.Ticker, err)
	}
	if err := writeFlow(in.Host, flow, false); err != nil {
		return Result{}, err
	}
	return Result{Passed: true, Value: flow.MFStake, Extra: flow.FairValue}, nil
}

func carriedFlow(host *timeseries.Frame) (contracts.FundFlow, bool) {
	if host.Empty() || !host.Has(timeseries.MF) {
		return contracts.FundFlow{}, false
	}
	mf := host.Last(timeseries.MF)
	if math.IsNaN(mf) {
		return contracts.FundFlow{}, false
	}
	flow := contracts.FundFlow{
		MFStake:   mf,
		MFDate:    host.LastString(timeseries.MFDate),
		FIIStake:  host.Last(timeseries.FII),
		FIIDate:   host.LastString(timeseries.FIIDate),
		FairValue: host.Last(timeseries.FairValue),
	}
	if math.IsNaN(flow.FairValue) {
		flow.FairValue = 0
	}
	return flow, true
}

// writeFlow broadcasts the readings over every row of host
func writeFlow(host *timeseries.Frame, flow contracts.FundFlow, onlyMF bool) error {
	if host.Empty() {
		return nil
	}
	n := host.Len()
	floats := map[string]float64{timeseries.MF: flow.MFStake, timeseries.FII: flow.FIIStake}
	if !onlyMF {
		floats[timeseries.FairValue] = flow.FairValue
	}
	for col, v := range floats {
		if err := host.SetFloat(col, fill(v, n)); err != nil {
			return err
		}
	}
	for col, v := range map[string]string{timeseries.MFDate: flow.MFDate, timeseries.FIIDate: flow.FIIDate} {
		vals := make([]string, n)
		for i := range vals {
			vals[i] = v
		}
		if err := host.SetString(col, vals); err != nil {
			return err
		}
	}
	return nil
}

func fill(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

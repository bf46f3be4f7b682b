package screener

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/datacache"
	"github.com/wonny/screener/internal/indicators"
	"github.com/wonny/screener/internal/marketclock"
	"github.com/wonny/screener/internal/progress"
	"github.com/wonny/screener/internal/records"
	"github.com/wonny/screener/internal/resolver"
	"github.com/wonny/screener/internal/screenconfig"
	"github.com/wonny/screener/internal/strategy"
	"github.com/wonny/screener/internal/timeseries"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fixture builds n daily bars from per-row close and volume functions
func fixture(t *testing.T, n int, closeAt, volAt func(i int) float64) *timeseries.Frame {
	t.Helper()
	idx := make([]time.Time, n)
	o, h, l, c, v := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		idx[i] = day0.AddDate(0, 0, i)
		c[i] = closeAt(i)
		o[i], h[i], l[i], v[i] = c[i]-0.5, c[i]+1, c[i]-1, volAt(i)
	}
	f, err := timeseries.FromOHLCV(idx, o, h, l, c, v)
	require.NoError(t, err)
	return f
}

func flat(v float64) func(int) float64 { return func(int) float64 { return v } }

type stubFetcher struct {
	frame *timeseries.Frame
	err   error
	calls int
}

func (f *stubFetcher) Fetch(context.Context, contracts.FetchRequest) (*timeseries.Frame, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.frame.Clone(), nil
}

// fixedRSI pins the RSI column so band tests do not depend on RSI math
type fixedRSI struct {
	*indicators.Toolkit
	rsi float64
}

func (f fixedRSI) Preprocess(data *timeseries.Frame, days int) (*timeseries.Frame, *timeseries.Frame, error) {
	full, windowed, err := f.Toolkit.Preprocess(data, days)
	if err != nil {
		return nil, nil, err
	}
	for _, fr := range []*timeseries.Frame{full, windowed} {
		vals := make([]float64, fr.Len())
		for i := range vals {
			vals[i] = f.rsi
		}
		if err := fr.SetFloat(timeseries.RSI, vals); err != nil {
			return nil, nil, err
		}
	}
	return full, windowed, nil
}

// spy records the most recent row any indicator was shown
type spy struct {
	*indicators.Toolkit
	latest time.Time
}

func (s *spy) observe(f *timeseries.Frame) {
	if f.Empty() {
		return
	}
	if last := f.Index()[f.Len()-1]; last.After(s.latest) {
		s.latest = last
	}
}

func (s *spy) Preprocess(data *timeseries.Frame, days int) (*timeseries.Frame, *timeseries.Frame, error) {
	s.observe(data)
	return s.Toolkit.Preprocess(data, days)
}

func (s *spy) Evaluate(ctx context.Context, check indicators.Check, in indicators.Input) (indicators.Result, error) {
	s.observe(in.Full)
	s.observe(in.Windowed)
	return s.Toolkit.Evaluate(ctx, check, in)
}

// checkLog records which checks the pipeline asked for
type checkLog struct {
	*indicators.Toolkit
	seen map[indicators.Check]int
}

func (c *checkLog) Evaluate(ctx context.Context, check indicators.Check, in indicators.Input) (indicators.Result, error) {
	c.seen[check]++
	return c.Toolkit.Evaluate(ctx, check, in)
}

// pinned fixes selected check results and runs the rest for real
type pinned struct {
	*indicators.Toolkit
	results map[indicators.Check]indicators.Result
}

func (p pinned) Evaluate(ctx context.Context, check indicators.Check, in indicators.Input) (indicators.Result, error) {
	if res, ok := p.results[check]; ok {
		return res, nil
	}
	return p.Toolkit.Evaluate(ctx, check, in)
}

// resolutionFetcher serves a separate frame for 1m candles
type resolutionFetcher struct {
	daily, intraday *timeseries.Frame
	intradayErr     error
}

func (f *resolutionFetcher) Fetch(_ context.Context, req contracts.FetchRequest) (*timeseries.Frame, error) {
	if req.Duration == "1m" {
		if f.intradayErr != nil {
			return nil, f.intradayErr
		}
		return f.intraday.Clone(), nil
	}
	return f.daily.Clone(), nil
}

type panicky struct{ *indicators.Toolkit }

func (panicky) Preprocess(*timeseries.Frame, int) (*timeseries.Frame, *timeseries.Frame, error) {
	panic("corrupt series")
}

func testConfig() *screenconfig.Config {
	cfg := screenconfig.Default()
	cfg.Cache.Enabled = false
	return cfg
}

func newPipeline(cfg *screenconfig.Config, fetcher contracts.Fetcher, eval indicators.Evaluator, opts ...Option) (*Pipeline, *progress.Coordinator) {
	clock := marketclock.NSE(marketclock.WithNow(func() time.Time {
		return time.Date(2024, 3, 4, 12, 30, 0, 0, time.UTC) // 18:00 IST, after the close
	}))
	prog := progress.New(nil)
	res := resolver.New(fetcher, clock, prog, logger.Nop())
	return New(cfg, res, eval, prog, logger.Nop(), opts...), prog
}

func request(st strategy.Strategy) Request {
	return Request{
		Ticker:     "SBIN",
		Strategy:   st,
		MenuOption: "X",
		Partitions: datacache.NewMemoryPartitions(),
	}
}

func TestScreen_RSIBand(t *testing.T) {
	tests := []struct {
		rsi  float64
		want contracts.OutcomeKind
	}{
		{50, contracts.KindMatched},
		{70, contracts.KindNotEligible},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("rsi %.0f", tt.rsi), func(t *testing.T) {
			fetcher := &stubFetcher{frame: fixture(t, 60, flat(100), flat(20000))}
			p, prog := newPipeline(testConfig(), fetcher, fixedRSI{indicators.NewToolkit(), tt.rsi})

			req := request(strategy.RSIBand{})
			req.MinRSI, req.MaxRSI = 40, 60
			out := p.Screen(context.Background(), req)

			assert.Equal(t, tt.want, out.Kind)
			if tt.want == contracts.KindMatched {
				assert.Equal(t, tt.rsi, out.Match.Save[records.RSI])
				assert.Equal(t, 1, prog.Snapshot().Matched)
			} else {
				assert.Equal(t, contracts.ReasonEligibilityNotMet, out.Reason)
			}
		})
	}
}

func TestScreen_BreakoutNeedsVolumeSurge(t *testing.T) {
	breakout := func(i int) float64 {
		if i == 59 {
			return 104
		}
		return 100
	}
	tests := []struct {
		name    string
		lastVol float64
		want    contracts.OutcomeKind
		wantWhy contracts.Reason
	}{
		{"with surge", 60000, contracts.KindMatched, ""},
		{"without surge", 20000, contracts.KindNotEligible, contracts.ReasonNotReportable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vol := func(i int) float64 {
				if i == 59 {
					return tt.lastVol
				}
				return 20000
			}
			fetcher := &stubFetcher{frame: fixture(t, 60, breakout, vol)}
			p, _ := newPipeline(testConfig(), fetcher, indicators.NewToolkit())

			out := p.Screen(context.Background(), request(strategy.BreakoutToday{}))
			assert.Equal(t, tt.want, out.Kind)
			assert.Equal(t, tt.wantWhy, out.Reason)
			if out.IsMatched() {
				assert.Equal(t, "BO: 101.00 R: 105.00", out.Match.Save[records.Breakout])
			}
		})
	}
}

func TestScreen_BacktestNeverSeesValidationRows(t *testing.T) {
	data := fixture(t, 100, func(i int) float64 { return 100 + float64(i) }, flat(20000))
	eval := &spy{Toolkit: indicators.NewToolkit()}
	p, _ := newPipeline(testConfig(), &stubFetcher{frame: data}, eval)

	req := request(strategy.NoFilter{})
	req.MenuOption, req.Window = "B", 10
	out := p.Screen(context.Background(), req)

	require.True(t, out.IsMatched(), out.Detail)
	assert.Equal(t, data.Index()[89], eval.latest, "indicators must stop at row 89")
	assert.Equal(t, 10, out.Match.Window)
	series := out.Match.Series
	assert.Equal(t, 90, series.Len())
	assert.Equal(t, data.Index()[89], series.Index()[series.Len()-1])
	assert.True(t, series.Has(timeseries.RSI), "series carries the indicator columns")

	// validation slice: anchor row 89 plus rows 90..99
	ltp1, growth1 := records.HorizonKeys(1)
	ltp10, _ := records.HorizonKeys(10)
	assert.Equal(t, 190.0, out.Match.Save[ltp1])
	assert.InDelta(t, 0.53, out.Match.Save[growth1], 0.001)
	assert.Equal(t, 199.0, out.Match.Save[ltp10])
}

func TestScreen_BacktestFallback(t *testing.T) {
	tests := []struct {
		name   string
		menu   string
		window int
		want   contracts.OutcomeKind
	}{
		{"bounded backtest", "B", 10, contracts.KindMatched},
		{"other mode", "X", 10, contracts.KindNotEligible},
		{"window above max", "B", 40, contracts.KindNotEligible},
		{"live scan", "B", 0, contracts.KindNotEligible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := fixture(t, 100, flat(100), flat(20000))
			p, prog := newPipeline(testConfig(), &stubFetcher{frame: data}, fixedRSI{indicators.NewToolkit(), 90})

			req := request(strategy.RSIBand{})
			req.MinRSI, req.MaxRSI = 40, 60
			req.MenuOption, req.Window = tt.menu, tt.window
			out := p.Screen(context.Background(), req)

			assert.Equal(t, tt.want, out.Kind)
			if out.IsMatched() {
				assert.True(t, out.Match.Fallback)
				assert.NotEmpty(t, out.Match.Save[records.Trend])
				assert.Zero(t, prog.Snapshot().Matched, "fallback rows are not matches")
			} else {
				assert.Equal(t, contracts.ReasonEligibilityNotMet, out.Reason)
			}
		})
	}
}

func TestScreen_LateChecksFallBack(t *testing.T) {
	failed := indicators.Result{}
	tests := []struct {
		name   string
		st     strategy.Strategy
		pinned map[indicators.Check]indicators.Result
	}{
		{"cci outside band", strategy.CCIBand{}, map[indicators.Check]indicators.Result{
			indicators.CheckCCI: failed,
		}},
		{"bullish reversal without pattern or support", strategy.Reversal{Kind: strategy.BullishCandle}, map[indicators.Check]indicators.Result{
			indicators.CheckCandlePattern: failed,
			indicators.CheckMovingAverage: {Passed: true, Value: -1},
		}},
		{"bearish reversal without pattern or resistance", strategy.Reversal{Kind: strategy.BearishCandle}, map[indicators.Check]indicators.Result{
			indicators.CheckCandlePattern: failed,
			indicators.CheckMovingAverage: {Passed: true, Value: 1},
		}},
		{"no momentum", strategy.Reversal{Kind: strategy.Momentum}, map[indicators.Check]indicators.Result{
			indicators.CheckMomentum: failed,
		}},
		{"no inside bar", strategy.ChartPattern{Kind: strategy.InsideBarBullish}, map[indicators.Check]indicators.Result{
			indicators.CheckInsideBar: failed,
		}},
	}
	modes := []struct {
		name   string
		menu   string
		window int
	}{
		{"bounded backtest", "B", 10},
		{"live scan", "X", 0},
	}
	for _, tt := range tests {
		for _, mode := range modes {
			t.Run(tt.name+"/"+mode.name, func(t *testing.T) {
				data := fixture(t, 100, flat(100), flat(20000))
				eval := pinned{Toolkit: indicators.NewToolkit(), results: tt.pinned}
				p, prog := newPipeline(testConfig(), &stubFetcher{frame: data}, eval)

				req := request(tt.st)
				req.MinRSI, req.MaxRSI = 100, 200
				req.MenuOption, req.Window = mode.menu, mode.window
				out := p.Screen(context.Background(), req)

				if mode.window > 0 {
					require.Equal(t, contracts.KindMatched, out.Kind, out.Detail)
					assert.True(t, out.Match.Fallback)
					assert.Equal(t, mode.window, out.Match.Window)
					assert.NotEmpty(t, out.Match.Save[records.Trend])
					assert.Zero(t, prog.Snapshot().Matched)
					return
				}
				assert.Equal(t, contracts.KindNotEligible, out.Kind)
				assert.Equal(t, contracts.ReasonEligibilityNotMet, out.Reason)
			})
		}
	}
}

func TestScreen_IPOBaseNeedsPattern(t *testing.T) {
	base := indicators.Result{Passed: true, Value: -5}
	tests := []struct {
		name   string
		st     strategy.Strategy
		pinned map[indicators.Check]indicators.Result
		want   contracts.OutcomeKind
	}{
		{"vcp not forming", strategy.ChartPattern{Kind: strategy.VCP}, map[indicators.Check]indicators.Result{
			indicators.CheckIPOBase: base,
			indicators.CheckVCP:     {},
		}, contracts.KindNotEligible},
		{"vcp forming", strategy.ChartPattern{Kind: strategy.VCP}, map[indicators.Check]indicators.Result{
			indicators.CheckIPOBase: base,
			indicators.CheckVCP:     {Passed: true},
		}, contracts.KindMatched},
		{"inside bar missing", strategy.ChartPattern{Kind: strategy.InsideBarBullish}, map[indicators.Check]indicators.Result{
			indicators.CheckIPOBase:   base,
			indicators.CheckInsideBar: {},
		}, contracts.KindNotEligible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := pinned{Toolkit: indicators.NewToolkit(), results: tt.pinned}
			p, _ := newPipeline(testConfig(), &stubFetcher{frame: fixture(t, 60, flat(100), flat(20000))}, eval)

			req := request(tt.st)
			req.NewlyListedOnly = true
			out := p.Screen(context.Background(), req)

			assert.Equal(t, tt.want, out.Kind, out.Detail)
			if tt.want == contracts.KindNotEligible {
				assert.Equal(t, contracts.ReasonEligibilityNotMet, out.Reason)
			}
		})
	}
}

func TestScreen_IntradayRSI(t *testing.T) {
	rising := func(i int) float64 { return 100 + float64(i) }
	tests := []struct {
		name        string
		intradayErr error
		window      int
		wantRSIi    float64
		wantLen     int
	}{
		{"aligned", nil, 0, 100, 40},
		{"intraday unavailable", contracts.ErrDataUnavailable, 0, 0, 60},
		{"backtest skips intraday", nil, 10, 0, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &resolutionFetcher{
				daily:       fixture(t, 60, flat(100), flat(20000)),
				intraday:    fixture(t, 40, rising, flat(20000)),
				intradayErr: tt.intradayErr,
			}
			cfg := testConfig()
			cfg.Data.CalculateRSIIntraday = true
			p, _ := newPipeline(cfg, fetcher, indicators.NewToolkit())

			req := request(strategy.NoFilter{})
			req.Window = tt.window
			out := p.Screen(context.Background(), req)

			require.True(t, out.IsMatched(), out.Detail)
			assert.Equal(t, tt.wantRSIi, out.Match.Save[records.RSIi])
			assert.Equal(t, tt.wantLen, out.Match.Series.Len())
			assert.Equal(t, tt.window == 0 && tt.intradayErr == nil, out.Match.Series.Has(timeseries.RSIi))
		})
	}
}

func TestScreen_Idempotent(t *testing.T) {
	data := fixture(t, 60, func(i int) float64 { return 100 + float64(i%7) }, flat(20000))
	p, _ := newPipeline(testConfig(), &stubFetcher{frame: data}, indicators.NewToolkit())

	first := p.Screen(context.Background(), request(strategy.NoFilter{}))
	second := p.Screen(context.Background(), request(strategy.NoFilter{}))

	require.True(t, first.IsMatched())
	require.True(t, second.IsMatched())
	// NaN horizons defeat DeepEqual; compare the rendered maps
	assert.Equal(t, fmt.Sprint(first.Match.Save), fmt.Sprint(second.Match.Save))
	assert.Equal(t, fmt.Sprint(first.Match.Display), fmt.Sprint(second.Match.Display))
}

func TestScreen_RecordKeySets(t *testing.T) {
	data := fixture(t, 60, flat(100), flat(20000))
	p, _ := newPipeline(testConfig(), &stubFetcher{frame: data}, indicators.NewToolkit())

	out := p.Screen(context.Background(), request(strategy.NoFilter{}))
	require.True(t, out.IsMatched())

	m := out.Match
	assert.Len(t, m.Keys, 16+2*len(screenconfig.Default().Backtest.Periods))
	assert.Len(t, m.Display, len(m.Keys))
	assert.Len(t, m.Save, len(m.Keys))
	for _, k := range m.Keys {
		assert.Contains(t, m.Display, k)
		assert.Contains(t, m.Save, k)
	}
	assert.Equal(t, "SBIN", m.Save[records.Stock])
	assert.Contains(t, m.Display[records.Stock], "NSE%3ASBIN")
}

func TestScreen_Signals(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *stubFetcher
		want    contracts.Reason
	}{
		{"no data", &stubFetcher{err: contracts.ErrDataUnavailable}, contracts.ReasonEmptyData},
		{"penny stock", &stubFetcher{frame: fixture(t, 60, flat(5), flat(20000))}, contracts.ReasonPriceOutOfRange},
		{"thin volume", &stubFetcher{frame: fixture(t, 60, flat(100), flat(50))}, contracts.ReasonInsufficientVolume},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newPipeline(testConfig(), tt.fetcher, indicators.NewToolkit())
			out := p.Screen(context.Background(), request(strategy.RSIBand{}))
			assert.Equal(t, contracts.KindNotEligible, out.Kind)
			assert.Equal(t, tt.want, out.Reason)
		})
	}
}

func TestScreen_DownloadOnly(t *testing.T) {
	cfg := screenconfig.Default()
	p, prog := newPipeline(cfg, &stubFetcher{frame: fixture(t, 60, flat(100), flat(20000))}, indicators.NewToolkit())

	req := request(strategy.NoFilter{})
	req.DownloadOnly = true
	out := p.Screen(context.Background(), req)

	assert.Equal(t, contracts.ReasonDownloadOnly, out.Reason)
	assert.Equal(t, progress.Snapshot{Started: 1, Matched: 1}, prog.Snapshot())
	n, err := req.Partitions.Daily.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestScreen_CacheServesSecondRun(t *testing.T) {
	cfg := screenconfig.Default()
	fetcher := &stubFetcher{frame: fixture(t, 60, flat(100), flat(20000))}
	p, _ := newPipeline(cfg, fetcher, indicators.NewToolkit())

	req := request(strategy.NoFilter{})
	require.True(t, p.Screen(context.Background(), req).IsMatched())
	require.True(t, p.Screen(context.Background(), req).IsMatched())
	assert.Equal(t, 1, fetcher.calls)
}

func TestScreen_InterruptedAndPanics(t *testing.T) {
	fetcher := &stubFetcher{frame: fixture(t, 60, flat(100), flat(20000))}

	p, _ := newPipeline(testConfig(), fetcher, indicators.NewToolkit())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := p.Screen(ctx, request(strategy.NoFilter{}))
	assert.Equal(t, contracts.ReasonInterrupted, out.Reason)

	reg := metrics.New()
	p, _ = newPipeline(testConfig(), fetcher, panicky{indicators.NewToolkit()}, WithMetrics(reg), WithDiagnostic(true))
	out = p.Screen(context.Background(), request(strategy.NoFilter{}))
	assert.Equal(t, contracts.KindUnexpected, out.Kind)
	assert.Contains(t, out.Detail, "corrupt series")
}

func TestScreen_NewlyListedOnly(t *testing.T) {
	tests := []struct {
		name string
		rows int
		want contracts.OutcomeKind
	}{
		{"recent listing", 60, contracts.KindMatched},
		{"seasoned stock", 300, contracts.KindNotEligible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{frame: fixture(t, tt.rows, flat(100), flat(20000))}
			p, _ := newPipeline(testConfig(), fetcher, indicators.NewToolkit())

			req := request(strategy.NoFilter{})
			req.NewlyListedOnly = true
			out := p.Screen(context.Background(), req)
			assert.Equal(t, tt.want, out.Kind)
			if tt.want == contracts.KindNotEligible {
				assert.Equal(t, contracts.ReasonNotNewlyListed, out.Reason)
			}
		})
	}
}

func TestScreen_MonitorSkipsEnrichment(t *testing.T) {
	tests := []struct {
		monitor bool
		runs    int
	}{
		{false, 1},
		{true, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("monitor=%t", tt.monitor), func(t *testing.T) {
			log := &checkLog{Toolkit: indicators.NewToolkit(), seen: map[indicators.Check]int{}}
			p, _ := newPipeline(testConfig(), &stubFetcher{frame: fixture(t, 60, flat(100), flat(20000))}, log)

			req := request(strategy.NoFilter{})
			req.Monitor = tt.monitor
			require.True(t, p.Screen(context.Background(), req).IsMatched())
			for _, check := range []indicators.Check{
				indicators.CheckLorentzian,
				indicators.CheckBreakout,
				indicators.CheckConsolidation,
				indicators.CheckCCI,
				indicators.CheckUptrend,
			} {
				assert.Equal(t, tt.runs, log.seen[check], check)
			}
			assert.Equal(t, 1, log.seen[indicators.CheckRSI])
			assert.Equal(t, 1, log.seen[indicators.Check52Week])
		})
	}
}

package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/progress"
	"github.com/wonny/screener/internal/screener"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
)

// Screener screens one ticker
type Screener interface {
	Screen(ctx context.Context, req screener.Request) contracts.Outcome
}

// Summary is the bookkeeping of one run
type Summary struct {
	RunID       string                   `json:"run_id"`
	Total       int                      `json:"total"`
	Dispatched  int                      `json:"dispatched"`
	Matched     int                      `json:"matched"`
	Fallback    int                      `json:"fallback"`
	NotEligible int                      `json:"not_eligible"`
	Unexpected  int                      `json:"unexpected"`
	SinkErrors  int                      `json:"sink_errors"`
	Reasons     map[contracts.Reason]int `json:"reasons"`
	Duration    time.Duration            `json:"duration"`
}

func (s *Summary) add(out contracts.Outcome) {
	s.Dispatched++
	switch out.Kind {
	case contracts.KindMatched:
		if out.Match != nil && out.Match.Fallback {
			s.Fallback++
		} else {
			s.Matched++
		}
	case contracts.KindUnexpected:
		s.Unexpected++
	default:
		s.NotEligible++
		s.Reasons[out.Reason]++
	}
}

// Pool fans a universe out over N concurrent pipeline invocations
// ⭐ SSOT: the only owner of worker goroutines
type Pool struct {
	screener Screener
	sink     contracts.ResultSink
	progress *progress.Coordinator
	metrics  *metrics.Registry
	logger   *logger.Logger
	workers  int
}

// Config holds pool configuration
type Config struct {
	Workers int // number of concurrent workers
}

// New creates a pool. sink and reg may be nil.
func New(s Screener, sink contracts.ResultSink, prog *progress.Coordinator, reg *metrics.Registry, log *logger.Logger, cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		screener: s,
		sink:     sink,
		progress: prog,
		metrics:  reg,
		logger:   log.WithField("module", "worker"),
		workers:  workers,
	}
}

// Run screens every ticker with tmpl as the request template. Tickers are
// isolated from each other; cancelling ctx stops dispatch of new tickers and
// in-flight ones finish as Interrupted. Matched rows reach the sink in
// completion order.
func (p *Pool) Run(ctx context.Context, tickers []string, tmpl screener.Request) (Summary, error) {
	start := time.Now()
	summary := Summary{
		RunID:   uuid.NewString(),
		Total:   len(tickers),
		Reasons: make(map[contracts.Reason]int),
	}
	log := p.logger.WithRun(summary.RunID)
	if p.progress != nil {
		p.progress.Reset()
	}
	log.WithFields(map[string]interface{}{
		"tickers":  len(tickers),
		"workers":  p.workers,
		"strategy": strategyName(tmpl),
	}).Info("Starting screening run")

	outcomes := make(chan contracts.Outcome, p.workers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	go func() {
		defer close(outcomes)
		for _, ticker := range tickers {
			if gctx.Err() != nil {
				break
			}
			req := tmpl
			req.Ticker = ticker
			req.TotalSymbols = len(tickers)
			g.Go(func() error {
				outcomes <- p.screener.Screen(ctx, req)
				return nil
			})
		}
		_ = g.Wait()
	}()

	for out := range outcomes {
		summary.add(out)
		if p.metrics != nil && p.progress != nil {
			if pct, ok := p.progress.Percent(len(tickers)); ok {
				p.metrics.Percent.Set(pct)
			}
		}
		if out.IsMatched() && p.sink != nil {
			if err := p.sink.Consume(ctx, summary.RunID, out.Match); err != nil {
				summary.SinkErrors++
				log.WithError(err).WithTicker(out.Ticker).Warn("Result sink rejected row")
			}
		}
	}

	summary.Duration = time.Since(start)
	log.WithFields(map[string]interface{}{
		"dispatched":   summary.Dispatched,
		"matched":      summary.Matched,
		"fallback":     summary.Fallback,
		"not_eligible": summary.NotEligible,
		"unexpected":   summary.Unexpected,
		"duration":     summary.Duration.String(),
	}).Info("Screening run completed")

	return summary, ctx.Err()
}

func strategyName(req screener.Request) string {
	if req.Strategy == nil {
		return "no_filter"
	}
	return req.Strategy.Name()
}

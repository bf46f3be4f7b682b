package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/screener/internal/marketclock"
	"github.com/wonny/screener/internal/portfolio"
	"github.com/wonny/screener/internal/results"
	"github.com/wonny/screener/pkg/logger"
)

// RowSource reads persisted runs
type RowSource interface {
	LatestRunID(ctx context.Context) (string, error)
	ListRun(ctx context.Context, runID string) ([]results.Row, error)
}

// LedgerStore persists a portfolio ledger
type LedgerStore interface {
	SaveLedger(ctx context.Context, p *portfolio.Portfolio) error
}

// LedgerJob rebuilds the portfolio ledger of the latest stored run
type LedgerJob struct {
	rows    RowSource
	store   LedgerStore
	periods []int
	clock   *marketclock.Clock
	logger  *logger.Logger
}

// NewLedgerJob creates a new ledger job
func NewLedgerJob(rows RowSource, store LedgerStore, periods []int, clock *marketclock.Clock, log *logger.Logger) *LedgerJob {
	return &LedgerJob{
		rows:    rows,
		store:   store,
		periods: periods,
		clock:   clock,
		logger:  log,
	}
}

// Name returns the job name
func (j *LedgerJob) Name() string {
	return "portfolio_ledger"
}

// Schedule returns the cron schedule (weekdays at 6 PM, after the cache warm)
func (j *LedgerJob) Schedule() string {
	return "0 0 18 * * 1-5"
}

// Run rebuilds and stores the ledger
func (j *LedgerJob) Run(ctx context.Context) error {
	runID, err := j.rows.LatestRunID(ctx)
	if err != nil {
		return fmt.Errorf("latest run: %w", err)
	}

	rows, err := j.rows.ListRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("list run %s: %w", runID, err)
	}

	p := portfolio.FromRows(runID, rows, j.periods, j.clock)
	if err := j.store.SaveLedger(ctx, p); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":        runID,
		"rows":          len(rows),
		"entries":       len(p.Entries()),
		"initial_value": p.InitialValue(),
		"current_value": p.CurrentValue(),
		"profit":        p.Profit(),
	}).Info("Portfolio ledger rebuilt")
	return nil
}

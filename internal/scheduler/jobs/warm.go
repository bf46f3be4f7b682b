package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/screener"
	"github.com/wonny/screener/internal/worker"
	"github.com/wonny/screener/pkg/logger"
)

// Runner fans a request template out over tickers
type Runner interface {
	Run(ctx context.Context, tickers []string, tmpl screener.Request) (worker.Summary, error)
}

// CacheWarmJob downloads the day's series into the shared cache after the close
// ⭐ SSOT: the after-close cache warm-up is scheduled by this job only
type CacheWarmJob struct {
	runner  Runner
	tickers []string
	tmpl    screener.Request
	logger  *logger.Logger
}

// NewCacheWarmJob creates a new cache warm job
func NewCacheWarmJob(runner Runner, tickers []string, tmpl screener.Request, log *logger.Logger) *CacheWarmJob {
	tmpl.DownloadOnly = true
	return &CacheWarmJob{
		runner:  runner,
		tickers: tickers,
		tmpl:    tmpl,
		logger:  log,
	}
}

// Name returns the job name
func (j *CacheWarmJob) Name() string {
	return "cache_warm"
}

// Schedule returns the cron schedule (weekdays at 4 PM, after the close)
func (j *CacheWarmJob) Schedule() string {
	return "0 0 16 * * 1-5"
}

// Run executes the download-only pass
func (j *CacheWarmJob) Run(ctx context.Context) error {
	if len(j.tickers) == 0 {
		return errors.New("cache warm: empty universe")
	}
	j.logger.WithField("tickers", len(j.tickers)).Info("Starting scheduled cache warm")

	summary, err := j.runner.Run(ctx, j.tickers, j.tmpl)
	if err != nil {
		return fmt.Errorf("cache warm: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":     summary.RunID,
		"downloaded": summary.Reasons[contracts.ReasonDownloadOnly],
		"unexpected": summary.Unexpected,
		"duration":   summary.Duration,
	}).Info("Cache warm completed")

	if summary.Unexpected > 0 && summary.Unexpected == summary.Total {
		return fmt.Errorf("cache warm: all %d downloads failed", summary.Total)
	}
	return nil
}

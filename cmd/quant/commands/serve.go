package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/api"
	"github.com/wonny/screener/internal/api/handlers"
	"github.com/wonny/screener/internal/scheduler"
	"github.com/wonny/screener/internal/scheduler/jobs"
	"github.com/wonny/screener/internal/screener"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and the post-close scheduler",
	Long: `Start the HTTP API with the job scheduler.

Endpoints:
  POST /api/screen          start a run (one at a time)
  GET  /api/progress        counters of the current run
  GET  /api/runs            runs kept in memory
  GET  /api/results?run=    rows of a run (default: latest)
  GET  /api/portfolio?run=  ledger built from a run
  GET  /api/portfolio/{name}/summary  stored ledger headline (database only)
  GET  /api/jobs            scheduled jobs and their stats
  POST /api/jobs/{name}/run trigger a job
  GET  /ws/results          live rows over websocket
  GET  /metrics             prometheus metrics

Jobs:
  cache_warm        weekdays 16:00 IST, fills the data cache
  portfolio_ledger  weekdays 18:00 IST, rebuilds the stored ledger (database only)

Example:
  go run ./cmd/quant serve
  PORT=8090 go run ./cmd/quant serve --profile profiles/nifty50.yaml`,
	RunE: runServe,
}

var noScheduler bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without scheduled jobs")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// 1. Scheduler
	sched := scheduler.New(a.log, scheduler.WithLocation(a.clock.Location()))
	if !noScheduler {
		if err := a.registerJobs(sched); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// 2. Handlers
	var rowReader handlers.RowReader
	if a.resultsRepo != nil {
		rowReader = a.resultsRepo
	}
	resultsHandler := handlers.NewResultsHandler(a.collector, rowReader, a.profile.Backtest.Periods, a.clock, a.log)
	if a.ledgerRepo != nil {
		resultsHandler.WithLedgers(a.ledgerRepo)
	}
	runs := handlers.NewRunHandler(ctx, a.pool, a.progress, a.parts, a.profile.Data.Tickers, a.log)
	checks := map[string]func(context.Context) error{"redis": a.redis.Ping}
	if a.db != nil {
		checks["database"] = a.db.Ready
	}
	router := api.NewRouter(api.Handlers{
		Runs:    runs,
		Results: resultsHandler,
		Stream:  handlers.NewStreamHandler(a.collector, a.log),
		Jobs:    handlers.NewJobsHandler(sched, a.log),
		Metrics: a.metrics.Handler(),
		Checks:  checks,
	}, a.log)

	// 3. Server
	server := api.New(a.cfg, a.log, router)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Error("Server shutdown failed")
	}
	// ctx is done, so an active run drains its workers and returns
	runs.Wait()
	a.log.Info("Server stopped")
	return nil
}

// registerJobs adds the post-close jobs the process can serve
func (a *app) registerJobs(sched *scheduler.Scheduler) error {
	if len(a.profile.Data.Tickers) > 0 {
		tmpl, err := a.template(screener.Options{})
		if err != nil {
			return err
		}
		if err := sched.AddJob(jobs.NewCacheWarmJob(a.pool, a.profile.Data.Tickers, tmpl, a.log)); err != nil {
			return fmt.Errorf("register cache warm job: %w", err)
		}
	} else {
		a.log.Warn("Profile has no tickers, cache warm job disabled")
	}

	if a.resultsRepo != nil && a.ledgerRepo != nil {
		job := jobs.NewLedgerJob(a.resultsRepo, a.ledgerRepo, a.profile.Backtest.Periods, a.clock, a.log)
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("register ledger job: %w", err)
		}
	}
	return nil
}

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/portfolio"
	"github.com/wonny/screener/internal/results"
	"github.com/wonny/screener/internal/worker"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a strategy over the last N sessions",
	Long: `Replay a strategy as if it had run 1..N sessions ago.

Each window screens the series truncated to that day and realizes the
LTP/Growth horizons from the sessions that followed. The matched rows of all
windows feed one portfolio ledger.

Example:
  go run ./cmd/quant backtest --execute 2 --days 10 --tickers SBIN,TCS`,
	RunE: runBacktest,
}

var backtestDays int

func init() {
	rootCmd.AddCommand(backtestCmd)
	addRunFlags(backtestCmd)
	backtestCmd.Flags().IntVar(&backtestDays, "days", 5, "number of past sessions to replay")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if backtestDays <= 0 || backtestDays > a.profile.Backtest.MaxWindow {
		return fmt.Errorf("--days must be in [1, %d]", a.profile.Backtest.MaxWindow)
	}

	tickers, err := universe(a)
	if err != nil {
		return err
	}

	opts := runOpts
	if opts.MenuOption == "" {
		opts.MenuOption = "B"
	}

	PrintRunHeader("Backtest", map[string]string{
		"Days":    fmt.Sprintf("%d", backtestDays),
		"Tickers": fmt.Sprintf("%d", len(tickers)),
		"Profile": a.profile.Meta.ProfileID,
	})

	var (
		rows  []results.Row
		total worker.Summary
	)
	for window := backtestDays; window >= 1; window-- {
		opts.Window = window
		tmpl, err := a.template(opts)
		if err != nil {
			return err
		}

		summary, err := a.pool.Run(ctx, tickers, tmpl)
		rows = append(rows, a.collector.Rows(summary.RunID)...)
		mergeSummary(&total, summary)
		if err != nil {
			if err == context.Canceled {
				break
			}
			return err
		}
	}

	PrintRows(rows, true)
	PrintSummary(total)

	ledger := portfolio.FromRows("backtest", rows, a.profile.Backtest.Periods, a.clock)
	PrintLedger(ledger)
	if a.ledgerRepo != nil {
		if err := a.ledgerRepo.SaveLedger(ctx, ledger); err != nil {
			a.log.WithError(err).Warn("Failed to store ledger")
		}
	}
	return nil
}

func mergeSummary(total *worker.Summary, s worker.Summary) {
	if total.Reasons == nil {
		total.Reasons = make(map[contracts.Reason]int)
	}
	total.RunID = s.RunID
	total.Total += s.Total
	total.Dispatched += s.Dispatched
	total.Matched += s.Matched
	total.Fallback += s.Fallback
	total.NotEligible += s.NotEligible
	total.Unexpected += s.Unexpected
	total.SinkErrors += s.SinkErrors
	total.Duration += s.Duration
	for r, n := range s.Reasons {
		total.Reasons[r] += n
	}
}

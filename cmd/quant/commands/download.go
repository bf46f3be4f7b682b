package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/screener"
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Fill the shared data cache without screening",
	Long: `Fetch the configured period for every ticker and store it in the shared
data cache. No strategy runs and no rows are reported.

Example:
  go run ./cmd/quant download --tickers-file nifty500.txt`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	f := downloadCmd.Flags()
	f.StringSliceVar(&tickerList, "tickers", nil, "comma separated tickers")
	f.StringVar(&tickersFile, "tickers-file", "", "file with one ticker per line")
	f.StringVar(&runOpts.Exchange, "exchange", "", "exchange (default: SCREENER_EXCHANGE)")
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tickers, err := universe(a)
	if err != nil {
		return err
	}
	tmpl, err := a.template(screener.Options{Exchange: runOpts.Exchange, DownloadOnly: true})
	if err != nil {
		return err
	}

	PrintRunHeader("Download", map[string]string{
		"Tickers": fmt.Sprintf("%d", len(tickers)),
		"Period":  a.profile.Data.Period,
		"Cache":   fmt.Sprintf("%t", a.redis.Enabled()),
	})

	summary, err := a.pool.Run(ctx, tickers, tmpl)
	PrintSummary(summary)
	if err != nil && err != context.Canceled {
		return err
	}
	cached := summary.Reasons[contracts.ReasonDownloadOnly]
	if cached < len(tickers) {
		PrintWarning(fmt.Sprintf("Cached %d of %d tickers; see the reasons above", cached, len(tickers)))
		return nil
	}
	PrintSuccess(fmt.Sprintf("Cached %d tickers", cached))
	return nil
}

package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/screener"
)

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen the universe with one strategy",
	Long: `Screen every ticker of the universe with the baseline checks and one strategy.

Strategy codes (--execute):
  0  no filter            1  probable breakout     2  breakout today
  3  consolidating        4  lowest volume         5  RSI band (--min-rsi/--max-rsi)
  6  reversal (--reversal 1-10)                    7  chart pattern (--chart 1-7)
  8  CCI band             9  volume ratio          10 price rising
  11 short-term bullish   12-20, 23-25, 27, 28 validity checks
  21 fund flow (--reversal 3,5-9)                  26 hidden

Example:
  go run ./cmd/quant screen --execute 2 --tickers SBIN,TCS,INFY
  go run ./cmd/quant screen --execute 7 --chart 3 --tickers-file nifty50.txt`,
	RunE: runScreen,
}

var (
	runOpts     screener.Options
	tickerList  []string
	tickersFile string
)

func init() {
	rootCmd.AddCommand(screenCmd)
	addRunFlags(screenCmd)
}

// addRunFlags registers the strategy and universe flags shared by run commands
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&runOpts.Execute, "execute", 0, "strategy code")
	f.IntVar(&runOpts.Reversal, "reversal", 0, "reversal or fund flow sub-code")
	f.IntVar(&runOpts.Chart, "chart", 0, "chart pattern sub-code")
	f.StringVar(&runOpts.Exchange, "exchange", "", "exchange (default: SCREENER_EXCHANGE)")
	f.Float64Var(&runOpts.MinRSI, "min-rsi", 0, "RSI / CCI lower bound")
	f.Float64Var(&runOpts.MaxRSI, "max-rsi", 0, "RSI / CCI upper bound")
	f.Float64Var(&runOpts.VolumeRatio, "volume-ratio", 0, "volume ratio override")
	f.Float64Var(&runOpts.InsideBarLookback, "inside-bar", 0, "inside bar lookback or confluence percentage")
	f.IntVar(&runOpts.MALength, "ma-length", 0, "MA length, NR length or pattern filter")
	f.IntVar(&runOpts.DaysForLowestVolume, "lowest-volume-days", 0, "lowest volume lookback")
	f.BoolVar(&runOpts.NewlyListedOnly, "newly-listed", false, "only newly listed tickers")
	f.BoolVar(&runOpts.Monitor, "monitor", false, "skip the enrichment pass")
	f.StringSliceVar(&tickerList, "tickers", nil, "comma separated tickers")
	f.StringVar(&tickersFile, "tickers-file", "", "file with one ticker per line")
}

func runScreen(cmd *cobra.Command, args []string) error {
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
	tmpl, err := a.template(runOpts)
	if err != nil {
		return err
	}

	PrintRunHeader("Screening", map[string]string{
		"Strategy": tmpl.Strategy.Name(),
		"Tickers":  fmt.Sprintf("%d", len(tickers)),
		"Profile":  a.profile.Meta.ProfileID,
	})

	summary, err := a.pool.Run(ctx, tickers, tmpl)
	PrintRows(a.collector.Rows(summary.RunID), false)
	PrintSummary(summary)
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// template builds the request template with process defaults filled in
func (a *app) template(opts screener.Options) (screener.Request, error) {
	if opts.Exchange == "" {
		opts.Exchange = a.exchange()
	}
	tmpl, err := opts.Request(a.parts)
	if err != nil {
		return screener.Request{}, fmt.Errorf("invalid strategy options: %w", err)
	}
	return tmpl, nil
}

// universe resolves tickers from flags, a file, then the profile
func universe(a *app) ([]string, error) {
	if len(tickerList) > 0 {
		return normalizeTickers(tickerList), nil
	}
	if tickersFile != "" {
		f, err := os.Open(tickersFile)
		if err != nil {
			return nil, fmt.Errorf("open tickers file: %w", err)
		}
		defer f.Close()

		var out []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			out = append(out, line)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read tickers file: %w", err)
		}
		return normalizeTickers(out), nil
	}
	if len(a.profile.Data.Tickers) > 0 {
		return a.profile.Data.Tickers, nil
	}
	return nil, fmt.Errorf("no tickers: use --tickers, --tickers-file or data.tickers in the profile")
}

func normalizeTickers(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

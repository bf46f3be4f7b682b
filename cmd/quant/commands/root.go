package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	profilePath string
	env         string
	verbose     bool
	workers     int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Stock screener - rule-based screening and backtesting",
	Long: `Stock screener CLI

Downloads price/volume series, applies the baseline eligibility checks and a
chosen strategy to every ticker, and reports the matches.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant screen --execute 5 --min-rsi 40 --max-rsi 60 --tickers SBIN,TCS
  go run ./cmd/quant backtest --execute 2 --days 10
  go run ./cmd/quant download
  go run ./cmd/quant serve`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "YAML run profile (default: SCREENER_PROFILE or built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "concurrent workers (default: SCREENER_WORKERS)")
}

package screenconfig

import (
	"fmt"
	"regexp"
	"sort"
)

// ValidationError aborts the run
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	periodPattern   = regexp.MustCompile(`^[0-9]+d$`)
	durationPattern = regexp.MustCompile(`^[0-9]+[mhdwk]$`)
)

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Data ===
	if !periodPattern.MatchString(cfg.Data.Period) {
		return ValidationError{"data.period", fmt.Sprintf("must look like 450d, got %q", cfg.Data.Period)}
	}
	if !durationPattern.MatchString(cfg.Data.Duration) {
		return ValidationError{"data.duration", fmt.Sprintf("must look like 1d or 5m, got %q", cfg.Data.Duration)}
	}
	if cfg.Data.DaysToLookback <= 0 {
		return ValidationError{"data.days_to_lookback", "must be > 0"}
	}
	tickers := make(map[string]bool, len(cfg.Data.Tickers))
	for _, t := range cfg.Data.Tickers {
		if t == "" {
			return ValidationError{"data.tickers", "empty ticker"}
		}
		if tickers[t] {
			return ValidationError{"data.tickers", fmt.Sprintf("duplicate ticker %s", t)}
		}
		tickers[t] = true
	}

	// === Thresholds ===
	if cfg.Thresholds.MinLTP < 0 {
		return ValidationError{"thresholds.min_ltp", "must be >= 0"}
	}
	if cfg.Thresholds.MaxLTP <= cfg.Thresholds.MinLTP {
		return ValidationError{"thresholds.max_ltp", "must be > min_ltp"}
	}
	if cfg.Thresholds.VolumeRatio <= 0 {
		return ValidationError{"thresholds.volume_ratio", "must be > 0"}
	}
	if cfg.Thresholds.ConsolidationPercentage <= 0 || cfg.Thresholds.ConsolidationPercentage > 100 {
		return ValidationError{"thresholds.consolidation_percentage", "must be in (0, 100]"}
	}

	// === Backtest ===
	if cfg.Backtest.MaxWindow < 0 {
		return ValidationError{"backtest.max_window", "must be >= 0"}
	}
	if len(cfg.Backtest.Periods) == 0 {
		return ValidationError{"backtest.periods", "at least one horizon required"}
	}
	if !sort.IntsAreSorted(cfg.Backtest.Periods) {
		return ValidationError{"backtest.periods", "must be ascending"}
	}
	seen := make(map[int]bool, len(cfg.Backtest.Periods))
	for _, p := range cfg.Backtest.Periods {
		if p <= 0 {
			return ValidationError{"backtest.periods", "horizons must be > 0"}
		}
		if seen[p] {
			return ValidationError{"backtest.periods", fmt.Sprintf("duplicate horizon %d", p)}
		}
		seen[p] = true
	}

	return nil
}

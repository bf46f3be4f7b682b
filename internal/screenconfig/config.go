package screenconfig

import (
	"strconv"
	"strings"
)

// Config is the immutable per-run screening profile
// ⭐ SSOT: every threshold the pipeline reads lives here
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Data       Data       `yaml:"data" json:"data"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
	Backtest   Backtest   `yaml:"backtest" json:"backtest"`
	Cache      Cache      `yaml:"cache" json:"cache"`
}

// Meta identifies a profile in run snapshots
type Meta struct {
	ProfileID string `yaml:"profile_id" json:"profile_id"`
	Version   string `yaml:"version" json:"version"`
}

// Data controls what gets downloaded per ticker
type Data struct {
	Period               string `yaml:"period" json:"period"`     // e.g. "450d"
	Duration             string `yaml:"duration" json:"duration"` // candle size, e.g. "1d", "5m"
	DaysToLookback       int    `yaml:"days_to_lookback" json:"days_to_lookback"`
	CalculateRSIIntraday bool   `yaml:"calculate_rsi_intraday" json:"calculate_rsi_intraday"`

	// Tickers is the default universe of scheduled and CLI runs
	Tickers []string `yaml:"tickers" json:"tickers"`
}

// Thresholds are the baseline eligibility limits
type Thresholds struct {
	MinLTP                  float64 `yaml:"min_ltp" json:"min_ltp"`
	MaxLTP                  float64 `yaml:"max_ltp" json:"max_ltp"`
	VolumeRatio             float64 `yaml:"volume_ratio" json:"volume_ratio"`
	MinVolume               float64 `yaml:"min_volume" json:"min_volume"`
	ConsolidationPercentage float64 `yaml:"consolidation_percentage" json:"consolidation_percentage"`
	StageTwo                bool    `yaml:"stage_two" json:"stage_two"`
}

// Backtest controls the point-in-time simulation
type Backtest struct {
	MaxWindow int   `yaml:"max_window" json:"max_window"`
	Periods   []int `yaml:"periods" json:"periods"` // realized LTP/Growth horizons

	// FallbackModes lists the menu modes in which a failed strategy inside a
	// bounded window still yields a trend summary row.
	FallbackModes []string `yaml:"fallback_modes" json:"fallback_modes"`
}

// Cache controls the shared data cache
type Cache struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Default returns the built-in profile
func Default() *Config {
	return &Config{
		Meta: Meta{ProfileID: "default", Version: "1"},
		Data: Data{
			Period:               "450d",
			Duration:             "1d",
			DaysToLookback:       22,
			CalculateRSIIntraday: false,
		},
		Thresholds: Thresholds{
			MinLTP:                  20,
			MaxLTP:                  50000,
			VolumeRatio:             2.5,
			MinVolume:               10000,
			ConsolidationPercentage: 10,
			StageTwo:                false,
		},
		Backtest: Backtest{
			MaxWindow:     30,
			Periods:       []int{1, 2, 3, 4, 5, 10, 15, 22, 30},
			FallbackModes: []string{"B"},
		},
		Cache: Cache{Enabled: true},
	}
}

// IsIntraday reports whether candles are minute-based
func (c *Config) IsIntraday() bool {
	return strings.HasSuffix(c.Data.Duration, "m")
}

// EffectiveDaysToLookback scales the lookback to the candle size
func (c *Config) EffectiveDaysToLookback() int {
	if !c.IsIntraday() {
		return c.Data.DaysToLookback
	}
	minutes, err := strconv.Atoi(strings.TrimSuffix(c.Data.Duration, "m"))
	if err != nil || minutes <= 0 {
		return c.Data.DaysToLookback
	}
	// one session is 375 minutes
	bars := c.Data.DaysToLookback * 375 / minutes
	if bars < c.Data.DaysToLookback {
		return c.Data.DaysToLookback
	}
	return bars
}

// MinVolumeFloor returns the volume floor for the configured candle size
func (c *Config) MinVolumeFloor() float64 {
	if c.IsIntraday() {
		return c.Thresholds.MinVolume / 100
	}
	return c.Thresholds.MinVolume
}

// MinLTPFor relaxes the price floor outside the primary exchange
func (c *Config) MinLTPFor(exchange string) float64 {
	if exchange == PrimaryExchange {
		return c.Thresholds.MinLTP
	}
	return c.Thresholds.MinLTP / 80
}

// WantsIntradayRSI reports whether a secondary 1m series is needed
func (c *Config) WantsIntradayRSI() bool {
	return !c.IsIntraday() && c.Data.CalculateRSIIntraday
}

// FallbackAllowed reports whether a failed strategy in this backtest
// produces a trend summary row
func (c *Config) FallbackAllowed(menuOption string, window int) bool {
	if window <= 0 || window > c.Backtest.MaxWindow {
		return false
	}
	for _, m := range c.Backtest.FallbackModes {
		if m == menuOption {
			return true
		}
	}
	return false
}

// PrimaryExchange is the home market; others get relaxed price floors
const PrimaryExchange = "INDIA"

// PeriodDays parses "450d" into 450
func PeriodDays(period string) (int, error) {
	return strconv.Atoi(strings.TrimSuffix(period, "d"))
}

package screenconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "450d", cfg.Data.Period)
	assert.Equal(t, 22, cfg.EffectiveDaysToLookback())
	assert.False(t, cfg.IsIntraday())
	assert.Equal(t, 10000.0, cfg.MinVolumeFloor())
	assert.Equal(t, []string{"B"}, cfg.Backtest.FallbackModes)
}

func TestIntradayDerivations(t *testing.T) {
	cfg := Default()
	cfg.Data.Duration = "5m"
	cfg.Data.CalculateRSIIntraday = true

	assert.True(t, cfg.IsIntraday())
	assert.False(t, cfg.WantsIntradayRSI(), "intraday profiles already carry intraday RSI")
	assert.Equal(t, 100.0, cfg.MinVolumeFloor())
	assert.Equal(t, 22*375/5, cfg.EffectiveDaysToLookback())
}

func TestMinLTPFor(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 20.0, cfg.MinLTPFor(PrimaryExchange))
	assert.Equal(t, 0.25, cfg.MinLTPFor("NASDAQ"))
}

func TestFallbackAllowed(t *testing.T) {
	cfg := Default()

	tests := []struct {
		name   string
		menu   string
		window int
		want   bool
	}{
		{"live run", "B", 0, false},
		{"bounded backtest", "B", 10, true},
		{"at the bound", "B", 30, true},
		{"beyond the bound", "B", 31, false},
		{"other mode", "X", 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.FallbackAllowed(tt.menu, tt.window))
		})
	}

	cfg.Backtest.FallbackModes = []string{"B", "X"}
	assert.True(t, cfg.FallbackAllowed("X", 10))
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
meta:
  profile_id: swing
thresholds:
  min_ltp: 50
  max_ltp: 5000
backtest:
  periods: [1, 5, 10]
  fallback_modes: ["B", "G"]
`))
	require.NoError(t, err)

	assert.Equal(t, "swing", cfg.Meta.ProfileID)
	assert.Equal(t, 50.0, cfg.Thresholds.MinLTP)
	assert.Equal(t, 2.5, cfg.Thresholds.VolumeRatio, "unset fields keep defaults")
	assert.Equal(t, []int{1, 5, 10}, cfg.Backtest.Periods)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("thresholds:\n  min_ltpp: 5\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad period", func(c *Config) { c.Data.Period = "1y" }, "data.period"},
		{"bad duration", func(c *Config) { c.Data.Duration = "daily" }, "data.duration"},
		{"max below min", func(c *Config) { c.Thresholds.MaxLTP = 10 }, "thresholds.max_ltp"},
		{"zero ratio", func(c *Config) { c.Thresholds.VolumeRatio = 0 }, "thresholds.volume_ratio"},
		{"unsorted periods", func(c *Config) { c.Backtest.Periods = []int{5, 1} }, "backtest.periods"},
		{"duplicate periods", func(c *Config) { c.Backtest.Periods = []int{1, 1} }, "backtest.periods"},
		{"duplicate tickers", func(c *Config) { c.Data.Tickers = []string{"SBIN", "SBIN"} }, "data.tickers"},
		{"empty ticker", func(c *Config) { c.Data.Tickers = []string{""} }, "data.tickers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLoadAndHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data:\n  days_to_lookback: 30\n"), 0o600))

	cfg, raw, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Equal(t, 30, cfg.Data.DaysToLookback)

	h1, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	h2, _ := Hash(Default())
	assert.NotEqual(t, h1, h2)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package screener

import (
	"fmt"
	"strings"

	"github.com/wonny/screener/internal/datacache"
	"github.com/wonny/screener/internal/strategy"
)

// Options are the caller-facing knobs of a run, shared by the CLI and the API
type Options struct {
	Execute  int `json:"execute"`  // strategy code
	Reversal int `json:"reversal"` // reversal / fund flow sub-code
	Chart    int `json:"chart"`    // chart pattern or validity sub-code

	MenuOption string `json:"menu"`   // "X" scan, "B" backtest
	Window     int    `json:"window"` // backtest window
	Exchange   string `json:"exchange"`
	Proxy      string `json:"proxy,omitempty"`

	MinRSI              float64 `json:"min_rsi"`
	MaxRSI              float64 `json:"max_rsi"`
	VolumeRatio         float64 `json:"volume_ratio"`
	InsideBarLookback   float64 `json:"inside_bar_lookback"`
	MALength            int     `json:"ma_length"`
	DaysForLowestVolume int     `json:"days_for_lowest_volume"`

	NewlyListedOnly bool `json:"newly_listed_only"`
	DownloadOnly    bool `json:"download_only"`
	Monitor         bool `json:"monitor"`
}

// Request builds the per-run request template; Ticker is left empty
func (o Options) Request(parts datacache.Partitions) (Request, error) {
	st, err := strategy.FromCodes(o.Execute, o.Reversal, o.Chart)
	if err != nil {
		return Request{}, err
	}
	if o.Window < 0 {
		return Request{}, fmt.Errorf("negative backtest window %d", o.Window)
	}

	menu := strings.ToUpper(o.MenuOption)
	if menu == "" {
		menu = "X"
		if o.Window > 0 {
			menu = "B"
		}
	}

	minRSI, maxRSI := o.MinRSI, o.MaxRSI
	if minRSI == 0 && maxRSI == 0 {
		maxRSI = 100
	}
	if minRSI > maxRSI {
		return Request{}, fmt.Errorf("min rsi %.0f above max rsi %.0f", minRSI, maxRSI)
	}

	return Request{
		Strategy:            st,
		MenuOption:          menu,
		Window:              o.Window,
		Exchange:            strings.ToUpper(o.Exchange),
		Proxy:               o.Proxy,
		MinRSI:              minRSI,
		MaxRSI:              maxRSI,
		VolumeRatio:         o.VolumeRatio,
		InsideBarLookback:   o.InsideBarLookback,
		MALength:            o.MALength,
		DaysForLowestVolume: o.DaysForLowestVolume,
		NewlyListedOnly:     o.NewlyListedOnly,
		DownloadOnly:        o.DownloadOnly,
		Monitor:             o.Monitor,
		Partitions:          parts,
	}, nil
}

package resolver

import (
	"errors"
	"fmt"

	"github.com/wonny/screener/internal/timeseries"
)

// ErrWindowTooLarge is returned when a series cannot hold the backtest window
var ErrWindowTooLarge = errors.New("backtest window exceeds series length")

// SplitBacktest separates a series at a backtest window.
// input holds every row except the last window; validation holds the last
// window+1 rows (the decision row plus the realized future). Nothing computed
// on input can observe a validation-only row.
func SplitBacktest(data *timeseries.Frame, window int) (input, validation *timeseries.Frame, err error) {
	if window <= 0 {
		return data, nil, nil
	}
	if data.Len() <= window {
		return nil, nil, fmt.Errorf("%w: %d rows, window %d", ErrWindowTooLarge, data.Len(), window)
	}
	return data.Head(data.Len() - window), data.Tail(window + 1), nil
}

// AlignIntraday truncates the daily and intraday views pairwise to their
// common length and copies intraday RSI into the daily views as RSIi.
// Rows are matched by position: candle labels of the two resolutions differ.
func AlignIntraday(full, windowed, intraFull, intraWindowed *timeseries.Frame) (*timeseries.Frame, *timeseries.Frame, error) {
	full, intraFull = timeseries.Truncate(full, intraFull)
	windowed, intraWindowed = timeseries.Truncate(windowed, intraWindowed)

	for _, pair := range []struct{ dst, src *timeseries.Frame }{
		{full, intraFull},
		{windowed, intraWindowed},
	} {
		rsi := pair.src.Float(timeseries.RSI)
		if rsi == nil {
			continue
		}
		if err := pair.dst.SetFloat(timeseries.RSIi, rsi); err != nil {
			return nil, nil, fmt.Errorf("align intraday RSI: %w", err)
		}
	}
	return full, windowed, nil
}

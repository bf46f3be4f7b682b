package marketclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func clockAt(t time.Time, opts ...Option) *Clock {
	opts = append(opts, WithNow(func() time.Time { return t }))
	return New(ist, 9*time.Hour+15*time.Minute, 15*time.Hour+30*time.Minute, opts...)
}

func TestIsTradingTime(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", time.Date(2024, 6, 12, 9, 0, 0, 0, ist), false},
		{"at open", time.Date(2024, 6, 12, 9, 15, 0, 0, ist), true},
		{"midday", time.Date(2024, 6, 12, 12, 0, 0, 0, ist), true},
		{"after close", time.Date(2024, 6, 12, 15, 31, 0, 0, ist), false},
		{"saturday", time.Date(2024, 6, 15, 11, 0, 0, 0, ist), false},
		{"utc input converted", time.Date(2024, 6, 12, 5, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clockAt(tt.at).IsTradingTime())
		})
	}
}

func TestHolidayIsClosed(t *testing.T) {
	c := clockAt(time.Date(2024, 8, 15, 11, 0, 0, 0, ist), WithHolidays("2024-08-15"))
	assert.False(t, c.IsTradingTime())
	assert.Equal(t, time.Date(2024, 8, 14, 0, 0, 0, 0, ist), c.TradingDate())
}

func TestTradingDate(t *testing.T) {
	// Monday before the open still belongs to Friday's session.
	c := clockAt(time.Date(2024, 6, 10, 8, 0, 0, 0, ist))
	assert.Equal(t, time.Date(2024, 6, 7, 0, 0, 0, 0, ist), c.TradingDate())

	c = clockAt(time.Date(2024, 6, 10, 10, 0, 0, 0, ist))
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, ist), c.TradingDate())

	c = clockAt(time.Date(2024, 6, 9, 10, 0, 0, 0, ist))
	assert.Equal(t, time.Date(2024, 6, 7, 0, 0, 0, 0, ist), c.TradingDate())
}

func TestNthPastAndNextTradingDate(t *testing.T) {
	c := clockAt(time.Date(2024, 6, 11, 16, 0, 0, 0, ist)) // Tuesday

	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, ist), c.NthPastTradingDate(1))
	assert.Equal(t, time.Date(2024, 6, 7, 0, 0, 0, 0, ist), c.NthPastTradingDate(2))
	assert.Equal(t, time.Date(2024, 6, 11, 0, 0, 0, 0, ist), c.NthPastTradingDate(0))

	friday := time.Date(2024, 6, 7, 0, 0, 0, 0, ist)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, ist), c.NextTradingDate(friday))
}

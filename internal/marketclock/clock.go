package marketclock

import (
	"time"
)

// Clock answers trading-session questions for one exchange
// ⭐ SSOT: "is the market open" is decided here only
type Clock struct {
	loc      *time.Location
	open     time.Duration // offset from midnight
	close    time.Duration
	holidays map[string]struct{}
	now      func() time.Time
}

// Option customizes a Clock
type Option func(*Clock)

// WithNow overrides the wall clock (tests)
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// WithHolidays marks exchange holidays ("2006-01-02")
func WithHolidays(days ...string) Option {
	return func(c *Clock) {
		for _, d := range days {
			c.holidays[d] = struct{}{}
		}
	}
}

// NSE returns the clock of the primary exchange: 09:15 to 15:30 IST, Monday to Friday
func NSE(opts ...Option) *Clock {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	return New(loc, 9*time.Hour+15*time.Minute, 15*time.Hour+30*time.Minute, opts...)
}

// New creates a clock for an arbitrary session
func New(loc *time.Location, open, close time.Duration, opts ...Option) *Clock {
	c := &Clock{
		loc:      loc,
		open:     open,
		close:    close,
		holidays: make(map[string]struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location is the exchange time zone
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current time in the exchange's zone
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// IsTradingDay reports whether the exchange trades on t's calendar day
func (c *Clock) IsTradingDay(t time.Time) bool {
	t = t.In(c.loc)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	_, holiday := c.holidays[t.Format("2006-01-02")]
	return !holiday
}

// IsTradingTime reports whether the live session is currently open
func (c *Clock) IsTradingTime() bool {
	now := c.Now()
	if !c.IsTradingDay(now) {
		return false
	}
	offset := now.Sub(midnight(now))
	return offset >= c.open && offset <= c.close
}

// TradingDate returns the session whose data is current: today once the
// session has opened, otherwise the previous trading day.
func (c *Clock) TradingDate() time.Time {
	now := c.Now()
	day := midnight(now)
	if c.IsTradingDay(now) && now.Sub(day) >= c.open {
		return day
	}
	return c.previousTradingDay(day)
}

// NthPastTradingDate walks n sessions back from the current trading date
func (c *Clock) NthPastTradingDate(n int) time.Time {
	day := c.TradingDate()
	for i := 0; i < n; i++ {
		day = c.previousTradingDay(day)
	}
	return day
}

// NextTradingDate returns the first session after day
func (c *Clock) NextTradingDate(day time.Time) time.Time {
	next := midnight(day.In(c.loc)).AddDate(0, 0, 1)
	for !c.IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (c *Clock) previousTradingDay(day time.Time) time.Time {
	prev := day.AddDate(0, 0, -1)
	for !c.IsTradingDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

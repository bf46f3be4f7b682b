package portfolio

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/screener/internal/marketclock"
	"github.com/wonny/screener/internal/records"
	"github.com/wonny/screener/internal/results"
)

const dateLayout = "2006-01-02"

// Entry is one ledger line
type Entry struct {
	Date         string  `json:"date"`
	Ticker       string  `json:"ticker"`
	LTP          float64 `json:"ltp"`
	Quantity     int     `json:"quantity"` // 1 buy, -1 sell, 0 hold
	Growth       float64 `json:"growth"`
	RunningTotal float64 `json:"running_total"`
	Profits      float64 `json:"profits"`
}

// Investment is the signed cash of the entry
func (e Entry) Investment() float64 {
	return e.LTP * float64(e.Quantity)
}

// Action renders the entry direction
func (e Entry) Action() string {
	switch {
	case e.Quantity > 0:
		return "[+]"
	case e.Quantity < 0:
		return "[-]"
	default:
		return "[0]"
	}
}

// Portfolio simulates buying every matched ticker at its screening close
// and selling it on the first horizon whose realized price falls
// ⭐ SSOT: portfolio ledger arithmetic lives here only
type Portfolio struct {
	Name string

	ledger   map[string][]Entry
	holdings map[string]struct{}
}

// New creates an empty portfolio
func New(name string) *Portfolio {
	return &Portfolio{
		Name:     name,
		ledger:   make(map[string][]Entry),
		holdings: make(map[string]struct{}),
	}
}

// FromRows builds the ledger from result rows, walking the horizons in order.
// Rows without a realized price for a horizon are skipped for it.
func FromRows(name string, rows []results.Row, periods []int, clock *marketclock.Clock) *Portfolio {
	p := New(name)

	byTicker := firstRowPerTicker(rows)
	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for i, period := range periods {
		ltpKey, _ := records.HorizonKeys(period)
		prevKey := records.LTP
		if i > 0 {
			prevKey, _ = records.HorizonKeys(periods[i-1])
		}

		for _, ticker := range tickers {
			row := byTicker[ticker]
			realized, anchor := row.Float(ltpKey), row.Float(records.LTP)
			if realized == 0 || anchor == 0 {
				continue
			}

			rise := round2(realized - row.Float(prevKey))
			screened := row.Date.Format(dateLayout)
			later := sessionsAfter(clock, row.Date, period).Format(dateLayout)

			if p.Holds(ticker) {
				if rise < 0 {
					p.sell(Entry{Date: later, Ticker: ticker, LTP: realized, Quantity: -1, Growth: rise})
				} else {
					p.record(Entry{Date: later, Ticker: ticker, LTP: realized, Quantity: 0, Growth: rise})
				}
				continue
			}

			p.buy(Entry{Date: screened, Ticker: ticker, LTP: anchor, Quantity: 1})
			if rise < 0 {
				p.sell(Entry{Date: later, Ticker: ticker, LTP: realized, Quantity: -1, Growth: rise})
			}
		}
	}
	return p
}

// Holds reports whether the ticker is currently held
func (p *Portfolio) Holds(ticker string) bool {
	_, ok := p.holdings[ticker]
	return ok
}

func (p *Portfolio) buy(e Entry) {
	p.holdings[e.Ticker] = struct{}{}
	p.record(e)
}

func (p *Portfolio) sell(e Entry) {
	delete(p.holdings, e.Ticker)
	p.record(e)
}

func (p *Portfolio) record(e Entry) {
	p.ledger[e.Date] = append(p.ledger[e.Date], e)
}

func (p *Portfolio) dates() []string {
	dates := make([]string, 0, len(p.ledger))
	for d := range p.ledger {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Entries returns the ledger in date order with running totals
func (p *Portfolio) Entries() []Entry {
	var (
		out     []Entry
		running float64
		profits float64
	)
	for _, d := range p.dates() {
		for _, e := range p.ledger[d] {
			running += e.Investment()
			profits += e.Growth
			e.RunningTotal = round2(running)
			e.Profits = round2(profits)
			out = append(out, e)
		}
	}
	return out
}

// InitialValue is the signed value of the entries booked on the second
// ledger date. Ledgers with fewer than two dates have no initial value.
func (p *Portfolio) InitialValue() float64 {
	dates := p.dates()
	if len(dates) < 2 {
		return 0
	}
	var v float64
	for _, e := range p.ledger[dates[1]] {
		v += e.Investment()
	}
	return round2(v)
}

// CurrentValue is the net signed value of the whole ledger
func (p *Portfolio) CurrentValue() float64 {
	var v float64
	for _, entries := range p.ledger {
		for _, e := range entries {
			v += e.Investment()
		}
	}
	return round2(v)
}

// Profit is sale proceeds minus purchase cost, zero until both sides exist
func (p *Portfolio) Profit() float64 {
	var bought, sold float64
	for _, entries := range p.ledger {
		for _, e := range entries {
			switch {
			case e.Quantity > 0:
				bought += e.Investment()
			case e.Quantity < 0:
				sold += e.Investment()
			}
		}
	}
	if bought == 0 || sold == 0 {
		return 0
	}
	return round2(math.Abs(sold) - bought)
}

func firstRowPerTicker(rows []results.Row) map[string]results.Row {
	out := make(map[string]results.Row, len(rows))
	for _, r := range rows {
		if r.Fallback {
			continue
		}
		if cur, ok := out[r.Ticker]; !ok || r.Date.Before(cur.Date) {
			out[r.Ticker] = r
		}
	}
	return out
}

func sessionsAfter(clock *marketclock.Clock, day time.Time, n int) time.Time {
	for i := 0; i < n; i++ {
		day = clock.NextTradingDate(day)
	}
	return day
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

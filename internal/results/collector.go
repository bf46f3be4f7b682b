package results

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
)

// Store persists rows; the pgx Repository is the production implementation
type Store interface {
	Save(ctx context.Context, row Row) error
}

// Collector keeps the rows of recent runs in memory, fans them out to live
// subscribers and optionally persists them
// ⭐ SSOT: result rows are consumed through this collector only
type Collector struct {
	mu     sync.RWMutex
	runs   map[string][]Row
	order  []string
	subs   map[int]chan Row
	nextID int

	store  Store
	keep   int
	logger *logger.Logger
	now    func() time.Time
}

// NewCollector creates a collector that remembers the last keep runs.
// store may be nil.
func NewCollector(store Store, keep int, log *logger.Logger) *Collector {
	if keep <= 0 {
		keep = 10
	}
	return &Collector{
		runs:   make(map[string][]Row),
		subs:   make(map[int]chan Row),
		store:  store,
		keep:   keep,
		logger: log.WithField("module", "results"),
		now:    time.Now,
	}
}

// Consume implements contracts.ResultSink
func (c *Collector) Consume(ctx context.Context, runID string, m *contracts.Match) error {
	if m == nil {
		return nil
	}
	row := FromMatch(runID, m, c.now())

	c.mu.Lock()
	if _, ok := c.runs[runID]; !ok {
		c.order = append(c.order, runID)
		if len(c.order) > c.keep {
			delete(c.runs, c.order[0])
			c.order = c.order[1:]
		}
	}
	c.runs[runID] = append(c.runs[runID], row)
	for id, ch := range c.subs {
		select {
		case ch <- row:
		default:
			c.logger.WithField("subscriber", id).Debug("Subscriber lagging, row dropped")
		}
	}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, row); err != nil {
			return fmt.Errorf("persist %s: %w", row.Ticker, err)
		}
	}
	return nil
}

// Subscribe returns a channel of rows consumed from now on and a cancel func
func (c *Collector) Subscribe(buffer int) (<-chan Row, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Row, buffer)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Rows returns the rows of a run sorted by ticker
func (c *Collector) Rows(runID string) []Row {
	c.mu.RLock()
	rows := append([]Row(nil), c.runs[runID]...)
	c.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Ticker != rows[j].Ticker {
			return rows[i].Ticker < rows[j].Ticker
		}
		return rows[i].Window < rows[j].Window
	})
	return rows
}

// LatestRun returns the most recent run id
func (c *Collector) LatestRun() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.order) == 0 {
		return "", false
	}
	return c.order[len(c.order)-1], true
}

// Runs returns the remembered run ids, oldest first
func (c *Collector) Runs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

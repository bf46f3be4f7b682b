package results

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/timeseries"
	"github.com/wonny/screener/pkg/logger"
)

type memoryStore struct {
	mu   sync.Mutex
	rows []Row
	err  error
}

func (s *memoryStore) Save(_ context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, row)
	return nil
}

func match(t *testing.T, ticker string) *contracts.Match {
	t.Helper()
	idx := []time.Time{
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	}
	vals := []float64{1, 2}
	frame, err := timeseries.FromOHLCV(idx, vals, vals, vals, vals, vals)
	require.NoError(t, err)

	return &contracts.Match{
		Ticker:  ticker,
		Keys:    []string{"Stock", "LTP", "LTP1"},
		Display: map[string]any{"Stock": ticker, "LTP": "2.00", "LTP1": math.NaN()},
		Save:    map[string]any{"Stock": ticker, "LTP": 2.0, "LTP1": math.NaN()},
		Series:  frame,
	}
}

func TestFromMatch(t *testing.T) {
	row := FromMatch("run-1", match(t, "SBIN"), time.Unix(0, 0))

	assert.Equal(t, "SBIN", row.Ticker)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), row.Date)
	assert.Nil(t, row.Save["LTP1"])
	assert.Equal(t, 2.0, row.Float("LTP"))
	assert.Zero(t, row.Float("LTP1"))

	_, err := json.Marshal(row)
	assert.NoError(t, err)
}

func TestRowFloat(t *testing.T) {
	row := Row{Save: map[string]any{
		"f": 1.5, "i": 3, "s": "2.25", "bad": "x", "nan": math.NaN(),
	}}
	assert.Equal(t, 1.5, row.Float("f"))
	assert.Equal(t, 3.0, row.Float("i"))
	assert.Equal(t, 2.25, row.Float("s"))
	assert.Zero(t, row.Float("bad"))
	assert.Zero(t, row.Float("nan"))
	assert.Zero(t, row.Float("missing"))
}

func TestCollectorConsume(t *testing.T) {
	store := &memoryStore{}
	c := NewCollector(store, 2, logger.Nop())
	ctx := context.Background()

	require.NoError(t, c.Consume(ctx, "r1", match(t, "TCS")))
	require.NoError(t, c.Consume(ctx, "r1", match(t, "INFY")))
	require.NoError(t, c.Consume(ctx, "r1", nil))

	rows := c.Rows("r1")
	require.Len(t, rows, 2)
	assert.Equal(t, "INFY", rows[0].Ticker)
	assert.Equal(t, "TCS", rows[1].Ticker)
	assert.Len(t, store.rows, 2)

	latest, ok := c.LatestRun()
	require.True(t, ok)
	assert.Equal(t, "r1", latest)
}

func TestCollectorEvictsOldRuns(t *testing.T) {
	c := NewCollector(nil, 2, logger.Nop())
	ctx := context.Background()

	for _, run := range []string{"r1", "r2", "r3"} {
		require.NoError(t, c.Consume(ctx, run, match(t, "SBIN")))
	}

	assert.Equal(t, []string{"r2", "r3"}, c.Runs())
	assert.Empty(t, c.Rows("r1"))
}

func TestCollectorStoreError(t *testing.T) {
	c := NewCollector(&memoryStore{err: errors.New("db down")}, 1, logger.Nop())

	err := c.Consume(context.Background(), "r1", match(t, "SBIN"))
	require.Error(t, err)
	// the row is still served from memory
	assert.Len(t, c.Rows("r1"), 1)
}

func TestCollectorSubscribe(t *testing.T) {
	c := NewCollector(nil, 1, logger.Nop())
	rows, cancel := c.Subscribe(1)

	require.NoError(t, c.Consume(context.Background(), "r1", match(t, "SBIN")))
	// buffer full: dropped instead of blocking
	require.NoError(t, c.Consume(context.Background(), "r1", match(t, "TCS")))

	got := <-rows
	assert.Equal(t, "SBIN", got.Ticker)

	cancel()
	cancel()
	_, open := <-rows
	assert.False(t, open)
}

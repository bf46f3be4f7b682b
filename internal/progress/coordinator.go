package progress

import (
	"sync"

	"github.com/wonny/screener/pkg/metrics"
)

// Snapshot is a consistent read of both counters
type Snapshot struct {
	Started int `json:"started"`
	Matched int `json:"matched"`
}

// Coordinator holds the two run-wide counters
// ⭐ SSOT: progress bookkeeping only, never pipeline correctness
type Coordinator struct {
	mu      sync.Mutex
	started int
	matched int
	metrics *metrics.Registry
}

// New creates a coordinator; reg may be nil
func New(reg *metrics.Registry) *Coordinator {
	return &Coordinator{metrics: reg}
}

// IncStarted counts a ticker entering the pipeline
func (c *Coordinator) IncStarted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started++
	// set under the lock so the gauge never moves backwards
	if c.metrics != nil {
		c.metrics.Processed.Set(float64(c.started))
	}
	return c.started
}

// IncMatched counts a reportable ticker (or a completed download)
func (c *Coordinator) IncMatched() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matched++
	if c.metrics != nil {
		c.metrics.Matched.Set(float64(c.matched))
	}
	return c.matched
}

// Snapshot returns both counters read under one lock
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Started: c.started, Matched: c.matched}
}

// Reset zeroes both counters for a new run
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started, c.matched = 0, 0
	if c.metrics != nil {
		c.metrics.Processed.Set(0)
		c.metrics.Matched.Set(0)
		c.metrics.Percent.Set(0)
	}
}

// Percent returns started/total as a percentage. ok is false when the
// denominator is zero; callers suppress the display instead of failing.
func (c *Coordinator) Percent(total int) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	snap := c.Snapshot()
	pct := float64(snap.Started) / float64(total) * 100
	if c.metrics != nil {
		c.metrics.Percent.Set(pct)
	}
	return pct, true
}

// HitRate returns matched/started. ok is false before any ticker started.
func (c *Coordinator) HitRate() (float64, bool) {
	snap := c.Snapshot()
	if snap.Started == 0 {
		return 0, false
	}
	return float64(snap.Matched) / float64(snap.Started), true
}

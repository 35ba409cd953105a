// Package completion classifies finished runs and keeps the displayed completion count.
package completion

import (
	"math"
	"sync"
	"time"

	"github.com/verte-zerg/osutrack/internal/model"
)

// Counter combines the authoritative baseline with the live delta.
// One goroutine writes; any number may read.
type Counter struct {
	mu        sync.RWMutex
	baseline  model.Baseline
	ready     bool
	delta     int
	updatedAt time.Time
	now       func() time.Time
}

// NewCounter returns a Counter that is not ready until the first baseline.
func NewCounter() *Counter {
	return &Counter{now: time.Now}
}

// SetBaseline installs a new baseline and zeroes the live delta.
// The new baseline already includes whatever the delta counted.
func (c *Counter) SetBaseline(b model.Baseline) {
	if b.Completed < 0 {
		b.Completed = 0
	}
	if b.Total < 0 {
		b.Total = 0
	}
	b.Percentage = Percentage(b.Completed, b.Total)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseline = b
	c.delta = 0
	c.ready = true
	c.updatedAt = c.now()
}

// Increment records one new completion.
func (c *Counter) Increment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delta++
}

// Delta returns the completions counted since the last baseline.
func (c *Counter) Delta() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.delta
}

// Baseline returns the installed baseline and whether one exists.
func (c *Counter) Baseline() (model.Baseline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseline, c.ready
}

// Displayed returns baseline.completed + delta.
func (c *Counter) Displayed() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseline.Completed + c.delta
}

// Snapshot returns a consistent copy of the displayed values.
func (c *Counter) Snapshot() model.Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	completed := c.baseline.Completed + c.delta
	return model.Progress{
		Ready:      c.ready,
		Completed:  completed,
		Total:      c.baseline.Total,
		Percentage: Percentage(completed, c.baseline.Total),
		Delta:      c.delta,
		UpdatedAt:  c.updatedAt,
	}
}

// Percentage returns completed/total*100 rounded to one decimal and clamped to
// [0, 100], or 0 when total is 0.
func Percentage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(completed) / float64(total) * 100
	pct = math.Round(pct*10) / 10
	return math.Max(0, math.Min(100, pct))
}

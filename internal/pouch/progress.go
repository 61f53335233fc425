package pouch

import (
	"sync"
	"time"
)

// CategoryProgress is a point-in-time report of one category download.
type CategoryProgress struct {
	Category string
	Done     int
	Total    int
	Final    bool
}

// Percent returns completion as a value in [0, 100].
func (p CategoryProgress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return 100 * float64(p.Done) / float64(p.Total)
}

// ProgressFunc receives throttled progress reports during a download.
type ProgressFunc func(CategoryProgress)

// progressTracker counts completed fetches for one category and emits
// throttled reports. Reports are strictly ordered and monotonically
// non-decreasing; the final report is always emitted. The notify callback
// runs under the tracker lock and must not call back into the tracker.
type progressTracker struct {
	category string
	total    int
	clock    Clock
	every    time.Duration
	notify   ProgressFunc

	mu       sync.Mutex
	done     int
	lastEmit time.Time
}

func newProgressTracker(category string, total int, clock Clock, every time.Duration, notify ProgressFunc) *progressTracker {
	return &progressTracker{category: category, total: total, clock: clock, every: every, notify: notify}
}

// step records one completed fetch. A report is emitted on the first step,
// whenever the throttle interval has elapsed, and on the final step.
func (t *progressTracker) step() CategoryProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done++
	p := CategoryProgress{Category: t.category, Done: t.done, Total: t.total, Final: t.done >= t.total}

	now := t.clock.Now()
	if p.Final || t.lastEmit.IsZero() || now.Sub(t.lastEmit) >= t.every {
		t.lastEmit = now
		if t.notify != nil {
			t.notify(p)
		}
	}
	return p
}

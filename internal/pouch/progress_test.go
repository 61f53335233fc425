package pouch

import (
	"sync"
	"testing"
	"time"
)

// tickClock is a manually advanced clock local to in-package tests.
type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickClock() *tickClock {
	return &tickClock{now: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *tickClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestProgressTracker_EmitsFirstAndFinal(t *testing.T) {
	clock := newTickClock()
	var reports []CategoryProgress
	tracker := newProgressTracker("Farm", 3, clock, time.Hour, func(p CategoryProgress) {
		reports = append(reports, p)
	})

	// Clock never advances, so only the first and final steps get through
	// the throttle.
	tracker.step()
	tracker.step()
	tracker.step()

	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].Done != 1 {
		t.Errorf("first report Done = %d, want 1", reports[0].Done)
	}
	if !reports[1].Final || reports[1].Done != 3 {
		t.Errorf("final report = %+v, want Final with Done=3", reports[1])
	}
}

func TestProgressTracker_ThrottleElapsed(t *testing.T) {
	clock := newTickClock()
	var reports []CategoryProgress
	tracker := newProgressTracker("Farm", 4, clock, 150*time.Millisecond, func(p CategoryProgress) {
		reports = append(reports, p)
	})

	tracker.step() // emitted: first
	tracker.step() // suppressed
	clock.Advance(200 * time.Millisecond)
	tracker.step() // emitted: interval elapsed
	tracker.step() // emitted: final

	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	want := []int{1, 3, 4}
	for i, p := range reports {
		if p.Done != want[i] {
			t.Errorf("report %d Done = %d, want %d", i, p.Done, want[i])
		}
	}
}

func TestProgressTracker_Monotonic(t *testing.T) {
	clock := newTickClock()
	var reports []CategoryProgress
	tracker := newProgressTracker("Arctic", 50, clock, time.Millisecond, func(p CategoryProgress) {
		reports = append(reports, p)
	})

	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				tracker.step()
				clock.Advance(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if len(reports) == 0 {
		t.Fatal("no reports emitted")
	}
	for i := 1; i < len(reports); i++ {
		if reports[i].Done < reports[i-1].Done {
			t.Fatalf("report %d went backwards: %d after %d", i, reports[i].Done, reports[i-1].Done)
		}
	}
	last := reports[len(reports)-1]
	if !last.Final || last.Done != 50 {
		t.Errorf("last report = %+v, want Final with Done=50", last)
	}
}

func TestCategoryProgress_Percent(t *testing.T) {
	tests := []struct {
		name string
		p    CategoryProgress
		want float64
	}{
		{name: "halfway", p: CategoryProgress{Done: 40, Total: 80}, want: 50},
		{name: "complete", p: CategoryProgress{Done: 80, Total: 80}, want: 100},
		{name: "empty total counts as complete", p: CategoryProgress{Done: 0, Total: 0}, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Percent(); got != tt.want {
				t.Errorf("Percent() = %v, want %v", got, tt.want)
			}
		})
	}
}

package completion

import (
	"math"
	"testing"

	"github.com/verte-zerg/osutrack/internal/model"
)

func TestCounterNotReadyBeforeBaseline(t *testing.T) {
	c := NewCounter()
	snap := c.Snapshot()
	if snap.Ready {
		t.Fatalf("expected counter to be not ready before the first baseline")
	}
	if snap.Percentage != 0 {
		t.Fatalf("expected 0%% without a total, got %.2f", snap.Percentage)
	}
}

func TestCounterDisplayedAddsDelta(t *testing.T) {
	c := NewCounter()
	c.SetBaseline(model.Baseline{Completed: 100, Total: 1000})
	c.Increment()
	c.Increment()

	snap := c.Snapshot()
	if !snap.Ready || snap.Completed != 102 || snap.Delta != 2 || snap.Total != 1000 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if math.Abs(snap.Percentage-10.2) > 1e-9 {
		t.Fatalf("expected 10.2%%, got %v", snap.Percentage)
	}
	if c.Displayed() != 102 {
		t.Fatalf("expected displayed 102, got %d", c.Displayed())
	}
}

func TestCounterSetBaselineResetsDelta(t *testing.T) {
	c := NewCounter()
	c.SetBaseline(model.Baseline{Completed: 10, Total: 20})
	for i := 0; i < 5; i++ {
		c.Increment()
	}
	c.SetBaseline(model.Baseline{Completed: 12, Total: 20})

	if c.Delta() != 0 {
		t.Fatalf("expected delta reset to 0, got %d", c.Delta())
	}
	if c.Displayed() != 12 {
		t.Fatalf("expected displayed to follow new baseline, got %d", c.Displayed())
	}
}

func TestCounterRecomputesUntrustedPercentage(t *testing.T) {
	c := NewCounter()
	c.SetBaseline(model.Baseline{Completed: 50, Total: 200, Percentage: 99})
	b, ok := c.Baseline()
	if !ok || b.Percentage != 25 {
		t.Fatalf("expected locally computed 25%%, got %+v", b)
	}
}

func TestPercentageClamps(t *testing.T) {
	cases := []struct {
		completed, total int
		want             float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 4, 25},
		{1, 3, 33.3},
		{101, 1000, 10.1},
		{150, 100, 100},
		{-3, 100, 0},
	}
	for _, tc := range cases {
		if got := Percentage(tc.completed, tc.total); got != tc.want {
			t.Fatalf("Percentage(%d, %d) = %v, want %v", tc.completed, tc.total, got, tc.want)
		}
	}
}

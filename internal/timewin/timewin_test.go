package timewin

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 1, hour, min, 0, 0, time.UTC)
}

func TestOverlapsSymmetry(t *testing.T) {
	cases := []struct {
		name                   string
		aStart, aEnd           time.Time
		bStart, bEnd           time.Time
		want                   bool
	}{
		{"contained", at(10, 0), at(12, 0), at(10, 30), at(11, 0), true},
		{"partial", at(10, 0), at(11, 0), at(10, 30), at(11, 30), true},
		{"identical", at(10, 0), at(11, 0), at(10, 0), at(11, 0), true},
		{"disjoint", at(8, 0), at(9, 0), at(10, 0), at(11, 0), false},
		{"touching", at(10, 0), at(11, 0), at(11, 0), at(12, 0), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd)
			if got != tc.want {
				t.Errorf("Overlaps(a, b) = %v, want %v", got, tc.want)
			}
			// Overlap is symmetric regardless of argument order.
			if rev := Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); rev != got {
				t.Errorf("Overlaps(b, a) = %v, want %v", rev, got)
			}
		})
	}
}

func TestSlotsInWindow(t *testing.T) {
	cases := []struct {
		name           string
		open, close    int
		duration, want int
	}{
		{"full day hourly", 8 * 60, 20 * 60, 60, 12},
		{"partial slot dropped", 9 * 60, 10*60 + 30, 60, 1},
		{"closed day", 0, 0, 60, 0},
		{"inverted window", 20 * 60, 8 * 60, 60, 0},
		{"zero duration", 8 * 60, 20 * 60, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SlotsInWindow(tc.open, tc.close, tc.duration); got != tc.want {
				t.Errorf("SlotsInWindow(%d, %d, %d) = %d, want %d", tc.open, tc.close, tc.duration, got, tc.want)
			}
		})
	}
}

func TestMinSlotDuration(t *testing.T) {
	if got := MinSlotDuration([]int{90, 60, 120}); got != 60 {
		t.Errorf("MinSlotDuration = %d, want 60", got)
	}
	if got := MinSlotDuration([]int{0, -30, 45}); got != 45 {
		t.Errorf("MinSlotDuration with junk values = %d, want 45", got)
	}
	if got := MinSlotDuration(nil); got != 0 {
		t.Errorf("MinSlotDuration(nil) = %d, want 0", got)
	}
}

func TestOccupancyPercentBounds(t *testing.T) {
	cases := []struct {
		name              string
		booked, available int
		want              float64
	}{
		{"empty", 0, 12, 0},
		{"third", 4, 12, 33.33},
		{"full", 12, 12, 100},
		{"overbooked clamps", 20, 12, 100},
		{"no supply", 5, 0, 0},
		{"negative supply", 5, -1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := OccupancyPercent(tc.booked, tc.available)
			if got != tc.want {
				t.Errorf("OccupancyPercent(%d, %d) = %v, want %v", tc.booked, tc.available, got, tc.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("OccupancyPercent out of bounds: %v", got)
			}
		})
	}
}

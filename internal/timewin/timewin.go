// Package timewin holds the interval arithmetic shared by the booking
// validator, the slot blocking engine, and the occupancy aggregator.
package timewin

import (
	"math"
	"time"
)

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not overlap, so a
// booking ending at 10:00 never conflicts with one starting at 10:00.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// SlotsInWindow returns how many whole slots of slotDuration minutes fit
// between openMinutes and closeMinutes (minutes since midnight). A closed
// or inverted window yields zero.
func SlotsInWindow(openMinutes, closeMinutes, slotDurationMinutes int) int {
	if slotDurationMinutes <= 0 || closeMinutes <= openMinutes {
		return 0
	}
	return (closeMinutes - openMinutes) / slotDurationMinutes
}

// MinSlotDuration picks the duration used for availability counting when a
// court offers several slot lengths. The minimum maximizes the reported
// number of available slots.
func MinSlotDuration(durations []int) int {
	min := 0
	for _, d := range durations {
		if d <= 0 {
			continue
		}
		if min == 0 || d < min {
			min = d
		}
	}
	return min
}

// OccupancyPercent converts booked/available counts into a percentage
// clamped to [0, 100] and rounded to two decimals. Zero availability is
// reported as zero occupancy rather than dividing by zero.
func OccupancyPercent(bookedCount, availableCount int) float64 {
	if availableCount <= 0 {
		return 0
	}
	pct := float64(bookedCount) / float64(availableCount) * 100
	if pct > 100 {
		return 100
	}
	return math.Round(pct*100) / 100
}

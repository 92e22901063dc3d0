// internal/booking/resolver.go
package booking

import (
	"context"
	"fmt"
	"time"
)

const (
	maxSameDaySuggestions = 3
	probeOffsetHours      = 6
)

type SuggestedSlot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type Resolution struct {
	HasConflicts   bool            `json:"has_conflicts"`
	Conflicts      []Conflict      `json:"conflicts"`
	SuggestedTimes []SuggestedSlot `json:"suggested_times"`
}

type ConflictResolver struct {
	validator *Validator
}

func NewConflictResolver(validator *Validator) *ConflictResolver {
	return &ConflictResolver{validator: validator}
}

// Resolve reports the conflicts for a requested slot and, when there are
// any, probes for alternatives: same-day candidates at +1h..+6h from the
// original start (keeping the original duration, first three that are
// conflict-free), plus one next-day candidate at the same time of day.
// Suggestions come back in probe order.
func (r *ConflictResolver) Resolve(ctx context.Context, facilityID int64, startTime, endTime time.Time, excludeBookingID int64) (Resolution, error) {
	conflicts, err := r.validator.CheckConflicts(ctx, facilityID, startTime, endTime, excludeBookingID)
	if err != nil {
		return Resolution{}, err
	}

	resolution := Resolution{
		HasConflicts:   len(conflicts) > 0,
		Conflicts:      conflicts,
		SuggestedTimes: []SuggestedSlot{},
	}
	if !resolution.HasConflicts {
		return resolution, nil
	}

	duration := endTime.Sub(startTime)

	for offset := 1; offset <= probeOffsetHours; offset++ {
		if len(resolution.SuggestedTimes) >= maxSameDaySuggestions {
			break
		}
		candidateStart := startTime.Add(time.Duration(offset) * time.Hour)
		candidateEnd := candidateStart.Add(duration)

		free, err := r.slotFree(ctx, facilityID, candidateStart, candidateEnd, excludeBookingID)
		if err != nil {
			return Resolution{}, err
		}
		if free {
			resolution.SuggestedTimes = append(resolution.SuggestedTimes, SuggestedSlot{
				StartTime: candidateStart,
				EndTime:   candidateEnd,
			})
		}
	}

	nextDayStart := startTime.AddDate(0, 0, 1)
	nextDayEnd := nextDayStart.Add(duration)
	free, err := r.slotFree(ctx, facilityID, nextDayStart, nextDayEnd, excludeBookingID)
	if err != nil {
		return Resolution{}, err
	}
	if free {
		resolution.SuggestedTimes = append(resolution.SuggestedTimes, SuggestedSlot{
			StartTime: nextDayStart,
			EndTime:   nextDayEnd,
		})
	}

	return resolution, nil
}

func (r *ConflictResolver) slotFree(ctx context.Context, facilityID int64, start, end time.Time, excludeBookingID int64) (bool, error) {
	conflicts, err := r.validator.CheckConflicts(ctx, facilityID, start, end, excludeBookingID)
	if err != nil {
		return false, fmt.Errorf("probing alternative slot: %w", err)
	}
	return len(conflicts) == 0, nil
}

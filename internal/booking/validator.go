// Package booking implements the request-side booking engine: stateless
// validation, conflict detection, abuse heuristics, and alternative-slot
// resolution. Trust-level gating lives in the trust package.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rallyworks/courtguard/internal/db"
	"github.com/rallyworks/courtguard/internal/timewin"
)

const (
	minLeadTime = 30 * time.Minute
	maxHorizon  = 365 * 24 * time.Hour
	minDuration = 30 * time.Minute
	maxDuration = 8 * time.Hour

	earliestHour = 6
	latestHour   = 22
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	namePattern  = regexp.MustCompile(`^[\p{L}][\p{L}\s]*$`)
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type ValidateRequest struct {
	FacilityID int64     `json:"facility_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
}

// ValidationResult collects every violated rule. Warnings never block.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Conflict is an existing booking overlapping a requested interval,
// returned in full so the caller can display it.
type Conflict struct {
	BookingID int64            `json:"booking_id"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Status    db.BookingStatus `json:"status"`
	Email     string           `json:"email"`
	Name      string           `json:"name"`
}

type Validator struct {
	queries *db.Queries
	clock   Clock
}

func NewValidator(queries *db.Queries, clock Clock) *Validator {
	if clock == nil {
		clock = realClock{}
	}
	return &Validator{queries: queries, clock: clock}
}

// Validate runs every rule and collects all violations rather than
// stopping at the first. Missing required fields are the one exception:
// the remaining checks would be meaningless, so they short-circuit.
func (v *Validator) Validate(ctx context.Context, req ValidateRequest) (ValidationResult, error) {
	result := ValidationResult{Errors: []string{}, Warnings: []string{}}

	if missing := requiredFieldErrors(req); len(missing) > 0 {
		result.Errors = missing
		return result, nil
	}

	now := v.clock.Now()

	if req.StartTime.Before(now.Add(minLeadTime)) {
		result.Errors = append(result.Errors, "booking must start at least 30 minutes from now")
	}
	if req.StartTime.After(now.Add(maxHorizon)) {
		result.Errors = append(result.Errors, "booking cannot be more than 365 days in advance")
	}
	if !req.StartTime.Before(req.EndTime) {
		result.Errors = append(result.Errors, "start time must be before end time")
	} else {
		duration := req.EndTime.Sub(req.StartTime)
		if duration < minDuration {
			result.Errors = append(result.Errors, "booking must be at least 30 minutes long")
		}
		if duration > maxDuration {
			result.Errors = append(result.Errors, "booking cannot be longer than 8 hours")
		}
	}

	if req.StartTime.Hour() < earliestHour || req.EndTime.Hour() > latestHour {
		result.Warnings = append(result.Warnings, "booking is outside usual business hours (06:00-22:00)")
	}
	if wd := req.StartTime.Weekday(); wd == time.Saturday || wd == time.Sunday {
		result.Warnings = append(result.Warnings, "weekend bookings may have different availability")
	}

	if !emailPattern.MatchString(req.Email) {
		result.Errors = append(result.Errors, "email address is not valid")
	}
	trimmedName := strings.TrimSpace(req.Name)
	if len([]rune(trimmedName)) < 2 || !namePattern.MatchString(trimmedName) {
		result.Errors = append(result.Errors, "name must be at least 2 letters and contain only letters and spaces")
	}

	facility, err := v.queries.GetFacilityByID(ctx, req.FacilityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result.Errors = append(result.Errors, "facility not found")
		} else {
			return ValidationResult{}, fmt.Errorf("looking up facility: %w", err)
		}
	} else if facility.OrganizationID == 0 {
		result.Errors = append(result.Errors, "facility has no owning organization")
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}

func requiredFieldErrors(req ValidateRequest) []string {
	var missing []string
	if req.FacilityID == 0 {
		missing = append(missing, "facility is required")
	}
	if req.StartTime.IsZero() {
		missing = append(missing, "start time is required")
	}
	if req.EndTime.IsZero() {
		missing = append(missing, "end time is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name is required")
	}
	return missing
}

// CheckConflicts returns the existing pending/confirmed bookings at the
// facility overlapping [startTime, endTime). excludeBookingID skips one
// booking for reschedule checks; pass 0 to skip none.
func (v *Validator) CheckConflicts(ctx context.Context, facilityID int64, startTime, endTime time.Time, excludeBookingID int64) ([]Conflict, error) {
	rows, err := v.queries.ListConflictingBookings(ctx, db.ListConflictingBookingsParams{
		FacilityID: facilityID,
		StartTime:  startTime,
		EndTime:    endTime,
		ExcludeID:  excludeBookingID,
	})
	if err != nil {
		return nil, fmt.Errorf("querying conflicting bookings: %w", err)
	}

	conflicts := make([]Conflict, 0, len(rows))
	for _, b := range rows {
		// The SQL overlap filter and the interval contract must agree.
		if !timewin.Overlaps(b.StartTime, b.EndTime, startTime, endTime) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			BookingID: b.ID,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Status:    b.Status,
			Email:     b.Email,
			Name:      b.Name,
		})
	}
	return conflicts, nil
}

// internal/booking/abuse.go
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rallyworks/courtguard/internal/db"
)

const (
	velocityWindow       = time.Hour
	velocityThreshold    = 3
	cancellationWindow   = 24 * time.Hour
	cancellationMaxCount = 5
)

// disposableEmails are placeholder addresses with near-zero
// false-positive risk; matches are blocked outright.
var disposableEmails = map[string]struct{}{
	"test@test.com":       {},
	"test@example.com":    {},
	"fake@fake.com":       {},
	"admin@admin.com":     {},
	"user@user.com":       {},
	"spam@spam.com":       {},
	"noreply@noreply.com": {},
}

// suspiciousNameTokens only flag for review; legitimate users do get
// unlucky substrings.
var suspiciousNameTokens = []string{"test", "fake", "spam", "admin", "user"}

type Severity string

const (
	SeverityNone   Severity = ""
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type AbuseResult struct {
	IsAbuse  bool     `json:"is_abuse"`
	Reason   string   `json:"reason,omitempty"`
	Severity Severity `json:"severity,omitempty"`
	Blocked  bool     `json:"blocked"`
}

type AbuseCheckInput struct {
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	FacilityID int64     `json:"facility_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

type AbuseDetector struct {
	queries *db.Queries
	clock   Clock
}

func NewAbuseDetector(queries *db.Queries, clock Clock) *AbuseDetector {
	if clock == nil {
		clock = realClock{}
	}
	return &AbuseDetector{queries: queries, clock: clock}
}

// Detect evaluates an ordered decision list; the first matching rule
// wins. Blocking is reserved for patterns with near-zero false-positive
// risk (velocity, exact duplication, known-bad identity); softer signals
// are advisory only.
func (d *AbuseDetector) Detect(ctx context.Context, input AbuseCheckInput) (AbuseResult, error) {
	now := d.clock.Now()
	email := strings.ToLower(strings.TrimSpace(input.Email))

	recent, err := d.queries.CountRecentBookingsByEmail(ctx, email, now.Add(-velocityWindow))
	if err != nil {
		return AbuseResult{}, fmt.Errorf("counting recent bookings: %w", err)
	}
	if recent >= velocityThreshold {
		d.logDetection(ctx, email, "booking_velocity", SeverityHigh, true)
		return AbuseResult{
			IsAbuse:  true,
			Reason:   fmt.Sprintf("%d bookings in the last hour", recent),
			Severity: SeverityHigh,
			Blocked:  true,
		}, nil
	}

	duplicate, err := d.queries.HasDuplicateBooking(ctx, db.DuplicateBookingParams{
		FacilityID: input.FacilityID,
		Email:      email,
		StartTime:  input.StartTime,
		EndTime:    input.EndTime,
	})
	if err != nil {
		return AbuseResult{}, fmt.Errorf("checking duplicate booking: %w", err)
	}
	if duplicate {
		d.logDetection(ctx, email, "duplicate_booking", SeverityMedium, true)
		return AbuseResult{
			IsAbuse:  true,
			Reason:   "identical booking already exists",
			Severity: SeverityMedium,
			Blocked:  true,
		}, nil
	}

	cancellations, err := d.queries.CountRecentCancellationsByEmail(ctx, email, now.Add(-cancellationWindow))
	if err != nil {
		return AbuseResult{}, fmt.Errorf("counting recent cancellations: %w", err)
	}
	if cancellations >= cancellationMaxCount {
		d.logDetection(ctx, email, "cancellation_pattern", SeverityMedium, false)
		return AbuseResult{
			IsAbuse:  true,
			Reason:   fmt.Sprintf("%d cancellations in the last 24 hours", cancellations),
			Severity: SeverityMedium,
			Blocked:  false,
		}, nil
	}

	if hour := input.StartTime.Hour(); hour < earliestHour || hour > latestHour {
		d.logDetection(ctx, email, "unusual_hours", SeverityMedium, false)
		return AbuseResult{
			IsAbuse:  true,
			Reason:   "booking requested outside usual hours",
			Severity: SeverityMedium,
			Blocked:  false,
		}, nil
	}

	if _, ok := disposableEmails[email]; ok {
		d.logDetection(ctx, email, "disposable_email", SeverityHigh, true)
		return AbuseResult{
			IsAbuse:  true,
			Reason:   "known placeholder email address",
			Severity: SeverityHigh,
			Blocked:  true,
		}, nil
	}

	name := strings.ToLower(input.Name)
	for _, token := range suspiciousNameTokens {
		if strings.Contains(name, token) {
			d.logDetection(ctx, email, "suspicious_name", SeverityMedium, false)
			return AbuseResult{
				IsAbuse:  true,
				Reason:   fmt.Sprintf("name contains suspicious token %q", token),
				Severity: SeverityMedium,
				Blocked:  false,
			}, nil
		}
	}

	return AbuseResult{IsAbuse: false}, nil
}

func (d *AbuseDetector) logDetection(ctx context.Context, email, rule string, severity Severity, blocked bool) {
	log.Ctx(ctx).Warn().
		Str("event", "abuse_detected").
		Str("rule", rule).
		Str("severity", string(severity)).
		Bool("blocked", blocked).
		Str("email", maskEmail(email)).
		Msg("Abuse heuristic matched")
}

func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 2 {
		return "***"
	}
	return email[:2] + "***" + email[at:]
}

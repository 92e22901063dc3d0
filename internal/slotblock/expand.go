// Package slotblock expands admin-submitted exclusion rules into concrete
// per-date block rows and guards them with organization-owner access
// checks.
package slotblock

import (
	"errors"
	"fmt"
	"time"

	"github.com/rallyworks/courtguard/internal/db"
)

// weekdaysCap bounds open-ended weekday expansion to one year from the
// first occurrence.
const weekdaysCap = 365 * 24 * time.Hour

var validReasons = map[string]struct{}{
	"tournament":    {},
	"maintenance":   {},
	"lessons":       {},
	"rain":          {},
	"rain_override": {},
	"other":         {},
}

var (
	ErrEndDateRequired = errors.New("recurring end date is required for weekly and custom blocks")
	ErrInvalidInterval = errors.New("block start must be before block end")
	ErrNoCourts        = errors.New("at least one court is required")
)

// Rule is one user-submitted block request before expansion.
type Rule struct {
	CourtIDs         []int64          `json:"court_ids"`
	StartTime        time.Time        `json:"start_time"`
	EndTime          time.Time        `json:"end_time"`
	Reason           string           `json:"reason"`
	RecurringType    db.RecurringType `json:"recurring_type,omitempty"` // "", weekly, weekdays, custom
	RecurringEndDate *time.Time       `json:"recurring_end_date,omitempty"`
}

// Occurrence is one concrete block window produced by expansion.
type Occurrence struct {
	StartTime time.Time
	EndTime   time.Time
	DayOfWeek time.Weekday
}

func (r Rule) validate() error {
	if len(r.CourtIDs) == 0 {
		return ErrNoCourts
	}
	if !r.StartTime.Before(r.EndTime) {
		return ErrInvalidInterval
	}
	if _, ok := validReasons[r.Reason]; !ok {
		return fmt.Errorf("unknown block reason %q", r.Reason)
	}
	switch r.RecurringType {
	case "", db.RecurringWeekdays:
	case db.RecurringWeekly, db.RecurringCustom:
		if r.RecurringEndDate == nil {
			return ErrEndDateRequired
		}
	default:
		return fmt.Errorf("unknown recurring type %q", r.RecurringType)
	}
	return nil
}

// ExpandRule turns one rule into its concrete occurrences. Each expanded
// occurrence becomes an independent row deletable on its own.
func ExpandRule(rule Rule) ([]Occurrence, error) {
	if err := rule.validate(); err != nil {
		return nil, err
	}

	switch rule.RecurringType {
	case "":
		return []Occurrence{{
			StartTime: rule.StartTime,
			EndTime:   rule.EndTime,
			DayOfWeek: rule.StartTime.Weekday(),
		}}, nil
	case db.RecurringWeekly, db.RecurringCustom:
		// "custom" currently behaves exactly like weekly; the distinct
		// type is preserved in storage pending a real definition.
		return expandWeekly(rule), nil
	case db.RecurringWeekdays:
		return expandWeekdays(rule), nil
	default:
		return nil, fmt.Errorf("unknown recurring type %q", rule.RecurringType)
	}
}

// expandWeekly walks day by day from the start date through the end date
// inclusive, emitting an occurrence whenever the weekday matches the
// original start's weekday, with the original clock times copied onto
// that date.
func expandWeekly(rule Rule) []Occurrence {
	targetDay := rule.StartTime.Weekday()
	endDate := *rule.RecurringEndDate

	var occurrences []Occurrence
	for day := rule.StartTime; !dateAfter(day, endDate); day = day.AddDate(0, 0, 1) {
		if day.Weekday() != targetDay {
			continue
		}
		occurrences = append(occurrences, occurrenceOn(day, rule))
	}
	return occurrences
}

// expandWeekdays advances to the first Mon-Fri on or after the start,
// then emits one occurrence per weekday for up to a year.
func expandWeekdays(rule Rule) []Occurrence {
	first := rule.StartTime
	for !isWeekday(first.Weekday()) {
		first = first.AddDate(0, 0, 1)
	}
	limit := first.Add(weekdaysCap)

	var occurrences []Occurrence
	for day := first; day.Before(limit); day = day.AddDate(0, 0, 1) {
		if !isWeekday(day.Weekday()) {
			continue
		}
		occurrences = append(occurrences, occurrenceOn(day, rule))
	}
	return occurrences
}

func isWeekday(d time.Weekday) bool {
	return d != time.Saturday && d != time.Sunday
}

// occurrenceOn places the rule's start/end clock times onto day's date.
func occurrenceOn(day time.Time, rule Rule) Occurrence {
	start := time.Date(day.Year(), day.Month(), day.Day(),
		rule.StartTime.Hour(), rule.StartTime.Minute(), 0, 0, rule.StartTime.Location())
	end := time.Date(day.Year(), day.Month(), day.Day(),
		rule.EndTime.Hour(), rule.EndTime.Minute(), 0, 0, rule.EndTime.Location())
	return Occurrence{StartTime: start, EndTime: end, DayOfWeek: day.Weekday()}
}

// dateAfter reports whether a's calendar date is strictly after b's.
func dateAfter(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}

package booking

import (
	"context"
	"testing"
	"time"

	"github.com/rallyworks/courtguard/internal/db"
	"github.com/rallyworks/courtguard/internal/testutil"
)

func TestResolveNoConflicts(t *testing.T) {
	database := testutil.NewTestDB(t)
	facility := seedFacility(t, database)
	clock := &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	r := NewConflictResolver(NewValidator(database.Q(), clock))

	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	resolution, err := r.Resolve(context.Background(), facility.ID, start, start.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolution.HasConflicts {
		t.Error("HasConflicts = true on empty facility")
	}
	if len(resolution.SuggestedTimes) != 0 {
		t.Errorf("suggestions = %v, want none without conflicts", resolution.SuggestedTimes)
	}
}

func TestResolveSuggestsAlternatives(t *testing.T) {
	database := testutil.NewTestDB(t)
	facility := seedFacility(t, database)
	clock := &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	r := NewConflictResolver(NewValidator(database.Q(), clock))
	ctx := context.Background()

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seedBooking(t, database, facility.ID, "other@example.com",
		day.Add(10*time.Hour+30*time.Minute), day.Add(11*time.Hour+30*time.Minute), db.BookingConfirmed)

	// Request 10:00-11:00 against the confirmed 10:30-11:30 booking.
	start := day.Add(10 * time.Hour)
	resolution, err := r.Resolve(ctx, facility.ID, start, start.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resolution.HasConflicts {
		t.Fatal("HasConflicts = false, want true")
	}
	if len(resolution.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(resolution.Conflicts))
	}

	// Probes run 11:00..16:00; 11:00 overlaps the existing 10:30-11:30
	// booking, so the same-day picks are 12:00, 13:00, 14:00 plus the
	// next-day 10:00 candidate, in probe order.
	want := []time.Time{
		day.Add(12 * time.Hour),
		day.Add(13 * time.Hour),
		day.Add(14 * time.Hour),
		day.AddDate(0, 0, 1).Add(10 * time.Hour),
	}
	if len(resolution.SuggestedTimes) != len(want) {
		t.Fatalf("suggestions = %d, want %d: %+v", len(resolution.SuggestedTimes), len(want), resolution.SuggestedTimes)
	}
	for i, slot := range resolution.SuggestedTimes {
		if !slot.StartTime.Equal(want[i]) {
			t.Errorf("suggestion[%d] = %v, want %v", i, slot.StartTime, want[i])
		}
		if !slot.EndTime.Equal(want[i].Add(time.Hour)) {
			t.Errorf("suggestion[%d] end = %v, want original duration kept", i, slot.EndTime)
		}
	}
}

func TestResolveSkipsBookedAlternatives(t *testing.T) {
	database := testutil.NewTestDB(t)
	facility := seedFacility(t, database)
	clock := &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	r := NewConflictResolver(NewValidator(database.Q(), clock))

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	// Fill 10:00 through 15:00 and the next-day slot.
	for hour := 10; hour < 15; hour++ {
		seedBooking(t, database, facility.ID, "busy@example.com",
			day.Add(time.Duration(hour)*time.Hour), day.Add(time.Duration(hour+1)*time.Hour), db.BookingConfirmed)
	}
	nextDay := day.AddDate(0, 0, 1)
	seedBooking(t, database, facility.ID, "busy@example.com",
		nextDay.Add(10*time.Hour), nextDay.Add(11*time.Hour), db.BookingConfirmed)

	start := day.Add(10 * time.Hour)
	resolution, err := r.Resolve(context.Background(), facility.ID, start, start.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Only 15:00 and 16:00 survive the same-day probes; the next-day
	// candidate is taken too.
	want := []time.Time{
		day.Add(15 * time.Hour),
		day.Add(16 * time.Hour),
	}
	if len(resolution.SuggestedTimes) != len(want) {
		t.Fatalf("suggestions = %+v, want starts %v", resolution.SuggestedTimes, want)
	}
	for i, slot := range resolution.SuggestedTimes {
		if !slot.StartTime.Equal(want[i]) {
			t.Errorf("suggestion[%d] = %v, want %v", i, slot.StartTime, want[i])
		}
	}
}

package occupancy

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rallyworks/courtguard/internal/db"
	"github.com/rallyworks/courtguard/internal/testutil"
)

type fixture struct {
	db       *db.DB
	agg      *Aggregator
	facility db.Facility
	court    db.Court
}

// newFixture seeds one facility open 09:00-17:00 every day with a single
// 60-minute-slot court.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	q := database.Q()

	org, err := q.CreateOrganization(ctx, "Rally Sports Club", "rally-sports")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	facility, err := q.CreateFacility(ctx, db.CreateFacilityParams{
		OrganizationID: org.ID,
		Name:           "Downtown Courts",
		Slug:           "downtown",
	})
	if err != nil {
		t.Fatalf("create facility: %v", err)
	}
	court, err := q.CreateCourt(ctx, db.CreateCourtParams{
		FacilityID:    facility.ID,
		Name:          "Court 1",
		SlotDurations: "60",
	})
	if err != nil {
		t.Fatalf("create court: %v", err)
	}

	for day := int64(0); day < 7; day++ {
		if err := q.UpsertOperatingHours(ctx, db.UpsertOperatingHoursParams{
			FacilityID: facility.ID,
			DayOfWeek:  day,
			OpensAt:    "09:00",
			ClosesAt:   "17:00",
		}); err != nil {
			t.Fatalf("seed hours: %v", err)
		}
	}

	return &fixture{db: database, agg: NewAggregator(database), facility: facility, court: court}
}

func (f *fixture) seedBooking(t *testing.T, start, end time.Time, price float64) {
	t.Helper()
	_, err := f.db.Q().CreateBooking(context.Background(), db.CreateBookingParams{
		FacilityID: f.facility.ID,
		CourtID:    sql.NullInt64{Int64: f.court.ID, Valid: true},
		Email:      "player@example.com",
		Name:       "Casey Morgan",
		StartTime:  start,
		EndTime:    end,
		Status:     db.BookingConfirmed,
		Price:      price,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
}

func TestQueryDaysMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day1 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	f.seedBooking(t, day1.Add(10*time.Hour), day1.Add(11*time.Hour), 25)
	f.seedBooking(t, day1.Add(14*time.Hour), day1.Add(15*time.Hour), 30)
	f.seedBooking(t, day2.Add(9*time.Hour), day2.Add(10*time.Hour), 25)

	report, err := f.agg.Query(ctx, Request{
		From:     day1,
		To:       day2,
		ViewMode: ViewDays,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(report) != 1 {
		t.Fatalf("courts = %d, want 1", len(report))
	}
	buckets := report[0].Buckets
	if len(buckets) != 2 {
		t.Fatalf("buckets = %d, want one per day", len(buckets))
	}

	// 09:00-17:00 at 60-minute slots is 8 per day.
	first := buckets[0]
	if first.Label != "2025-06-02" {
		t.Errorf("label = %q, want 2025-06-02", first.Label)
	}
	if first.AvailableSlots != 8 {
		t.Errorf("available = %d, want 8", first.AvailableSlots)
	}
	if first.BookedSlots != 2 {
		t.Errorf("booked = %d, want 2", first.BookedSlots)
	}
	if first.OccupancyPercent != 25.0 {
		t.Errorf("occupancy = %v, want 25.0", first.OccupancyPercent)
	}
	if first.Revenue != 55 {
		t.Errorf("revenue = %v, want 55", first.Revenue)
	}

	second := buckets[1]
	if second.BookedSlots != 1 || second.Revenue != 25 {
		t.Errorf("second day = %+v, want 1 booking at 25", second)
	}
}

func TestQueryHoursMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day1 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	// Same clock hour on both days.
	f.seedBooking(t, day1.Add(10*time.Hour), day1.Add(11*time.Hour), 25)
	f.seedBooking(t, day2.Add(10*time.Hour), day2.Add(11*time.Hour), 25)

	report, err := f.agg.Query(ctx, Request{
		From:     day1,
		To:       day2,
		ViewMode: ViewHours,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(report) != 1 {
		t.Fatalf("courts = %d, want 1", len(report))
	}
	buckets := report[0].Buckets
	if len(buckets) != 24 {
		t.Fatalf("buckets = %d, want 24", len(buckets))
	}

	ten := buckets[10]
	if ten.Label != "10:00" {
		t.Errorf("label = %q, want 10:00", ten.Label)
	}
	// Two days in range, both open at 10:00.
	if ten.AvailableSlots != 2 {
		t.Errorf("available = %d, want 2", ten.AvailableSlots)
	}
	if ten.BookedSlots != 2 {
		t.Errorf("booked = %d, want 2", ten.BookedSlots)
	}
	if ten.Revenue != 50 {
		t.Errorf("revenue = %v, want 50", ten.Revenue)
	}

	// 03:00 is outside working hours on every day.
	three := buckets[3]
	if three.AvailableSlots != 0 {
		t.Errorf("03:00 available = %d, want 0", three.AvailableSlots)
	}
	if three.OccupancyPercent != 0 {
		t.Errorf("03:00 occupancy = %v, want 0", three.OccupancyPercent)
	}
}

func TestQueryHoursCrossMidnightBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day1 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	f.seedBooking(t, day1.Add(20*time.Hour), day2.Add(2*time.Hour), 40)

	report, err := f.agg.Query(ctx, Request{
		From:     day1,
		To:       day2,
		ViewMode: ViewHours,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	buckets := report[0].Buckets

	// The booking fills every bucket from its start hour through 23:00.
	for h := 20; h <= 23; h++ {
		if buckets[h].BookedSlots != 1 {
			t.Errorf("%02d:00 booked = %d, want 1", h, buckets[h].BookedSlots)
		}
		if buckets[h].Revenue != 40 {
			t.Errorf("%02d:00 revenue = %v, want 40", h, buckets[h].Revenue)
		}
	}
	if buckets[19].BookedSlots != 0 {
		t.Errorf("19:00 booked = %d, want 0", buckets[19].BookedSlots)
	}
	// Buckets do not wrap past midnight.
	if buckets[0].BookedSlots != 0 {
		t.Errorf("00:00 booked = %d, want 0", buckets[0].BookedSlots)
	}
}

func TestQueryCourtHoursOverrideFacility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Court-specific Monday hours replace the facility's 09:00-17:00.
	if err := f.db.Q().UpsertOperatingHours(ctx, db.UpsertOperatingHoursParams{
		FacilityID: f.facility.ID,
		CourtID:    sql.NullInt64{Int64: f.court.ID, Valid: true},
		DayOfWeek:  1,
		OpensAt:    "09:00",
		ClosesAt:   "13:00",
	}); err != nil {
		t.Fatalf("seed court hours: %v", err)
	}

	monday := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	report, err := f.agg.Query(ctx, Request{From: monday, To: monday, ViewMode: ViewDays})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := report[0].Buckets[0].AvailableSlots; got != 4 {
		t.Errorf("available = %d, want 4 from the court override", got)
	}
}

func TestQueryClosedDayHasNoSupply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.db.Q().UpsertOperatingHours(ctx, db.UpsertOperatingHoursParams{
		FacilityID: f.facility.ID,
		DayOfWeek:  1,
		Closed:     true,
	}); err != nil {
		t.Fatalf("close Monday: %v", err)
	}

	monday := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	report, err := f.agg.Query(ctx, Request{From: monday, To: monday, ViewMode: ViewDays})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	bucket := report[0].Buckets[0]
	if bucket.AvailableSlots != 0 {
		t.Errorf("available = %d, want 0 on a closed day", bucket.AvailableSlots)
	}
	if bucket.OccupancyPercent != 0 {
		t.Errorf("occupancy = %v, want 0 when no supply", bucket.OccupancyPercent)
	}
}

func TestQueryFacilityFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.agg.Query(ctx, Request{
		From:       time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		FacilityID: sql.NullInt64{Int64: f.facility.ID + 1000, Valid: true},
		ViewMode:   ViewDays,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(report) != 0 {
		t.Errorf("courts = %d, want 0 for unmatched facility", len(report))
	}
}

func TestQueryRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	if _, err := f.agg.Query(ctx, Request{From: day, To: day, ViewMode: "weeks"}); err == nil {
		t.Error("unknown view mode accepted")
	}
	if _, err := f.agg.Query(ctx, Request{From: day, To: day.AddDate(0, 0, -1), ViewMode: ViewDays}); err == nil {
		t.Error("inverted range accepted")
	}
}

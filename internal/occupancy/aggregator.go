// Package occupancy computes per-court supply vs demand: available slots
// from working hours and slot granularity against booked slots, bucketed
// per day or per hour of day.
package occupancy

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rallyworks/courtguard/internal/db"
	"github.com/rallyworks/courtguard/internal/timewin"
)

type ViewMode string

const (
	ViewDays  ViewMode = "days"
	ViewHours ViewMode = "hours"
)

type Request struct {
	From             time.Time
	To               time.Time // inclusive date
	FacilityID       sql.NullInt64
	SportCategoryIDs []int64
	ViewMode         ViewMode
}

type Bucket struct {
	Label            string  `json:"label"` // date for days mode, "HH:00" for hours mode
	AvailableSlots   int     `json:"available_slots"`
	BookedSlots      int     `json:"booked_slots"`
	OccupancyPercent float64 `json:"occupancy_percent"`
	Revenue          float64 `json:"revenue"`
}

type CourtOccupancy struct {
	CourtID    int64    `json:"court_id"`
	CourtName  string   `json:"court_name"`
	FacilityID int64    `json:"facility_id"`
	Buckets    []Bucket `json:"buckets"`
}

type Aggregator struct {
	database *db.DB
}

func NewAggregator(database *db.DB) *Aggregator {
	return &Aggregator{database: database}
}

// Query aggregates occupancy for every court matching the filters. The
// court, working-hours, and booking queries are independent and issued
// concurrently.
func (a *Aggregator) Query(ctx context.Context, req Request) ([]CourtOccupancy, error) {
	if req.ViewMode != ViewDays && req.ViewMode != ViewHours {
		return nil, fmt.Errorf("unknown view mode %q", req.ViewMode)
	}
	if req.To.Before(req.From) {
		return nil, fmt.Errorf("date range end precedes start")
	}

	q := a.database.Q()

	courts, err := q.ListCourts(ctx, db.ListCourtsParams{
		FacilityID:       req.FacilityID,
		SportCategoryIDs: req.SportCategoryIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("listing courts: %w", err)
	}
	if len(courts) == 0 {
		return []CourtOccupancy{}, nil
	}

	facilityIDs := make(map[int64]struct{})
	for _, court := range courts {
		facilityIDs[court.FacilityID] = struct{}{}
	}

	rangeEnd := dateOnly(req.To).AddDate(0, 0, 1)

	var bookings []db.Booking
	var hoursMu sync.Mutex
	hoursByFacility := make(map[int64][]db.OperatingHours)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bookings, err = q.ListBookingsInRange(gctx, db.ListBookingsInRangeParams{
			From:             dateOnly(req.From),
			To:               rangeEnd,
			FacilityID:       req.FacilityID,
			SportCategoryIDs: req.SportCategoryIDs,
		})
		if err != nil {
			return fmt.Errorf("listing bookings: %w", err)
		}
		return nil
	})
	for facilityID := range facilityIDs {
		g.Go(func() error {
			hours, err := q.ListOperatingHours(gctx, facilityID)
			if err != nil {
				return fmt.Errorf("listing operating hours for facility %d: %w", facilityID, err)
			}
			hoursMu.Lock()
			hoursByFacility[facilityID] = hours
			hoursMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bookingsByCourt := make(map[int64][]db.Booking)
	for _, b := range bookings {
		if !b.CourtID.Valid {
			continue
		}
		bookingsByCourt[b.CourtID.Int64] = append(bookingsByCourt[b.CourtID.Int64], b)
	}

	result := make([]CourtOccupancy, 0, len(courts))
	for _, court := range courts {
		schedule := newSchedule(court, hoursByFacility[court.FacilityID])
		courtBookings := bookingsByCourt[court.ID]

		var buckets []Bucket
		if req.ViewMode == ViewDays {
			buckets = dayBuckets(req.From, req.To, schedule, courtBookings)
		} else {
			buckets = hourBuckets(req.From, req.To, schedule, courtBookings)
		}

		result = append(result, CourtOccupancy{
			CourtID:    court.ID,
			CourtName:  court.Name,
			FacilityID: court.FacilityID,
			Buckets:    buckets,
		})
	}
	return result, nil
}

// window is one weekday's open interval in minutes since midnight.
type window struct {
	open   int
	close  int
	closed bool
}

// schedule resolves a court's effective weekly hours: the court's own
// rows when set, the facility's otherwise, closed when neither exists.
type schedule struct {
	days         [7]window
	slotDuration int
}

func newSchedule(court db.Court, hours []db.OperatingHours) schedule {
	s := schedule{slotDuration: timewin.MinSlotDuration(parseDurations(court.SlotDurations))}
	for i := range s.days {
		s.days[i].closed = true
	}

	// Facility-wide rows first, then court rows override.
	for _, h := range hours {
		if h.CourtID.Valid {
			continue
		}
		s.days[h.DayOfWeek] = toWindow(h)
	}
	for _, h := range hours {
		if !h.CourtID.Valid || h.CourtID.Int64 != court.ID {
			continue
		}
		s.days[h.DayOfWeek] = toWindow(h)
	}
	return s
}

func toWindow(h db.OperatingHours) window {
	if h.Closed {
		return window{closed: true}
	}
	openMin, okOpen := parseClock(h.OpensAt)
	closeMin, okClose := parseClock(h.ClosesAt)
	if !okOpen || !okClose {
		return window{closed: true}
	}
	return window{open: openMin, close: closeMin}
}

func dayBuckets(from, to time.Time, s schedule, bookings []db.Booking) []Bucket {
	var buckets []Bucket
	for day := dateOnly(from); !day.After(dateOnly(to)); day = day.AddDate(0, 0, 1) {
		w := s.days[int(day.Weekday())]
		available := 0
		if !w.closed {
			available = timewin.SlotsInWindow(w.open, w.close, s.slotDuration)
		}

		booked := 0
		revenue := 0.0
		for _, b := range bookings {
			if sameDate(b.StartTime, day) {
				booked++
				revenue += b.Price
			}
		}

		buckets = append(buckets, Bucket{
			Label:            day.Format("2006-01-02"),
			AvailableSlots:   available,
			BookedSlots:      booked,
			OccupancyPercent: timewin.OccupancyPercent(booked, available),
			Revenue:          revenue,
		})
	}
	return buckets
}

// hourBuckets aggregates across the whole range per hour of day: supply
// for hour h is the number of days whose working hours cover h, demand is
// every booking touching h on any day. A booking crossing an hour
// boundary counts in every hour it touches, including the end hour when
// it is before midnight.
func hourBuckets(from, to time.Time, s schedule, bookings []db.Booking) []Bucket {
	var available [24]int
	for day := dateOnly(from); !day.After(dateOnly(to)); day = day.AddDate(0, 0, 1) {
		w := s.days[int(day.Weekday())]
		if w.closed {
			continue
		}
		for h := w.open / 60; h < (w.close+59)/60 && h < 24; h++ {
			available[h]++
		}
	}

	var booked [24]int
	var revenue [24]float64
	for _, b := range bookings {
		startHour := b.StartTime.Hour()
		endHour := b.EndTime.Hour()
		// A booking running past midnight still fills the buckets up to
		// 23:00; buckets never wrap into the next day.
		if dateOnly(b.EndTime).After(dateOnly(b.StartTime)) {
			endHour = 23
		}
		for h := startHour; h <= endHour; h++ {
			booked[h]++
			revenue[h] += b.Price
		}
	}

	buckets := make([]Bucket, 0, 24)
	for h := 0; h < 24; h++ {
		buckets = append(buckets, Bucket{
			Label:            fmt.Sprintf("%02d:00", h),
			AvailableSlots:   available[h],
			BookedSlots:      booked[h],
			OccupancyPercent: timewin.OccupancyPercent(booked[h], available[h]),
			Revenue:          revenue[h],
		})
	}
	return buckets
}

func parseDurations(raw string) []int {
	parts := strings.Split(raw, ",")
	durations := make([]int, 0, len(parts))
	for _, part := range parts {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			durations = append(durations, n)
		}
	}
	return durations
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(value string) (int, bool) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return hours*60 + minutes, true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

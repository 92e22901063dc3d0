// internal/db/models.go
package db

import (
	"database/sql"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
	BookingNoShow    BookingStatus = "no_show"
)

type ReportStatus string

const (
	ReportActive   ReportStatus = "active"
	ReportRedeemed ReportStatus = "redeemed"
	ReportExpired  ReportStatus = "expired"
)

type RecurringType string

const (
	RecurringWeekly   RecurringType = "weekly"
	RecurringWeekdays RecurringType = "weekdays"
	RecurringCustom   RecurringType = "custom"
)

type User struct {
	ID                 int64
	Email              string
	Name               string
	EmailVerified      bool
	TrustLevel         int64
	WeeklyBookingLimit int64
	ActiveStrikes      int64
	LastStrikeAt       sql.NullTime
	SuccessfulBookings int64
	BookingBanUntil    sql.NullTime
	Banned             bool
	PlatformAdmin      bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Organization struct {
	ID     int64
	Name   string
	Slug   string
	Status string
}

type Facility struct {
	ID             int64
	OrganizationID int64
	Name           string
	Slug           string
	Timezone       string
}

type Court struct {
	ID              int64
	FacilityID      int64
	SportCategoryID sql.NullInt64
	Name            string
	SlotDurations   string
}

// OperatingHours is one weekday's open window for a facility, or for a
// single court when CourtID is set.
type OperatingHours struct {
	ID         int64
	FacilityID int64
	CourtID    sql.NullInt64
	DayOfWeek  int64
	OpensAt    string
	ClosesAt   string
	Closed     bool
}

type Booking struct {
	ID         int64
	FacilityID int64
	CourtID    sql.NullInt64
	UserID     sql.NullInt64
	Email      string
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Status     BookingStatus
	Price      float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type NoShowReport struct {
	ID         int64
	BookingID  int64
	UserID     int64
	ReportedBy int64
	Reason     string
	Status     ReportStatus
	ReportedAt time.Time
	RedeemedAt sql.NullTime
	ExpiredAt  sql.NullTime
}

type SlotBlock struct {
	ID               int64
	CourtID          int64
	StartTime        time.Time
	EndTime          time.Time
	Reason           string
	IsRecurring      bool
	RecurringType    sql.NullString
	RecurringEndDate sql.NullTime
	DayOfWeek        sql.NullInt64
	CreatedBy        int64
	CreatedAt        time.Time
}

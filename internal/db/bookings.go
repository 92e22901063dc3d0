// internal/db/bookings.go
package db

import (
	"context"
	"database/sql"
	"time"
)

const bookingColumns = `id, facility_id, court_id, user_id, email, name,
	start_time, end_time, status, price, created_at, updated_at`

func scanBooking(scan func(dest ...any) error) (Booking, error) {
	var b Booking
	err := scan(
		&b.ID, &b.FacilityID, &b.CourtID, &b.UserID, &b.Email, &b.Name,
		&b.StartTime, &b.EndTime, &b.Status, &b.Price, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

func collectBookings(rows *sql.Rows) ([]Booking, error) {
	defer rows.Close()
	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (q *Queries) GetBookingByID(ctx context.Context, id int64) (Booking, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row.Scan)
}

type CreateBookingParams struct {
	FacilityID int64
	CourtID    sql.NullInt64
	UserID     sql.NullInt64
	Email      string
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Status     BookingStatus
	Price      float64
}

func (q *Queries) CreateBooking(ctx context.Context, arg CreateBookingParams) (Booking, error) {
	now := time.Now().UTC()
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO bookings (facility_id, court_id, user_id, email, name,
			start_time, end_time, status, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.FacilityID, arg.CourtID, arg.UserID, arg.Email, arg.Name,
		arg.StartTime.UTC(), arg.EndTime.UTC(), arg.Status, arg.Price, now, now,
	)
	if err != nil {
		return Booking{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Booking{}, err
	}
	return q.GetBookingByID(ctx, id)
}

type ListConflictingBookingsParams struct {
	FacilityID int64
	StartTime  time.Time
	EndTime    time.Time
	ExcludeID  int64
}

// ListConflictingBookings returns the pending and confirmed bookings at a
// facility whose half-open interval overlaps [StartTime, EndTime).
// ExcludeID skips one booking for reschedule checks (0 matches no row).
func (q *Queries) ListConflictingBookings(ctx context.Context, arg ListConflictingBookingsParams) ([]Booking, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE facility_id = ? AND id != ?
		  AND status IN ('pending', 'confirmed')
		  AND start_time < ? AND end_time > ?
		ORDER BY start_time`,
		arg.FacilityID, arg.ExcludeID, arg.EndTime.UTC(), arg.StartTime.UTC(),
	)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (q *Queries) CountRecentBookingsByEmail(ctx context.Context, email string, since time.Time) (int64, error) {
	var count int64
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings WHERE email = ? AND created_at >= ?`,
		email, since.UTC(),
	).Scan(&count)
	return count, err
}

type DuplicateBookingParams struct {
	FacilityID int64
	Email      string
	StartTime  time.Time
	EndTime    time.Time
}

// HasDuplicateBooking reports whether an identical non-cancelled booking
// already exists for the same requester.
func (q *Queries) HasDuplicateBooking(ctx context.Context, arg DuplicateBookingParams) (bool, error) {
	var count int64
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE facility_id = ? AND email = ?
		  AND start_time = ? AND end_time = ?
		  AND status IN ('pending', 'confirmed')`,
		arg.FacilityID, arg.Email, arg.StartTime.UTC(), arg.EndTime.UTC(),
	).Scan(&count)
	return count > 0, err
}

func (q *Queries) CountRecentCancellationsByEmail(ctx context.Context, email string, since time.Time) (int64, error) {
	var count int64
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE email = ? AND status = 'cancelled' AND updated_at >= ?`,
		email, since.UTC(),
	).Scan(&count)
	return count, err
}

func (q *Queries) UpdateBookingStatus(ctx context.Context, id int64, status BookingStatus) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	return err
}

// CancelFuturePendingBookings cancels every pending booking of the user
// that starts after now, returning how many were cancelled.
func (q *Queries) CancelFuturePendingBookings(ctx context.Context, userID int64, now time.Time) (int64, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE bookings SET status = 'cancelled', updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND status = 'pending' AND start_time > ?`,
		userID, now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListElapsedActiveBookings returns confirmed bookings whose slot has
// ended, for the completion sweep.
func (q *Queries) ListElapsedActiveBookings(ctx context.Context, now time.Time, limit int64) ([]Booking, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'confirmed' AND end_time <= ?
		ORDER BY end_time
		LIMIT ?`,
		now.UTC(), limit,
	)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

type ListBookingsInRangeParams struct {
	From             time.Time
	To               time.Time
	FacilityID       sql.NullInt64
	SportCategoryIDs []int64
}

// ListBookingsInRange returns the pending and confirmed bookings touching
// [From, To), optionally filtered by facility and court sport category,
// for the occupancy aggregator.
func (q *Queries) ListBookingsInRange(ctx context.Context, arg ListBookingsInRangeParams) ([]Booking, error) {
	query := `
		SELECT b.id, b.facility_id, b.court_id, b.user_id, b.email, b.name,
			b.start_time, b.end_time, b.status, b.price, b.created_at, b.updated_at
		FROM bookings b
		LEFT JOIN courts c ON c.id = b.court_id
		WHERE b.status IN ('pending', 'confirmed')
		  AND b.start_time < ? AND b.end_time > ?`
	args := []any{arg.To.UTC(), arg.From.UTC()}

	if arg.FacilityID.Valid {
		query += ` AND b.facility_id = ?`
		args = append(args, arg.FacilityID.Int64)
	}
	if len(arg.SportCategoryIDs) > 0 {
		query += ` AND c.sport_category_id IN (?` + placeholderTail(len(arg.SportCategoryIDs)) + `)`
		for _, id := range arg.SportCategoryIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY b.start_time`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// placeholderTail returns ", ?" repeated n-1 times for IN clauses.
func placeholderTail(n int) string {
	tail := ""
	for i := 1; i < n; i++ {
		tail += ", ?"
	}
	return tail
}

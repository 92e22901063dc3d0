// internal/db/users.go
package db

import (
	"context"
	"database/sql"
	"time"
)

const userColumns = `id, email, name, email_verified, trust_level, weekly_booking_limit,
	active_strikes, last_strike_at, successful_bookings, booking_ban_until, banned,
	platform_admin, created_at, updated_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.EmailVerified, &u.TrustLevel, &u.WeeklyBookingLimit,
		&u.ActiveStrikes, &u.LastStrikeAt, &u.SuccessfulBookings, &u.BookingBanUntil,
		&u.Banned, &u.PlatformAdmin, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

type CreateUserParams struct {
	Email              string
	Name               string
	EmailVerified      bool
	TrustLevel         int64
	WeeklyBookingLimit int64
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO users (email, name, email_verified, trust_level, weekly_booking_limit)
		VALUES (?, ?, ?, ?, ?)`,
		arg.Email, arg.Name, arg.EmailVerified, arg.TrustLevel, arg.WeeklyBookingLimit,
	)
	if err != nil {
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, id)
}

// UpdateUserTrustParams carries the full trust-related field set. The
// trust machine computes the new values and writes them in one statement
// so a penalty is never half applied.
type UpdateUserTrustParams struct {
	UserID             int64
	TrustLevel         int64
	WeeklyBookingLimit int64
	ActiveStrikes      int64
	LastStrikeAt       sql.NullTime
	SuccessfulBookings int64
	BookingBanUntil    sql.NullTime
}

func (q *Queries) UpdateUserTrust(ctx context.Context, arg UpdateUserTrustParams) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE users
		SET trust_level = ?, weekly_booking_limit = ?, active_strikes = ?,
		    last_strike_at = ?, successful_bookings = ?, booking_ban_until = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		arg.TrustLevel, arg.WeeklyBookingLimit, arg.ActiveStrikes,
		arg.LastStrikeAt, arg.SuccessfulBookings, arg.BookingBanUntil,
		arg.UserID,
	)
	return err
}

// DecrementUserStrikes lowers active_strikes by n, never below zero.
func (q *Queries) DecrementUserStrikes(ctx context.Context, userID, n int64) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE users
		SET active_strikes = MAX(0, active_strikes - ?), updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		n, userID,
	)
	return err
}

// CountWeeklyBookings counts a user's pending and confirmed bookings with a
// start time inside [weekStart, weekEnd).
func (q *Queries) CountWeeklyBookings(ctx context.Context, userID int64, weekStart, weekEnd time.Time) (int64, error) {
	var count int64
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE user_id = ? AND status IN ('pending', 'confirmed')
		  AND start_time >= ? AND start_time < ?`,
		userID, weekStart.UTC(), weekEnd.UTC(),
	).Scan(&count)
	return count, err
}

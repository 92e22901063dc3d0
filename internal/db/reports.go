// internal/db/reports.go
package db

import (
	"context"
	"database/sql"
	"time"
)

const reportColumns = `id, booking_id, user_id, reported_by, reason, status,
	reported_at, redeemed_at, expired_at`

func scanReport(scan func(dest ...any) error) (NoShowReport, error) {
	var r NoShowReport
	err := scan(
		&r.ID, &r.BookingID, &r.UserID, &r.ReportedBy, &r.Reason, &r.Status,
		&r.ReportedAt, &r.RedeemedAt, &r.ExpiredAt,
	)
	return r, err
}

func (q *Queries) GetReportByBookingID(ctx context.Context, bookingID int64) (NoShowReport, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+reportColumns+` FROM no_show_reports WHERE booking_id = ?`, bookingID)
	return scanReport(row.Scan)
}

type CreateNoShowReportParams struct {
	BookingID  int64
	UserID     int64
	ReportedBy int64
	Reason     string
	ReportedAt time.Time
}

func (q *Queries) CreateNoShowReport(ctx context.Context, arg CreateNoShowReportParams) (NoShowReport, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO no_show_reports (booking_id, user_id, reported_by, reason, status, reported_at)
		VALUES (?, ?, ?, ?, 'active', ?)`,
		arg.BookingID, arg.UserID, arg.ReportedBy, arg.Reason, arg.ReportedAt.UTC(),
	)
	if err != nil {
		return NoShowReport{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return NoShowReport{}, err
	}
	row := q.q.QueryRowContext(ctx, `
		SELECT `+reportColumns+` FROM no_show_reports WHERE id = ?`, id)
	return scanReport(row.Scan)
}

// CountActiveStrikesSince counts a user's active strikes reported on or
// after the cutoff. Queried fresh rather than trusting the cached
// active_strikes counter.
func (q *Queries) CountActiveStrikesSince(ctx context.Context, userID int64, since time.Time) (int64, error) {
	var count int64
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM no_show_reports
		WHERE user_id = ? AND status = 'active' AND reported_at >= ?`,
		userID, since.UTC(),
	).Scan(&count)
	return count, err
}

// ListOldestActiveReports returns up to limit active reports for a user,
// oldest first, for strike redemption.
func (q *Queries) ListOldestActiveReports(ctx context.Context, userID, limit int64) ([]NoShowReport, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM no_show_reports
		WHERE user_id = ? AND status = 'active'
		ORDER BY reported_at ASC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectReports(rows)
}

func (q *Queries) MarkReportRedeemed(ctx context.Context, id int64, at time.Time) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE no_show_reports SET status = 'redeemed', redeemed_at = ?
		WHERE id = ? AND status = 'active'`,
		at.UTC(), id,
	)
	return err
}

// ListActiveReportsBefore returns active reports older than the cutoff,
// for strike expiry.
func (q *Queries) ListActiveReportsBefore(ctx context.Context, cutoff time.Time) ([]NoShowReport, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM no_show_reports
		WHERE status = 'active' AND reported_at < ?
		ORDER BY reported_at ASC`,
		cutoff.UTC(),
	)
	if err != nil {
		return nil, err
	}
	return collectReports(rows)
}

func (q *Queries) MarkReportExpired(ctx context.Context, id int64, at time.Time) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE no_show_reports SET status = 'expired', expired_at = ?
		WHERE id = ? AND status = 'active'`,
		at.UTC(), id,
	)
	return err
}

func collectReports(rows *sql.Rows) ([]NoShowReport, error) {
	defer rows.Close()
	var reports []NoShowReport
	for rows.Next() {
		r, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// internal/db/facilities.go
package db

import (
	"context"
	"database/sql"
)

func (q *Queries) CreateOrganization(ctx context.Context, name, slug string) (Organization, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO organizations (name, slug, status) VALUES (?, ?, 'active')`,
		name, slug,
	)
	if err != nil {
		return Organization{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Organization{}, err
	}
	return Organization{ID: id, Name: name, Slug: slug, Status: "active"}, nil
}

func (q *Queries) GetFacilityByID(ctx context.Context, id int64) (Facility, error) {
	var f Facility
	err := q.q.QueryRowContext(ctx, `
		SELECT id, organization_id, name, slug, timezone FROM facilities WHERE id = ?`,
		id,
	).Scan(&f.ID, &f.OrganizationID, &f.Name, &f.Slug, &f.Timezone)
	return f, err
}

type CreateFacilityParams struct {
	OrganizationID int64
	Name           string
	Slug           string
	Timezone       string
}

func (q *Queries) CreateFacility(ctx context.Context, arg CreateFacilityParams) (Facility, error) {
	if arg.Timezone == "" {
		arg.Timezone = "UTC"
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO facilities (organization_id, name, slug, timezone) VALUES (?, ?, ?, ?)`,
		arg.OrganizationID, arg.Name, arg.Slug, arg.Timezone,
	)
	if err != nil {
		return Facility{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Facility{}, err
	}
	return q.GetFacilityByID(ctx, id)
}

func (q *Queries) GetCourtByID(ctx context.Context, id int64) (Court, error) {
	var c Court
	err := q.q.QueryRowContext(ctx, `
		SELECT id, facility_id, sport_category_id, name, slot_durations
		FROM courts WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.FacilityID, &c.SportCategoryID, &c.Name, &c.SlotDurations)
	return c, err
}

type CreateCourtParams struct {
	FacilityID      int64
	SportCategoryID sql.NullInt64
	Name            string
	SlotDurations   string
}

func (q *Queries) CreateCourt(ctx context.Context, arg CreateCourtParams) (Court, error) {
	if arg.SlotDurations == "" {
		arg.SlotDurations = "60"
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO courts (facility_id, sport_category_id, name, slot_durations)
		VALUES (?, ?, ?, ?)`,
		arg.FacilityID, arg.SportCategoryID, arg.Name, arg.SlotDurations,
	)
	if err != nil {
		return Court{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Court{}, err
	}
	return q.GetCourtByID(ctx, id)
}

type ListCourtsParams struct {
	FacilityID       sql.NullInt64
	SportCategoryIDs []int64
}

func (q *Queries) ListCourts(ctx context.Context, arg ListCourtsParams) ([]Court, error) {
	query := `
		SELECT id, facility_id, sport_category_id, name, slot_durations
		FROM courts WHERE 1 = 1`
	var args []any
	if arg.FacilityID.Valid {
		query += ` AND facility_id = ?`
		args = append(args, arg.FacilityID.Int64)
	}
	if len(arg.SportCategoryIDs) > 0 {
		query += ` AND sport_category_id IN (?` + placeholderTail(len(arg.SportCategoryIDs)) + `)`
		for _, id := range arg.SportCategoryIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courts []Court
	for rows.Next() {
		var c Court
		if err := rows.Scan(&c.ID, &c.FacilityID, &c.SportCategoryID, &c.Name, &c.SlotDurations); err != nil {
			return nil, err
		}
		courts = append(courts, c)
	}
	return courts, rows.Err()
}

type UpsertOperatingHoursParams struct {
	FacilityID int64
	CourtID    sql.NullInt64
	DayOfWeek  int64
	OpensAt    string
	ClosesAt   string
	Closed     bool
}

func (q *Queries) UpsertOperatingHours(ctx context.Context, arg UpsertOperatingHoursParams) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE operating_hours SET opens_at = ?, closes_at = ?, closed = ?
		WHERE facility_id = ? AND court_id IS ? AND day_of_week = ?`,
		arg.OpensAt, arg.ClosesAt, arg.Closed, arg.FacilityID, arg.CourtID, arg.DayOfWeek,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO operating_hours (facility_id, court_id, day_of_week, opens_at, closes_at, closed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		arg.FacilityID, arg.CourtID, arg.DayOfWeek, arg.OpensAt, arg.ClosesAt, arg.Closed,
	)
	return err
}

// ListOperatingHours returns both facility-wide and per-court rows for a
// facility; callers overlay court rows on top of facility rows.
func (q *Queries) ListOperatingHours(ctx context.Context, facilityID int64) ([]OperatingHours, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, facility_id, court_id, day_of_week, opens_at, closes_at, closed
		FROM operating_hours WHERE facility_id = ?`,
		facilityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hours []OperatingHours
	for rows.Next() {
		var h OperatingHours
		if err := rows.Scan(&h.ID, &h.FacilityID, &h.CourtID, &h.DayOfWeek, &h.OpensAt, &h.ClosesAt, &h.Closed); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

// CourtOrganization associates a court with its owning organization.
type CourtOrganization struct {
	CourtID        int64
	OrganizationID int64
}

func (q *Queries) ListCourtOrganizations(ctx context.Context, courtIDs []int64) ([]CourtOrganization, error) {
	if len(courtIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT c.id, f.organization_id
		FROM courts c
		JOIN facilities f ON f.id = c.facility_id
		WHERE c.id IN (?` + placeholderTail(len(courtIDs)) + `)`
	args := make([]any, 0, len(courtIDs))
	for _, id := range courtIDs {
		args = append(args, id)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CourtOrganization
	for rows.Next() {
		var co CourtOrganization
		if err := rows.Scan(&co.CourtID, &co.OrganizationID); err != nil {
			return nil, err
		}
		result = append(result, co)
	}
	return result, rows.Err()
}

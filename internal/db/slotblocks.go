// internal/db/slotblocks.go
package db

import (
	"context"
	"database/sql"
	"time"
)

const slotBlockColumns = `sb.id, sb.court_id, sb.start_time, sb.end_time, sb.reason,
	sb.is_recurring, sb.recurring_type, sb.recurring_end_date, sb.day_of_week,
	sb.created_by, sb.created_at`

// SlotBlockWithOrg pairs a block with the organization owning its court so
// access checks can be computed once per organization.
type SlotBlockWithOrg struct {
	SlotBlock
	OrganizationID int64
}

type InsertSlotBlockParams struct {
	CourtID          int64
	StartTime        time.Time
	EndTime          time.Time
	Reason           string
	IsRecurring      bool
	RecurringType    sql.NullString
	RecurringEndDate sql.NullTime
	DayOfWeek        sql.NullInt64
	CreatedBy        int64
}

func (q *Queries) InsertSlotBlock(ctx context.Context, arg InsertSlotBlockParams) (SlotBlock, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO slot_blocks (court_id, start_time, end_time, reason, is_recurring,
			recurring_type, recurring_end_date, day_of_week, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.CourtID, arg.StartTime.UTC(), arg.EndTime.UTC(), arg.Reason, arg.IsRecurring,
		arg.RecurringType, arg.RecurringEndDate, arg.DayOfWeek, arg.CreatedBy, time.Now().UTC(),
	)
	if err != nil {
		return SlotBlock{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return SlotBlock{}, err
	}
	return SlotBlock{
		ID:               id,
		CourtID:          arg.CourtID,
		StartTime:        arg.StartTime.UTC(),
		EndTime:          arg.EndTime.UTC(),
		Reason:           arg.Reason,
		IsRecurring:      arg.IsRecurring,
		RecurringType:    arg.RecurringType,
		RecurringEndDate: arg.RecurringEndDate,
		DayOfWeek:        arg.DayOfWeek,
		CreatedBy:        arg.CreatedBy,
	}, nil
}

type ListSlotBlocksParams struct {
	CourtID sql.NullInt64
	From    sql.NullTime
	To      sql.NullTime
}

func (q *Queries) ListSlotBlocks(ctx context.Context, arg ListSlotBlocksParams) ([]SlotBlockWithOrg, error) {
	query := `
		SELECT ` + slotBlockColumns + `, f.organization_id
		FROM slot_blocks sb
		JOIN courts c ON c.id = sb.court_id
		JOIN facilities f ON f.id = c.facility_id
		WHERE 1 = 1`
	var args []any
	if arg.CourtID.Valid {
		query += ` AND sb.court_id = ?`
		args = append(args, arg.CourtID.Int64)
	}
	if arg.From.Valid {
		query += ` AND sb.end_time > ?`
		args = append(args, arg.From.Time.UTC())
	}
	if arg.To.Valid {
		query += ` AND sb.start_time < ?`
		args = append(args, arg.To.Time.UTC())
	}
	query += ` ORDER BY sb.start_time`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectSlotBlocks(rows)
}

func (q *Queries) GetSlotBlocksByIDs(ctx context.Context, ids []int64) ([]SlotBlockWithOrg, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + slotBlockColumns + `, f.organization_id
		FROM slot_blocks sb
		JOIN courts c ON c.id = sb.court_id
		JOIN facilities f ON f.id = c.facility_id
		WHERE sb.id IN (?` + placeholderTail(len(ids)) + `)`
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectSlotBlocks(rows)
}

func (q *Queries) DeleteSlotBlocksByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM slot_blocks WHERE id IN (?` + placeholderTail(len(ids)) + `)`
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func collectSlotBlocks(rows *sql.Rows) ([]SlotBlockWithOrg, error) {
	defer rows.Close()
	var blocks []SlotBlockWithOrg
	for rows.Next() {
		var b SlotBlockWithOrg
		err := rows.Scan(
			&b.ID, &b.CourtID, &b.StartTime, &b.EndTime, &b.Reason,
			&b.IsRecurring, &b.RecurringType, &b.RecurringEndDate, &b.DayOfWeek,
			&b.CreatedBy, &b.CreatedAt, &b.OrganizationID,
		)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

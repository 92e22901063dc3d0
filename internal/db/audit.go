// internal/db/audit.go
package db

import (
	"context"
	"time"
)

type InsertAuditEventParams struct {
	BookingID int64
	Event     string
	Actor     string
	Severity  string
	CreatedAt time.Time
}

func (q *Queries) InsertAuditEvent(ctx context.Context, arg InsertAuditEventParams) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO audit_log (booking_id, event, actor, severity, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		arg.BookingID, arg.Event, arg.Actor, arg.Severity, arg.CreatedAt.UTC(),
	)
	return err
}

// Package audit records booking lifecycle transitions. The log is
// write-only from the engine's perspective; a failed write must never
// block the operation that triggered it.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rallyworks/courtguard/internal/db"
)

type Event string

const (
	EventCreated   Event = "created"
	EventUpdated   Event = "updated"
	EventCancelled Event = "cancelled"
	EventConfirmed Event = "confirmed"
	EventCompleted Event = "completed"
	EventDeleted   Event = "deleted"
)

// Recorder writes rows through the caller's transaction, so it carries no
// connection of its own.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordTx writes the audit row through an open transaction so lifecycle
// events commit atomically with the mutation they describe. Failures are
// logged and swallowed.
func (r *Recorder) RecordTx(ctx context.Context, q *db.Queries, bookingID int64, event Event, actor string) {
	severity := "info"
	if event == EventCancelled || event == EventDeleted {
		severity = "warn"
	}
	err := q.InsertAuditEvent(ctx, db.InsertAuditEventParams{
		BookingID: bookingID,
		Event:     string(event),
		Actor:     actor,
		Severity:  severity,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Ctx(ctx).Error().
			Err(err).
			Int64("booking_id", bookingID).
			Str("event", string(event)).
			Msg("Failed to write audit event")
	}
}

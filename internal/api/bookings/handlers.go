// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rallyworks/courtguard/internal/api/apiutil"
	"github.com/rallyworks/courtguard/internal/audit"
	"github.com/rallyworks/courtguard/internal/booking"
	appdb "github.com/rallyworks/courtguard/internal/db"
	"github.com/rallyworks/courtguard/internal/lock"
	"github.com/rallyworks/courtguard/internal/ratelimit"
	"github.com/rallyworks/courtguard/internal/trust"
)

var (
	database  *appdb.DB
	validator *booking.Validator
	detector  *booking.AbuseDetector
	resolver  *booking.ConflictResolver
	machine   *trust.Machine
	locks     lock.Store
	limiter   *ratelimit.Limiter
	recorder  *audit.Recorder
	initOnce  sync.Once
)

const bookingQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(db *appdb.DB, lockStore lock.Store, rl *ratelimit.Limiter, tm *trust.Machine, rec *audit.Recorder) {
	if db == nil {
		return
	}
	initOnce.Do(func() {
		database = db
		validator = booking.NewValidator(db.Q(), nil)
		detector = booking.NewAbuseDetector(db.Q(), nil)
		resolver = booking.NewConflictResolver(validator)
		machine = tm
		locks = lockStore
		limiter = rl
		recorder = rec
	})
}

type bookingRequest struct {
	FacilityID       int64     `json:"facility_id"`
	CourtID          *int64    `json:"court_id,omitempty"`
	UserID           *int64    `json:"user_id,omitempty"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Price            float64   `json:"price,omitempty"`
	ExcludeBookingID int64     `json:"exclude_booking_id,omitempty"`
}

func (r bookingRequest) validateInput() booking.ValidateRequest {
	return booking.ValidateRequest{
		FacilityID: r.FacilityID,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Email:      r.Email,
		Name:       r.Name,
	}
}

// POST /api/v1/bookings/validate
func HandleValidate(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	var req bookingRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	result, err := validator.Validate(ctx, req.validateInput())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Validation failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to validate booking")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, result)
}

// POST /api/v1/bookings/check-conflicts
func HandleCheckConflicts(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	var req bookingRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	conflicts, err := validator.CheckConflicts(ctx, req.FacilityID, req.StartTime, req.EndTime, req.ExcludeBookingID)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Int64("facility_id", req.FacilityID).Msg("Conflict check failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to check conflicts")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, conflicts)
}

// POST /api/v1/bookings/detect-abuse
func HandleDetectAbuse(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	var req bookingRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	result, err := detector.Detect(ctx, booking.AbuseCheckInput{
		Email:      req.Email,
		Name:       req.Name,
		FacilityID: req.FacilityID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Abuse detection failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to run abuse checks")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, result)
}

// POST /api/v1/bookings/resolve-conflicts
func HandleResolveConflicts(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	var req bookingRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	resolution, err := resolver.Resolve(ctx, req.FacilityID, req.StartTime, req.EndTime, req.ExcludeBookingID)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Conflict resolution failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to resolve conflicts")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, resolution)
}

// POST /api/v1/bookings
//
// The full pipeline: rate limit, trust gate, validation, abuse checks,
// advisory lock, conflict check, transactional create. Conflicts come
// back as structured data with suggestions, never as a bare failure.
func HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	logger := log.Ctx(r.Context())

	var req bookingRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ip := ratelimit.GetClientIP(r, false)
	if res := limiter.CheckSubmit(req.Email, ip); !res.Allowed {
		ratelimit.LogRateLimitExceeded(req.Email, ip, res.Reason)
		w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
		apiutil.WriteError(w, http.StatusTooManyRequests, "too many booking requests")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	// A request without a user_id still hits the trust gate when the
	// email belongs to a registered account, so omitting the id is not a
	// bypass. Unknown emails book as guests.
	if req.UserID == nil {
		user, err := database.Q().GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
		switch {
		case err == nil:
			req.UserID = &user.ID
		case errors.Is(err, sql.ErrNoRows):
		default:
			logger.Error().Err(err).Msg("User lookup failed")
			apiutil.WriteError(w, http.StatusInternalServerError, "failed to check eligibility")
			return
		}
	}
	if req.UserID != nil {
		eligibility, err := machine.CanUserBook(ctx, *req.UserID)
		if err != nil {
			if errors.Is(err, trust.ErrUserNotFound) {
				apiutil.WriteError(w, http.StatusNotFound, "user not found")
				return
			}
			logger.Error().Err(err).Int64("user_id", *req.UserID).Msg("Eligibility check failed")
			apiutil.WriteError(w, http.StatusInternalServerError, "failed to check eligibility")
			return
		}
		if !eligibility.CanBook {
			apiutil.WriteError(w, http.StatusForbidden, eligibility.Reason)
			return
		}
	}

	validation, err := validator.Validate(ctx, req.validateInput())
	if err != nil {
		logger.Error().Err(err).Msg("Validation failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to validate booking")
		return
	}
	if !validation.IsValid {
		_ = apiutil.WriteJSON(w, http.StatusUnprocessableEntity, validation)
		return
	}

	abuse, err := detector.Detect(ctx, booking.AbuseCheckInput{
		Email:      req.Email,
		Name:       req.Name,
		FacilityID: req.FacilityID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Abuse detection failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to run abuse checks")
		return
	}
	if abuse.Blocked {
		apiutil.WriteError(w, http.StatusForbidden, "booking request rejected: "+abuse.Reason)
		return
	}

	// Serialize the check-then-create window on this facility/start pair.
	lockKey := bookingLockKey(req.FacilityID, req.StartTime)
	release, err := locks.Acquire(ctx, lockKey, lock.DefaultTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			apiutil.WriteError(w, http.StatusConflict, "another booking for this slot is in progress, retry shortly")
			return
		}
		logger.Error().Err(err).Str("key", lockKey).Msg("Lock acquisition failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to acquire booking lock")
		return
	}
	defer release()

	resolution, err := resolver.Resolve(ctx, req.FacilityID, req.StartTime, req.EndTime, 0)
	if err != nil {
		logger.Error().Err(err).Msg("Conflict check failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to check conflicts")
		return
	}
	if resolution.HasConflicts {
		_ = apiutil.WriteJSON(w, http.StatusConflict, resolution)
		return
	}

	var created appdb.Booking
	err = database.RunInTx(ctx, func(tx *appdb.Queries) error {
		created, err = tx.CreateBooking(ctx, appdb.CreateBookingParams{
			FacilityID: req.FacilityID,
			CourtID:    toNullInt64(req.CourtID),
			UserID:     toNullInt64(req.UserID),
			Email:      strings.ToLower(strings.TrimSpace(req.Email)),
			Name:       strings.TrimSpace(req.Name),
			StartTime:  req.StartTime,
			EndTime:    req.EndTime,
			Status:     appdb.BookingPending,
			Price:      req.Price,
		})
		if err != nil {
			return fmt.Errorf("creating booking: %w", err)
		}
		recorder.RecordTx(ctx, tx, created.ID, audit.EventCreated, actorLabel(req.UserID, req.Email))
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Int64("facility_id", req.FacilityID).Msg("Failed to create booking")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to create booking")
		return
	}

	limiter.RecordSubmit(req.Email, ip)
	_ = apiutil.WriteJSON(w, http.StatusCreated, created)
}

// POST /api/v1/bookings/{id}/cancel
func HandleCancel(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	logger := log.Ctx(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	existing, err := database.Q().GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "booking not found")
			return
		}
		logger.Error().Err(err).Int64("booking_id", id).Msg("Failed to load booking")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load booking")
		return
	}
	if existing.Status != appdb.BookingPending && existing.Status != appdb.BookingConfirmed {
		apiutil.WriteError(w, http.StatusConflict, "booking is not active")
		return
	}

	err = database.RunInTx(ctx, func(tx *appdb.Queries) error {
		if err := tx.UpdateBookingStatus(ctx, id, appdb.BookingCancelled); err != nil {
			return err
		}
		recorder.RecordTx(ctx, tx, id, audit.EventCancelled, existing.Email)
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Int64("booking_id", id).Msg("Failed to cancel booking")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to cancel booking")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "booking_id": id})
}

func bookingLockKey(facilityID int64, start time.Time) string {
	return fmt.Sprintf("booking:%d:%s", facilityID, start.UTC().Format(time.RFC3339))
}

func actorLabel(userID *int64, email string) string {
	if userID != nil {
		return fmt.Sprintf("user:%d", *userID)
	}
	return email
}

func toNullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func ready(w http.ResponseWriter) bool {
	if database == nil {
		log.Error().Msg("Booking handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}
	return true
}

// internal/api/trust/handlers.go
package trust

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rallyworks/courtguard/internal/api/apiutil"
	"github.com/rallyworks/courtguard/internal/trust"
)

var (
	machine  *trust.Machine
	initOnce sync.Once
)

const trustQueryTimeout = 5 * time.Second

func InitHandlers(tm *trust.Machine) {
	if tm == nil {
		return
	}
	initOnce.Do(func() {
		machine = tm
	})
}

// GET /api/v1/trust/can-book?user_id=N
func HandleCanBook(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid or missing user_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), trustQueryTimeout)
	defer cancel()

	eligibility, err := machine.CanUserBook(ctx, userID)
	if err != nil {
		if errors.Is(err, trust.ErrUserNotFound) {
			apiutil.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("Eligibility check failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to check eligibility")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, eligibility)
}

type noShowReportRequest struct {
	BookingID  int64  `json:"booking_id"`
	ReporterID int64  `json:"reporter_id"`
	Reason     string `json:"reason,omitempty"`
}

// POST /api/v1/trust/no-show-reports
func HandleReportNoShow(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	var req noShowReportRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BookingID == 0 || req.ReporterID == 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "booking_id and reporter_id are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), trustQueryTimeout)
	defer cancel()

	result, err := machine.ReportNoShow(ctx, req.BookingID, req.ReporterID, req.Reason)
	if err != nil {
		status, message := reportErrorStatus(err)
		if status == http.StatusInternalServerError {
			log.Ctx(r.Context()).Error().Err(err).Int64("booking_id", req.BookingID).Msg("No-show report failed")
		}
		apiutil.WriteError(w, status, message)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusCreated, result)
}

type completionRequest struct {
	BookingID int64 `json:"booking_id"`
}

// POST /api/v1/trust/completions
func HandleProcessCompletion(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	var req completionRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BookingID == 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "booking_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), trustQueryTimeout)
	defer cancel()

	result, err := machine.ProcessBookingCompletion(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, trust.ErrSlotNotEnded) {
			apiutil.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Int64("booking_id", req.BookingID).Msg("Completion processing failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to process completion")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, result)
}

func reportErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, trust.ErrBookingNotFound), errors.Is(err, trust.ErrUserNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, trust.ErrDuplicateReport):
		return http.StatusConflict, err.Error()
	case errors.Is(err, trust.ErrReportWindowExpired),
		errors.Is(err, trust.ErrSlotNotEnded),
		errors.Is(err, trust.ErrNoBookingUser):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, trust.ErrNotOrganizationMember):
		return http.StatusForbidden, err.Error()
	default:
		return http.StatusInternalServerError, "failed to file no-show report"
	}
}

func ready(w http.ResponseWriter) bool {
	if machine == nil {
		log.Error().Msg("Trust handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}
	return true
}

// internal/api/admin/handlers.go
package admin

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rallyworks/courtguard/internal/api/apiutil"
	"github.com/rallyworks/courtguard/internal/authz"
	appdb "github.com/rallyworks/courtguard/internal/db"
	"github.com/rallyworks/courtguard/internal/trust"
)

var (
	database *appdb.DB
	machine  *trust.Machine
	initOnce sync.Once
)

const adminQueryTimeout = 30 * time.Second

func InitHandlers(db *appdb.DB, tm *trust.Machine) {
	if db == nil {
		return
	}
	initOnce.Do(func() {
		database = db
		machine = tm
	})
}

// POST /api/v1/admin/expire-strikes
//
// Manual trigger for the nightly expiry job. Idempotent: a second call
// finds nothing left to expire.
func HandleExpireStrikes(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	expired, err := machine.ExpireOldStrikes(ctx)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Strike expiry failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to expire strikes")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{"expired_strikes": expired})
}

type inviteRequest struct {
	ActorID        int64  `json:"actor_id"`
	OrganizationID int64  `json:"organization_id"`
	UserID         int64  `json:"user_id"`
	Role           string `json:"role"`
}

// POST /api/v1/admin/members/invite
func HandleInviteMember(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	var req inviteRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ActorID == 0 || req.OrganizationID == 0 || req.UserID == 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "actor_id, organization_id, and user_id are required")
		return
	}
	if req.Role != "admin" {
		if _, err := authz.ParseMemberRole(req.Role); err != nil {
			apiutil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	err := authz.InviteMember(ctx, database.Q(), req.ActorID, req.OrganizationID, req.UserID, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, authz.ErrAdminRole):
			apiutil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, authz.ErrForbidden), errors.Is(err, authz.ErrUnauthenticated):
			apiutil.WriteError(w, http.StatusForbidden, "not authorized to invite members")
		default:
			log.Ctx(r.Context()).Error().Err(err).
				Int64("organization_id", req.OrganizationID).
				Msg("Member invite failed")
			apiutil.WriteError(w, http.StatusInternalServerError, "failed to invite member")
		}
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":         true,
		"organization_id": req.OrganizationID,
		"user_id":         req.UserID,
		"role":            req.Role,
	})
}

func ready(w http.ResponseWriter) bool {
	if database == nil {
		log.Error().Msg("Admin handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}
	return true
}

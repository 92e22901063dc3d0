// internal/api/slotblocks/handlers.go
package slotblocks

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rallyworks/courtguard/internal/api/apiutil"
	"github.com/rallyworks/courtguard/internal/authz"
	appdb "github.com/rallyworks/courtguard/internal/db"
	"github.com/rallyworks/courtguard/internal/slotblock"
)

var (
	engine   *slotblock.Engine
	initOnce sync.Once
)

const blockQueryTimeout = 10 * time.Second

func InitHandlers(e *slotblock.Engine) {
	if e == nil {
		return
	}
	initOnce.Do(func() {
		engine = e
	})
}

type createRequest struct {
	ActorID int64          `json:"actor_id"`
	Rule    slotblock.Rule `json:"rule"`
}

// POST /api/v1/slot-blocks
func HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	var req createRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ActorID == 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "actor_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), blockQueryTimeout)
	defer cancel()

	blocks, err := engine.Create(ctx, req.ActorID, req.Rule)
	if err != nil {
		status, message := createErrorStatus(err)
		if status == http.StatusInternalServerError {
			log.Ctx(r.Context()).Error().Err(err).Int64("actor_id", req.ActorID).Msg("Slot block creation failed")
		}
		apiutil.WriteError(w, status, message)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusCreated, map[string]any{
		"blocks_created": len(blocks),
		"blocks":         blocks,
	})
}

// GET /api/v1/slot-blocks?actor_id=N&court_id=N&from=RFC3339&to=RFC3339
func HandleList(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	query := r.URL.Query()
	actorID, err := strconv.ParseInt(query.Get("actor_id"), 10, 64)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid or missing actor_id")
		return
	}

	var filters slotblock.ListFilters
	if raw := query.Get("court_id"); raw != "" {
		courtID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			apiutil.WriteError(w, http.StatusBadRequest, "invalid court_id")
			return
		}
		filters.CourtID = sql.NullInt64{Int64: courtID, Valid: true}
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apiutil.WriteError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		filters.From = sql.NullTime{Time: from, Valid: true}
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apiutil.WriteError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		filters.To = sql.NullTime{Time: to, Valid: true}
	}

	ctx, cancel := context.WithTimeout(r.Context(), blockQueryTimeout)
	defer cancel()

	blocks, err := engine.List(ctx, actorID, filters)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Int64("actor_id", actorID).Msg("Slot block listing failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to list slot blocks")
		return
	}
	if blocks == nil {
		blocks = []appdb.SlotBlockWithOrg{}
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, blocks)
}

type deleteRequest struct {
	ActorID int64   `json:"actor_id"`
	IDs     []int64 `json:"ids"`
}

// DELETE /api/v1/slot-blocks
func HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !ready(w) {
		return
	}
	var req deleteRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ActorID == 0 || len(req.IDs) == 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "actor_id and ids are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), blockQueryTimeout)
	defer cancel()

	deleted, err := engine.Delete(ctx, req.ActorID, req.IDs)
	if err != nil {
		if errors.Is(err, authz.ErrForbidden) || errors.Is(err, authz.ErrUnauthenticated) {
			apiutil.WriteError(w, http.StatusForbidden, "not authorized to delete these blocks")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Int64("actor_id", req.ActorID).Msg("Slot block deletion failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to delete slot blocks")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func createErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, slotblock.ErrNoCourts),
		errors.Is(err, slotblock.ErrInvalidInterval),
		errors.Is(err, slotblock.ErrEndDateRequired):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, authz.ErrForbidden), errors.Is(err, authz.ErrUnauthenticated):
		return http.StatusForbidden, "not authorized to block these courts"
	default:
		return http.StatusInternalServerError, "failed to create slot blocks"
	}
}

func ready(w http.ResponseWriter) bool {
	if engine == nil {
		log.Error().Msg("Slot block handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}
	return true
}

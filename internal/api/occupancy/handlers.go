// internal/api/occupancy/handlers.go
package occupancy

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rallyworks/courtguard/internal/api/apiutil"
	"github.com/rallyworks/courtguard/internal/occupancy"
)

var (
	aggregator *occupancy.Aggregator
	initOnce   sync.Once
)

const occupancyQueryTimeout = 15 * time.Second

func InitHandlers(a *occupancy.Aggregator) {
	if a == nil {
		return
	}
	initOnce.Do(func() {
		aggregator = a
	})
}

// GET /api/v1/occupancy?from=2025-06-01&to=2025-06-07&facility_id=N&sport_category_ids=1,2&view=days
func HandleQuery(w http.ResponseWriter, r *http.Request) {
	if aggregator == nil {
		log.Error().Msg("Occupancy handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	query := r.URL.Query()

	from, err := parseDate(query.Get("from"))
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid or missing from date (YYYY-MM-DD)")
		return
	}
	to, err := parseDate(query.Get("to"))
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid or missing to date (YYYY-MM-DD)")
		return
	}
	if to.Before(from) {
		apiutil.WriteError(w, http.StatusBadRequest, "to date must not precede from date")
		return
	}

	req := occupancy.Request{
		From:     from,
		To:       to,
		ViewMode: occupancy.ViewDays,
	}
	if raw := query.Get("view"); raw != "" {
		req.ViewMode = occupancy.ViewMode(raw)
	}
	if raw := query.Get("facility_id"); raw != "" {
		facilityID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			apiutil.WriteError(w, http.StatusBadRequest, "invalid facility_id")
			return
		}
		req.FacilityID = sql.NullInt64{Int64: facilityID, Valid: true}
	}
	if raw := query.Get("sport_category_ids"); raw != "" {
		ids, err := parseIDList(raw)
		if err != nil {
			apiutil.WriteError(w, http.StatusBadRequest, "invalid sport_category_ids")
			return
		}
		req.SportCategoryIDs = ids
	}

	ctx, cancel := context.WithTimeout(r.Context(), occupancyQueryTimeout)
	defer cancel()

	report, err := aggregator.Query(ctx, req)
	if err != nil {
		if strings.Contains(err.Error(), "unknown view mode") {
			apiutil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("Occupancy query failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to compute occupancy")
		return
	}
	if report == nil {
		report = []occupancy.CourtOccupancy{}
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, report)
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}

func parseIDList(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

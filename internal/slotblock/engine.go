// internal/slotblock/engine.go
package slotblock

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rallyworks/courtguard/internal/authz"
	"github.com/rallyworks/courtguard/internal/db"
)

type Engine struct {
	database *db.DB
}

func NewEngine(database *db.DB) *Engine {
	return &Engine{database: database}
}

// Create expands the rule and inserts one row per court per occurrence.
// The actor must pass the owner check against every organization owning a
// referenced court; multi-court rules may span organizations and all of
// them must authorize.
func (e *Engine) Create(ctx context.Context, actorID int64, rule Rule) ([]db.SlotBlock, error) {
	occurrences, err := ExpandRule(rule)
	if err != nil {
		return nil, err
	}

	q := e.database.Q()
	courtOrgs, err := q.ListCourtOrganizations(ctx, rule.CourtIDs)
	if err != nil {
		return nil, fmt.Errorf("resolving court organizations: %w", err)
	}
	if len(courtOrgs) != len(dedupe(rule.CourtIDs)) {
		return nil, fmt.Errorf("one or more courts not found")
	}

	orgIDs := distinctOrgs(courtOrgs)
	if err := authz.RequireOwnerAction(ctx, q, actorID, orgIDs); err != nil {
		return nil, err
	}

	isRecurring := rule.RecurringType != ""
	recurringType := sql.NullString{String: string(rule.RecurringType), Valid: isRecurring}
	var endDate sql.NullTime
	// Weekday blocks are open-ended; the stored end date stays null.
	if rule.RecurringEndDate != nil && rule.RecurringType != db.RecurringWeekdays {
		endDate = sql.NullTime{Time: *rule.RecurringEndDate, Valid: true}
	}

	var created []db.SlotBlock
	err = e.database.RunInTx(ctx, func(tx *db.Queries) error {
		for _, courtID := range rule.CourtIDs {
			for _, occ := range occurrences {
				block, err := tx.InsertSlotBlock(ctx, db.InsertSlotBlockParams{
					CourtID:          courtID,
					StartTime:        occ.StartTime,
					EndTime:          occ.EndTime,
					Reason:           rule.Reason,
					IsRecurring:      isRecurring,
					RecurringType:    recurringType,
					RecurringEndDate: endDate,
					DayOfWeek:        sql.NullInt64{Int64: int64(occ.DayOfWeek), Valid: isRecurring},
					CreatedBy:        actorID,
				})
				if err != nil {
					return fmt.Errorf("inserting slot block: %w", err)
				}
				created = append(created, block)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Int64("actor_id", actorID).
		Int("courts", len(rule.CourtIDs)).
		Int("blocks", len(created)).
		Str("reason", rule.Reason).
		Msg("Slot blocks created")

	return created, nil
}

type ListFilters struct {
	CourtID sql.NullInt64
	From    sql.NullTime
	To      sql.NullTime
}

// List returns the blocks the actor may see. Access is computed once per
// organization and reused across all blocks sharing it, not re-checked
// per row.
func (e *Engine) List(ctx context.Context, actorID int64, filters ListFilters) ([]db.SlotBlockWithOrg, error) {
	q := e.database.Q()
	blocks, err := q.ListSlotBlocks(ctx, db.ListSlotBlocksParams{
		CourtID: filters.CourtID,
		From:    filters.From,
		To:      filters.To,
	})
	if err != nil {
		return nil, fmt.Errorf("listing slot blocks: %w", err)
	}

	access := make(map[int64]bool)
	visible := make([]db.SlotBlockWithOrg, 0, len(blocks))
	for _, block := range blocks {
		allowed, ok := access[block.OrganizationID]
		if !ok {
			role, err := authz.ResolveRole(ctx, q, actorID, block.OrganizationID)
			if err != nil {
				return nil, fmt.Errorf("resolving access for org %d: %w", block.OrganizationID, err)
			}
			allowed = authz.CanViewOrganization(role)
			access[block.OrganizationID] = allowed
		}
		if allowed {
			visible = append(visible, block)
		}
	}
	return visible, nil
}

// Delete removes blocks by ID after the actor passes the owner check for
// every owning organization.
func (e *Engine) Delete(ctx context.Context, actorID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	q := e.database.Q()
	blocks, err := q.GetSlotBlocksByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("loading slot blocks: %w", err)
	}
	if len(blocks) == 0 {
		return 0, nil
	}

	orgSet := make(map[int64]struct{})
	for _, block := range blocks {
		orgSet[block.OrganizationID] = struct{}{}
	}
	orgIDs := make([]int64, 0, len(orgSet))
	for orgID := range orgSet {
		orgIDs = append(orgIDs, orgID)
	}
	if err := authz.RequireOwnerAction(ctx, q, actorID, orgIDs); err != nil {
		return 0, err
	}

	deleted, err := q.DeleteSlotBlocksByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting slot blocks: %w", err)
	}

	log.Ctx(ctx).Info().
		Int64("actor_id", actorID).
		Int64("deleted", deleted).
		Msg("Slot blocks deleted")

	return deleted, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	var out []int64
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func distinctOrgs(courtOrgs []db.CourtOrganization) []int64 {
	seen := make(map[int64]struct{}, len(courtOrgs))
	var out []int64
	for _, co := range courtOrgs {
		if _, ok := seen[co.OrganizationID]; ok {
			continue
		}
		seen[co.OrganizationID] = struct{}{}
		out = append(out, co.OrganizationID)
	}
	return out
}

package slotblock

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rallyworks/courtguard/internal/authz"
	"github.com/rallyworks/courtguard/internal/db"
	"github.com/rallyworks/courtguard/internal/testutil"
)

type fixture struct {
	db     *db.DB
	engine *Engine
	orgID  int64
	court  db.Court
	owner  db.User
	member db.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	q := database.Q()

	org, err := q.CreateOrganization(ctx, "Rally Sports Club", "rally-sports")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	facility, err := q.CreateFacility(ctx, db.CreateFacilityParams{
		OrganizationID: org.ID,
		Name:           "Downtown Courts",
		Slug:           "downtown",
	})
	if err != nil {
		t.Fatalf("create facility: %v", err)
	}
	court, err := q.CreateCourt(ctx, db.CreateCourtParams{FacilityID: facility.ID, Name: "Court 1"})
	if err != nil {
		t.Fatalf("create court: %v", err)
	}

	owner, err := q.CreateUser(ctx, db.CreateUserParams{Email: "owner@rally.example", Name: "Org Owner", EmailVerified: true})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if err := q.CreateMember(ctx, org.ID, owner.ID, "owner"); err != nil {
		t.Fatalf("create owner membership: %v", err)
	}

	member, err := q.CreateUser(ctx, db.CreateUserParams{Email: "member@rally.example", Name: "Org Member", EmailVerified: true})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	if err := q.CreateMember(ctx, org.ID, member.ID, "member"); err != nil {
		t.Fatalf("create member membership: %v", err)
	}

	return &fixture{
		db:     database,
		engine: NewEngine(database),
		orgID:  org.ID,
		court:  court,
		owner:  owner,
		member: member,
	}
}

func weeklyRule(courtID int64) Rule {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC)
	return Rule{
		CourtIDs:         []int64{courtID},
		StartTime:        start,
		EndTime:          start.Add(time.Hour),
		Reason:           "lessons",
		RecurringType:    "weekly",
		RecurringEndDate: &end,
	}
}

func TestEngineCreateWeekly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	blocks, err := f.engine.Create(ctx, f.owner.ID, weeklyRule(f.court.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(blocks) != 4 {
		t.Fatalf("blocks = %d, want 4 Mondays", len(blocks))
	}
	for _, block := range blocks {
		if block.CourtID != f.court.ID {
			t.Errorf("court = %d, want %d", block.CourtID, f.court.ID)
		}
		if !block.IsRecurring || !block.RecurringType.Valid || block.RecurringType.String != "weekly" {
			t.Errorf("recurrence not stored: %+v", block)
		}
		if !block.DayOfWeek.Valid || time.Weekday(block.DayOfWeek.Int64) != time.Monday {
			t.Errorf("day of week = %+v, want Monday", block.DayOfWeek)
		}
	}
}

func TestEngineCreateDeniesNonOwner(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Create(context.Background(), f.member.ID, weeklyRule(f.court.ID))
	if !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("error = %v, want ErrForbidden", err)
	}
}

func TestEngineCreateAllowsPlatformAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.db.Q().CreateUser(ctx, db.CreateUserParams{
		Email: "admin@platform.example", Name: "Platform Admin", EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if _, err := f.db.ExecContext(ctx, "UPDATE users SET platform_admin = 1 WHERE id = ?", admin.ID); err != nil {
		t.Fatalf("grant platform admin: %v", err)
	}

	blocks, err := f.engine.Create(ctx, admin.ID, weeklyRule(f.court.ID))
	if err != nil {
		t.Fatalf("Create as platform admin: %v", err)
	}
	if len(blocks) == 0 {
		t.Error("no blocks created")
	}
}

func TestEngineCreateUnknownCourt(t *testing.T) {
	f := newFixture(t)

	rule := weeklyRule(99999)
	if _, err := f.engine.Create(context.Background(), f.owner.ID, rule); err == nil {
		t.Fatal("expected error for unknown court")
	}
}

func TestEngineListFiltersByAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Create(ctx, f.owner.ID, weeklyRule(f.court.ID)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	t.Run("member sees own org blocks", func(t *testing.T) {
		blocks, err := f.engine.List(ctx, f.member.ID, ListFilters{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(blocks) != 4 {
			t.Errorf("blocks = %d, want 4", len(blocks))
		}
	})

	t.Run("outsider sees nothing", func(t *testing.T) {
		outsider, err := f.db.Q().CreateUser(ctx, db.CreateUserParams{
			Email: "outsider@example.com", Name: "Out Sider", EmailVerified: true,
		})
		if err != nil {
			t.Fatalf("create outsider: %v", err)
		}
		blocks, err := f.engine.List(ctx, outsider.ID, ListFilters{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(blocks) != 0 {
			t.Errorf("blocks = %d, want 0", len(blocks))
		}
	})

	t.Run("time filter narrows results", func(t *testing.T) {
		from := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
		blocks, err := f.engine.List(ctx, f.owner.ID, ListFilters{
			From: sql.NullTime{Time: from, Valid: true},
		})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(blocks) != 2 {
			t.Errorf("blocks = %d, want the June 16 and 23 occurrences", len(blocks))
		}
	})
}

func TestEngineDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	blocks, err := f.engine.Create(ctx, f.owner.ID, weeklyRule(f.court.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ids := []int64{blocks[0].ID, blocks[1].ID}

	t.Run("member cannot delete", func(t *testing.T) {
		if _, err := f.engine.Delete(ctx, f.member.ID, ids); !errors.Is(err, authz.ErrForbidden) {
			t.Fatalf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("owner deletes individual occurrences", func(t *testing.T) {
		deleted, err := f.engine.Delete(ctx, f.owner.ID, ids)
		if err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if deleted != 2 {
			t.Errorf("deleted = %d, want 2", deleted)
		}
		remaining, err := f.engine.List(ctx, f.owner.ID, ListFilters{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(remaining) != 2 {
			t.Errorf("remaining = %d, want 2", len(remaining))
		}
	})

	t.Run("deleting nothing is a no-op", func(t *testing.T) {
		deleted, err := f.engine.Delete(ctx, f.owner.ID, []int64{99999})
		if err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if deleted != 0 {
			t.Errorf("deleted = %d, want 0", deleted)
		}
	})
}

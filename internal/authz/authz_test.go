package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/rallyworks/courtguard/internal/db"
	"github.com/rallyworks/courtguard/internal/testutil"
)

type fixture struct {
	db     *db.DB
	orgID  int64
	owner  db.User
	member db.User
	admin  db.User
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

	admin, err := q.CreateUser(ctx, db.CreateUserParams{Email: "admin@platform.example", Name: "Platform Admin", EmailVerified: true})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if _, err := database.ExecContext(ctx, "UPDATE users SET platform_admin = 1 WHERE id = ?", admin.ID); err != nil {
		t.Fatalf("grant platform admin: %v", err)
	}

	return &fixture{db: database, orgID: org.ID, owner: owner, member: member, admin: admin}
}

func TestResolveRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.db.Q()

	cases := []struct {
		name   string
		userID int64
		want   Role
	}{
		{"owner", f.owner.ID, RoleOrgOwner},
		{"member", f.member.ID, RoleOrgMember},
		{"platform admin outranks membership", f.admin.ID, RolePlatformAdmin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			role, err := ResolveRole(ctx, q, tc.userID, f.orgID)
			if err != nil {
				t.Fatalf("ResolveRole: %v", err)
			}
			if role != tc.want {
				t.Errorf("role = %v, want %v", role, tc.want)
			}
		})
	}

	t.Run("non-member resolves to none", func(t *testing.T) {
		outsider, err := q.CreateUser(ctx, db.CreateUserParams{Email: "outsider@example.com", Name: "Out Sider", EmailVerified: true})
		if err != nil {
			t.Fatalf("create outsider: %v", err)
		}
		role, err := ResolveRole(ctx, q, outsider.ID, f.orgID)
		if err != nil {
			t.Fatalf("ResolveRole: %v", err)
		}
		if role != RoleNone {
			t.Errorf("role = %v, want RoleNone", role)
		}
	})

	t.Run("unknown user is unauthenticated", func(t *testing.T) {
		if _, err := ResolveRole(ctx, q, 99999, f.orgID); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("error = %v, want ErrUnauthenticated", err)
		}
	})
}

func TestRoleCapabilities(t *testing.T) {
	cases := []struct {
		role     Role
		canOwn   bool
		canView  bool
	}{
		{RolePlatformAdmin, true, true},
		{RoleOrgOwner, true, true},
		{RoleOrgMember, false, true},
		{RoleNone, false, false},
	}
	for _, tc := range cases {
		if got := CanPerformOwnerAction(tc.role); got != tc.canOwn {
			t.Errorf("CanPerformOwnerAction(%v) = %v, want %v", tc.role, got, tc.canOwn)
		}
		if got := CanViewOrganization(tc.role); got != tc.canView {
			t.Errorf("CanViewOrganization(%v) = %v, want %v", tc.role, got, tc.canView)
		}
	}
}

func TestRequireOwnerAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.db.Q()

	// A second organization where the owner has no standing.
	other, err := q.CreateOrganization(ctx, "Riverside Club", "riverside")
	if err != nil {
		t.Fatalf("create second org: %v", err)
	}

	t.Run("owner authorized for own org", func(t *testing.T) {
		if err := RequireOwnerAction(ctx, q, f.owner.ID, []int64{f.orgID}); err != nil {
			t.Fatalf("RequireOwnerAction: %v", err)
		}
	})

	t.Run("every org must authorize", func(t *testing.T) {
		err := RequireOwnerAction(ctx, q, f.owner.ID, []int64{f.orgID, other.ID})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("platform admin authorized everywhere", func(t *testing.T) {
		if err := RequireOwnerAction(ctx, q, f.admin.ID, []int64{f.orgID, other.ID}); err != nil {
			t.Fatalf("RequireOwnerAction: %v", err)
		}
	})
}

func TestInviteMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.db.Q()

	invitee, err := q.CreateUser(ctx, db.CreateUserParams{Email: "new@example.com", Name: "New Member", EmailVerified: true})
	if err != nil {
		t.Fatalf("create invitee: %v", err)
	}

	t.Run("rejects admin role before any lookup", func(t *testing.T) {
		// Even a nonexistent actor gets the role error, not an auth error.
		err := InviteMember(ctx, q, 99999, f.orgID, invitee.ID, "admin")
		if !errors.Is(err, ErrAdminRole) {
			t.Fatalf("error = %v, want ErrAdminRole", err)
		}
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		if err := InviteMember(ctx, q, f.owner.ID, f.orgID, invitee.ID, "superuser"); err == nil {
			t.Fatal("unknown role accepted")
		}
	})

	t.Run("member cannot invite", func(t *testing.T) {
		err := InviteMember(ctx, q, f.member.ID, f.orgID, invitee.ID, "member")
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("owner invites member", func(t *testing.T) {
		if err := InviteMember(ctx, q, f.owner.ID, f.orgID, invitee.ID, "member"); err != nil {
			t.Fatalf("InviteMember: %v", err)
		}
		role, err := q.GetMemberRole(ctx, f.orgID, invitee.ID)
		if err != nil {
			t.Fatalf("GetMemberRole: %v", err)
		}
		if role != "member" {
			t.Errorf("stored role = %q, want member", role)
		}
	})
}

// Package authz resolves what a user may do to an organization's
// resources. Roles are a closed set matched exhaustively at every
// decision point; there is deliberately no "admin" membership role, so
// platform-level privilege can never be granted through the member
// invitation flow.
package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rallyworks/courtguard/internal/db"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrAdminRole       = errors.New("admin is not an assignable membership role")
)

// Role is the closed membership/platform role variant.
type Role int

const (
	RoleNone Role = iota
	RoleOrgMember
	RoleOrgOwner
	RolePlatformAdmin
)

func (r Role) String() string {
	switch r {
	case RoleOrgMember:
		return "member"
	case RoleOrgOwner:
		return "owner"
	case RolePlatformAdmin:
		return "platform_admin"
	default:
		return "none"
	}
}

// ParseMemberRole maps a stored membership role string to the variant.
// Only "owner" and "member" are valid membership roles.
func ParseMemberRole(role string) (Role, error) {
	switch role {
	case "owner":
		return RoleOrgOwner, nil
	case "member":
		return RoleOrgMember, nil
	default:
		return RoleNone, fmt.Errorf("unknown membership role %q", role)
	}
}

// ResolveRole determines a user's effective role for an organization.
// Platform admins outrank any membership.
func ResolveRole(ctx context.Context, q *db.Queries, userID, organizationID int64) (Role, error) {
	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RoleNone, ErrUnauthenticated
		}
		return RoleNone, err
	}
	if user.PlatformAdmin {
		return RolePlatformAdmin, nil
	}

	role, err := q.GetMemberRole(ctx, organizationID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RoleNone, nil
		}
		return RoleNone, err
	}
	return ParseMemberRole(role)
}

// CanPerformOwnerAction reports whether the role may mutate an
// organization's resources (slot blocks, member management).
func CanPerformOwnerAction(role Role) bool {
	switch role {
	case RolePlatformAdmin, RoleOrgOwner:
		return true
	case RoleOrgMember, RoleNone:
		return false
	default:
		return false
	}
}

// CanViewOrganization reports whether the role may read an organization's
// non-public data.
func CanViewOrganization(role Role) bool {
	switch role {
	case RolePlatformAdmin, RoleOrgOwner, RoleOrgMember:
		return true
	case RoleNone:
		return false
	default:
		return false
	}
}

// RequireOwnerAction authorizes a mutation spanning one or more
// organizations. Every organization must authorize; the first refusal
// wins.
func RequireOwnerAction(ctx context.Context, q *db.Queries, userID int64, organizationIDs []int64) error {
	for _, orgID := range organizationIDs {
		role, err := ResolveRole(ctx, q, userID, orgID)
		if err != nil {
			return err
		}
		if !CanPerformOwnerAction(role) {
			return ErrForbidden
		}
	}
	return nil
}

// IsOrganizationMember reports whether the user belongs to the
// organization in any capacity.
func IsOrganizationMember(ctx context.Context, q *db.Queries, userID, organizationID int64) (bool, error) {
	role, err := ResolveRole(ctx, q, userID, organizationID)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return false, nil
		}
		return false, err
	}
	return CanViewOrganization(role), nil
}

// InviteMember adds a user to an organization with the given role string.
// The "admin" role is rejected unconditionally before any lookup: the
// schema CHECK is the backstop, this is the front door.
func InviteMember(ctx context.Context, q *db.Queries, actorID, organizationID, userID int64, role string) error {
	if role == "admin" {
		return ErrAdminRole
	}
	parsed, err := ParseMemberRole(role)
	if err != nil {
		return err
	}

	actorRole, err := ResolveRole(ctx, q, actorID, organizationID)
	if err != nil {
		return err
	}
	if !CanPerformOwnerAction(actorRole) {
		return ErrForbidden
	}

	return q.CreateMember(ctx, organizationID, userID, parsed.String())
}

// internal/db/members.go
package db

import (
	"context"
)

// GetMemberRole returns the membership role of a user within an
// organization, or sql.ErrNoRows if they are not a member.
func (q *Queries) GetMemberRole(ctx context.Context, organizationID, userID int64) (string, error) {
	var role string
	err := q.q.QueryRowContext(ctx, `
		SELECT role FROM organization_members
		WHERE organization_id = ? AND user_id = ?`,
		organizationID, userID,
	).Scan(&role)
	return role, err
}

func (q *Queries) CreateMember(ctx context.Context, organizationID, userID int64, role string) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES (?, ?, ?)`,
		organizationID, userID, role,
	)
	return err
}

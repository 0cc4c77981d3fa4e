package service

import (
	"context"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/google/uuid"
)

// memberRole returns the user's role inside the organization. ok is false if
// the user holds no seat there. The organization owner always counts as
// owner, seat or not.
func memberRole(ctx context.Context, q repository.Querier, org repository.Organization, userID uuid.UUID) (domain.MemberRole, bool, error) {
	if org.OwnerID == userID {
		return domain.MemberRoleOwner, true, nil
	}

	m, err := q.GetOrganizationMember(ctx, repository.GetOrganizationMemberParams{
		OrganizationID: org.ID,
		UserID:         userID,
	})
	if err != nil {
		if repository.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return domain.MemberRole(m.Role), true, nil
}

// requireManager fails with EFORBIDDEN unless actor is an owner or manager
// of the organization.
func requireManager(ctx context.Context, q repository.Querier, org repository.Organization, actorID uuid.UUID, op string) error {
	role, ok, err := memberRole(ctx, q, org, actorID)
	if err != nil {
		return domain.Internal(err, op, "failed to check membership")
	}
	if !ok || !role.CanManage() {
		return domain.Forbidden(op, "only organization owners and managers can do this")
	}
	return nil
}

// requireMember fails with EFORBIDDEN unless user holds a seat in the
// organization (or owns it).
func requireMember(ctx context.Context, q repository.Querier, org repository.Organization, userID uuid.UUID, op string) (domain.MemberRole, error) {
	role, ok, err := memberRole(ctx, q, org, userID)
	if err != nil {
		return "", domain.Internal(err, op, "failed to check membership")
	}
	if !ok {
		return "", domain.Forbidden(op, "user is not a member of this organization")
	}
	return role, nil
}

// lockOrganization takes the organization's row lock for the rest of the
// transaction.
func lockOrganization(ctx context.Context, q repository.Querier, id uuid.UUID, op string) (repository.Organization, error) {
	org, err := q.LockOrganizationForUpdate(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return org, domain.NotFound(op, "organization", id.String())
		}
		return org, domain.Internal(err, op, "failed to lock organization")
	}
	return org, nil
}

// Package authz holds the pure role-permission decisions for team
// membership mutations. Functions here take already-resolved roles and do
// no I/O; the membership service is responsible for loading them.
package authz

import (
	"errors"
	"fmt"

	"github.com/reddert/notification-system/internal/domain"
)

// ErrInsufficientPermission is returned when the requester's role does not
// allow the attempted mutation.
var ErrInsufficientPermission = errors.New("insufficient permission")

// CanAddMember resolves the role a new membership will receive. When no
// explicit role is requested the fixed default applies and anyone may add.
// An explicit role requires an OWNER or ADMIN requester and may not exceed
// the requester's own level. OWNER is never assignable here; a team keeps
// exactly one owner and the role only moves through CanChangeRole's
// transfer path. requesterRole is empty when the requester holds no
// membership in the team.
func CanAddMember(requesterRole domain.Role, requested domain.Role) (domain.Role, error) {
	if requested == "" {
		return domain.DefaultRole, nil
	}
	if requested == domain.RoleOwner {
		return "", fmt.Errorf("%w: ownership is granted only by transfer from the current owner", ErrInsufficientPermission)
	}
	if requesterRole != domain.RoleOwner && requesterRole != domain.RoleAdmin {
		return "", fmt.Errorf("%w: only owners and admins may choose a role when adding", ErrInsufficientPermission)
	}
	if !requesterRole.AtLeast(requested) {
		return "", fmt.Errorf("%w: cannot assign role %s above own role %s", ErrInsufficientPermission, requested, requesterRole)
	}
	return requested, nil
}

// CanRemoveMember decides whether requester may remove target. Owners may
// remove anyone; admins only members and guests. An admin never removes a
// peer admin or the owner.
func CanRemoveMember(requesterRole, targetRole domain.Role) error {
	if requesterRole == domain.RoleOwner {
		return nil
	}
	if requesterRole == domain.RoleAdmin && domain.RoleAdmin.Above(targetRole) {
		return nil
	}
	return fmt.Errorf("%w: %s cannot remove %s", ErrInsufficientPermission, requesterRole, targetRole)
}

// CanChangeRole decides whether requester may move target from its current
// role to newRole. selfChange is true when requester and target are the
// same membership.
//
// The returned transfer flag marks an ownership transfer: the caller must
// also demote the requester to ADMIN in the same atomic step. An owner may
// otherwise set any member to any role, except demoting itself, which would
// leave the team ownerless and is only reachable through a transfer.
func CanChangeRole(requesterRole, targetCurrent, newRole domain.Role, selfChange bool) (transfer bool, err error) {
	switch requesterRole {
	case domain.RoleOwner:
		if newRole == domain.RoleOwner && !selfChange {
			return true, nil
		}
		if selfChange && newRole != domain.RoleOwner {
			return false, fmt.Errorf("%w: an owner cannot demote itself without designating a successor", ErrInsufficientPermission)
		}
		return false, nil
	case domain.RoleAdmin:
		if targetCurrent == domain.RoleOwner || targetCurrent == domain.RoleAdmin ||
			newRole == domain.RoleOwner || newRole == domain.RoleAdmin {
			return false, fmt.Errorf("%w: admins may only move users between %s and %s", ErrInsufficientPermission, domain.RoleMember, domain.RoleGuest)
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s may not change roles", ErrInsufficientPermission, requesterRole)
	}
}

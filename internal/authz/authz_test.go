package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reddert/notification-system/internal/domain"
)

func TestCanAddMemberDefaultRole(t *testing.T) {
	// No explicit role: anyone may add, the fixed default applies.
	for _, requester := range []domain.Role{"", domain.RoleGuest, domain.RoleMember, domain.RoleAdmin, domain.RoleOwner} {
		role, err := CanAddMember(requester, "")
		require.NoError(t, err, "requester %q", requester)
		assert.Equal(t, domain.RoleMember, role)
	}
}

func TestCanAddMemberExplicitRole(t *testing.T) {
	tests := []struct {
		name      string
		requester domain.Role
		requested domain.Role
		want      domain.Role
		denied    bool
	}{
		{name: "owner assigns admin", requester: domain.RoleOwner, requested: domain.RoleAdmin, want: domain.RoleAdmin},
		{name: "owner assigns owner", requester: domain.RoleOwner, requested: domain.RoleOwner, denied: true},
		{name: "admin assigns guest", requester: domain.RoleAdmin, requested: domain.RoleGuest, want: domain.RoleGuest},
		{name: "admin assigns admin", requester: domain.RoleAdmin, requested: domain.RoleAdmin, want: domain.RoleAdmin},
		{name: "admin assigns owner", requester: domain.RoleAdmin, requested: domain.RoleOwner, denied: true},
		{name: "member assigns guest", requester: domain.RoleMember, requested: domain.RoleGuest, denied: true},
		{name: "non-member assigns member", requester: "", requested: domain.RoleMember, denied: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, err := CanAddMember(tt.requester, tt.requested)
			if tt.denied {
				assert.ErrorIs(t, err, ErrInsufficientPermission)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, role)
		})
	}
}

func TestCanRemoveMember(t *testing.T) {
	tests := []struct {
		name      string
		requester domain.Role
		target    domain.Role
		denied    bool
	}{
		{name: "owner removes admin", requester: domain.RoleOwner, target: domain.RoleAdmin},
		{name: "owner removes owner", requester: domain.RoleOwner, target: domain.RoleOwner},
		{name: "admin removes member", requester: domain.RoleAdmin, target: domain.RoleMember},
		{name: "admin removes guest", requester: domain.RoleAdmin, target: domain.RoleGuest},
		{name: "admin removes admin", requester: domain.RoleAdmin, target: domain.RoleAdmin, denied: true},
		{name: "admin removes owner", requester: domain.RoleAdmin, target: domain.RoleOwner, denied: true},
		{name: "member removes guest", requester: domain.RoleMember, target: domain.RoleGuest, denied: true},
		{name: "guest removes guest", requester: domain.RoleGuest, target: domain.RoleGuest, denied: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanRemoveMember(tt.requester, tt.target)
			if tt.denied {
				assert.ErrorIs(t, err, ErrInsufficientPermission)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanChangeRole(t *testing.T) {
	tests := []struct {
		name       string
		requester  domain.Role
		current    domain.Role
		newRole    domain.Role
		selfChange bool
		transfer   bool
		denied     bool
	}{
		{name: "owner promotes member to owner", requester: domain.RoleOwner, current: domain.RoleMember, newRole: domain.RoleOwner, transfer: true},
		{name: "owner promotes guest to admin", requester: domain.RoleOwner, current: domain.RoleGuest, newRole: domain.RoleAdmin},
		{name: "owner demotes admin to guest", requester: domain.RoleOwner, current: domain.RoleAdmin, newRole: domain.RoleGuest},
		{name: "owner self-demotes to member", requester: domain.RoleOwner, current: domain.RoleOwner, newRole: domain.RoleMember, selfChange: true, denied: true},
		{name: "owner sets self to owner", requester: domain.RoleOwner, current: domain.RoleOwner, newRole: domain.RoleOwner, selfChange: true},
		{name: "admin moves member to guest", requester: domain.RoleAdmin, current: domain.RoleMember, newRole: domain.RoleGuest},
		{name: "admin moves guest to member", requester: domain.RoleAdmin, current: domain.RoleGuest, newRole: domain.RoleMember},
		{name: "admin promotes guest to owner", requester: domain.RoleAdmin, current: domain.RoleGuest, newRole: domain.RoleOwner, denied: true},
		{name: "admin promotes member to admin", requester: domain.RoleAdmin, current: domain.RoleMember, newRole: domain.RoleAdmin, denied: true},
		{name: "admin touches admin", requester: domain.RoleAdmin, current: domain.RoleAdmin, newRole: domain.RoleMember, denied: true},
		{name: "admin touches owner", requester: domain.RoleAdmin, current: domain.RoleOwner, newRole: domain.RoleMember, denied: true},
		{name: "member changes roles", requester: domain.RoleMember, current: domain.RoleGuest, newRole: domain.RoleMember, denied: true},
		{name: "guest changes roles", requester: domain.RoleGuest, current: domain.RoleGuest, newRole: domain.RoleMember, denied: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transfer, err := CanChangeRole(tt.requester, tt.current, tt.newRole, tt.selfChange)
			if tt.denied {
				assert.ErrorIs(t, err, ErrInsufficientPermission)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.transfer, transfer)
		})
	}
}

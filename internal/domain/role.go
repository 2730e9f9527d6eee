package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of membership roles, ordered by authority.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// ErrInvalidRole is returned when a role string does not name a known role.
var ErrInvalidRole = errors.New("invalid role")

// DefaultRole is assigned when a member is added without an explicit role.
const DefaultRole = RoleMember

var roleAuthority = map[Role]int{
	RoleGuest:  0,
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// ParseRole converts a case-insensitive role name into a Role.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleAuthority[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return role, nil
}

// Authority returns the role's rank in the total order (OWNER highest).
func (r Role) Authority() int {
	return roleAuthority[r]
}

// AtLeast reports whether r has authority greater than or equal to other.
func (r Role) AtLeast(other Role) bool {
	return roleAuthority[r] >= roleAuthority[other]
}

// Above reports whether r strictly outranks other.
func (r Role) Above(other Role) bool {
	return roleAuthority[r] > roleAuthority[other]
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleAuthority[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

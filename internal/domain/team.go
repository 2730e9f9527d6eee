package domain

import "time"

// Team is a container for memberships. A non-empty team always has a
// traceable owner; a team whose last promotable member departs is deleted.
type Team struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Membership binds one user to one team with exactly one role.
// Identity is the (UserID, TeamID) pair.
type Membership struct {
	TeamID    string
	UserID    string
	Role      Role
	CreatedAt time.Time
}

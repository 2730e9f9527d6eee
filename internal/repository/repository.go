package repository

import (
	"context"

	"github.com/reddert/notification-system/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, id string) error
	UserExists(ctx context.Context, id string) (bool, error)
}

// TeamRepository manages team records.
type TeamRepository interface {
	// CreateTeam persists the team and its creator's OWNER membership in
	// one transaction; a team is never observable without an owner.
	CreateTeam(ctx context.Context, team *domain.Team, owner *domain.Membership) error
	GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error)
	ListTeams(ctx context.Context) ([]domain.Team, error)
}

// MembershipRepository is the ground truth for (user, team) → role.
type MembershipRepository interface {
	GetMember(ctx context.Context, teamID, userID string) (*domain.Membership, error)
	ListTeamMembers(ctx context.Context, teamID string) ([]domain.Membership, error)
	ListUserMemberships(ctx context.Context, userID string) ([]domain.Membership, error)

	// WithTeamLock runs fn inside a transaction holding an exclusive lock
	// on the team row, serializing concurrent membership operations on the
	// same team. Returns ErrNotFound when the team does not exist; any
	// error from fn rolls the transaction back.
	WithTeamLock(ctx context.Context, teamID string, fn func(ctx context.Context, tx MembershipTx) error) error
}

// MembershipTx is the transactional store view handed to membership
// lifecycle operations while the team lock is held.
type MembershipTx interface {
	GetMember(ctx context.Context, teamID, userID string) (*domain.Membership, error)
	PutMember(ctx context.Context, member *domain.Membership) error
	DeleteMember(ctx context.Context, teamID, userID string) error
	HasMembers(ctx context.Context, teamID string) (bool, error)

	// FirstMemberWithRole returns the earliest-created membership holding
	// role, ties broken by user id, so succession is deterministic.
	FirstMemberWithRole(ctx context.Context, teamID string, role domain.Role) (*domain.Membership, error)

	DeleteTeam(ctx context.Context, teamID string) error
}

// NotificationRepository stores per-user notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *domain.Notification) error
	GetNotificationByID(ctx context.Context, id string) (*domain.Notification, error)
	ListNotificationsByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	SetNotificationRead(ctx context.Context, id string, read bool) error
	DeleteNotification(ctx context.Context, id string) error
}

package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/reddert/notification-system/internal/authz"
	"github.com/reddert/notification-system/internal/domain"
	"github.com/reddert/notification-system/internal/repository"
)

// ErrAlreadyMember is returned when adding a user who already holds a
// membership in the team.
var ErrAlreadyMember = errors.New("user is already a member of the team")

// Notifier delivers a message to a user. Delivery is best effort and never
// fails a membership operation.
type Notifier interface {
	Notify(ctx context.Context, userID, message string)
}

// Service sequences the authorization engine and the stores to run
// membership lifecycle operations. Every mutation executes inside a
// per-team lock so concurrent transfers and successions on one team
// serialize; either all of an operation's writes land or none do.
type Service struct {
	members  repository.MembershipRepository
	teams    repository.TeamRepository
	users    repository.UserRepository
	notifier Notifier
	logger   *slog.Logger
}

// New constructs the membership service.
func New(members repository.MembershipRepository, teams repository.TeamRepository, users repository.UserRepository, notifier Notifier, logger *slog.Logger) Service {
	return Service{members: members, teams: teams, users: users, notifier: notifier, logger: logger}
}

// RoleChange reports the memberships touched by a role change. Requester
// differs from its pre-change state only on ownership transfer.
type RoleChange struct {
	Target      domain.Membership
	Requester   domain.Membership
	Transferred bool
}

// event is a notification queued during a locked operation and emitted
// only after the transaction commits.
type event struct {
	userID  string
	message string
}

// AddMember adds userID to the team. Without an explicit role the fixed
// default applies; an explicit role needs an OWNER or ADMIN requester at
// or above that level.
func (s Service) AddMember(ctx context.Context, requesterID, teamID, userID, requestedRole string) (*domain.Membership, error) {
	var requested domain.Role
	if requestedRole != "" {
		parsed, err := domain.ParseRole(requestedRole)
		if err != nil {
			return nil, err
		}
		requested = parsed
	}

	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("team %s: %w", teamID, err)
	}
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}

	var member *domain.Membership
	err = s.members.WithTeamLock(ctx, teamID, func(ctx context.Context, tx repository.MembershipTx) error {
		if _, err := tx.GetMember(ctx, teamID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		// A requester without a membership carries the lowest authority;
		// that still allows default-role adds.
		var requesterRole domain.Role
		if requesterID != "" {
			if existing, err := tx.GetMember(ctx, teamID, requesterID); err == nil {
				requesterRole = existing.Role
			} else if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}

		role, err := authz.CanAddMember(requesterRole, requested)
		if err != nil {
			return err
		}
		member = &domain.Membership{
			TeamID:    teamID,
			UserID:    userID,
			Role:      role,
			CreatedAt: time.Now().UTC(),
		}
		return tx.PutMember(ctx, member)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("member added", "team_id", teamID, "user_id", userID, "role", member.Role)
	s.emit(ctx, event{userID: userID, message: fmt.Sprintf("You were added to team %s as %s.", team.Name, member.Role)})
	return member, nil
}

// ChangeRole moves the target to newRole on behalf of requesterID. An
// owner naming another member as OWNER performs an ownership transfer:
// the target's promotion and the requester's demotion to ADMIN commit
// together or not at all.
func (s Service) ChangeRole(ctx context.Context, requesterID, teamID, targetID, newRole string) (*RoleChange, error) {
	parsed, err := domain.ParseRole(newRole)
	if err != nil {
		return nil, err
	}
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("team %s: %w", teamID, err)
	}

	var change RoleChange
	var events []event
	err = s.members.WithTeamLock(ctx, teamID, func(ctx context.Context, tx repository.MembershipTx) error {
		requester, err := tx.GetMember(ctx, teamID, requesterID)
		if err != nil {
			return fmt.Errorf("requester %s: %w", requesterID, err)
		}
		target, err := tx.GetMember(ctx, teamID, targetID)
		if err != nil {
			return fmt.Errorf("target %s: %w", targetID, err)
		}

		transfer, err := authz.CanChangeRole(requester.Role, target.Role, parsed, requesterID == targetID)
		if err != nil {
			return err
		}

		target.Role = parsed
		if err := tx.PutMember(ctx, target); err != nil {
			return err
		}
		if transfer {
			requester.Role = domain.RoleAdmin
			if err := tx.PutMember(ctx, requester); err != nil {
				return err
			}
			events = append(events,
				event{userID: targetID, message: fmt.Sprintf("You are now the owner of team %s.", team.Name)},
				event{userID: requesterID, message: fmt.Sprintf("You handed ownership of team %s over and are now an admin.", team.Name)},
			)
		} else if requesterID != targetID {
			events = append(events, event{userID: targetID, message: fmt.Sprintf("Your role in team %s changed to %s.", team.Name, parsed)})
		}
		change = RoleChange{Target: *target, Requester: *requester, Transferred: transfer}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("role changed",
		"team_id", teamID,
		"requester_id", requesterID,
		"target_id", targetID,
		"new_role", change.Target.Role,
		"transfer", change.Transferred,
	)
	s.emit(ctx, events...)
	return &change, nil
}

// RemoveMember removes targetID from the team on behalf of requesterID.
// Removing yourself is a departure and runs succession instead of the
// removal permission check.
func (s Service) RemoveMember(ctx context.Context, requesterID, teamID, targetID string) error {
	if requesterID == targetID {
		return s.DepartTeam(ctx, targetID, teamID)
	}

	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return fmt.Errorf("team %s: %w", teamID, err)
	}

	err = s.members.WithTeamLock(ctx, teamID, func(ctx context.Context, tx repository.MembershipTx) error {
		requester, err := tx.GetMember(ctx, teamID, requesterID)
		if err != nil {
			return fmt.Errorf("requester %s: %w", requesterID, err)
		}
		target, err := tx.GetMember(ctx, teamID, targetID)
		if err != nil {
			return fmt.Errorf("target %s: %w", targetID, err)
		}
		if err := authz.CanRemoveMember(requester.Role, target.Role); err != nil {
			return err
		}
		return tx.DeleteMember(ctx, teamID, targetID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("member removed", "team_id", teamID, "requester_id", requesterID, "target_id", targetID)
	s.emit(ctx, event{userID: targetID, message: fmt.Sprintf("You were removed from team %s.", team.Name)})
	return nil
}

// DepartTeam removes the caller's own membership and runs succession:
// an ownerless team promotes its first admin, then its first member, and
// is deleted when only guests (or nobody) remain.
func (s Service) DepartTeam(ctx context.Context, userID, teamID string) error {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return fmt.Errorf("team %s: %w", teamID, err)
	}

	var events []event
	var teamDeleted bool
	err = s.members.WithTeamLock(ctx, teamID, func(ctx context.Context, tx repository.MembershipTx) error {
		member, err := tx.GetMember(ctx, teamID, userID)
		if err != nil {
			return fmt.Errorf("member %s: %w", userID, err)
		}
		if err := tx.DeleteMember(ctx, teamID, userID); err != nil {
			return err
		}

		remaining, err := tx.HasMembers(ctx, teamID)
		if err != nil {
			return err
		}
		if !remaining {
			teamDeleted = true
			return tx.DeleteTeam(ctx, teamID)
		}
		if member.Role != domain.RoleOwner {
			return nil
		}

		successor, err := s.findSuccessor(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if successor == nil {
			// Only guests remain; a guest is never promoted.
			teamDeleted = true
			return tx.DeleteTeam(ctx, teamID)
		}
		successor.Role = domain.RoleOwner
		if err := tx.PutMember(ctx, successor); err != nil {
			return err
		}
		events = append(events, event{userID: successor.UserID, message: fmt.Sprintf("You are now the owner of team %s.", team.Name)})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("member departed", "team_id", teamID, "user_id", userID, "team_deleted", teamDeleted)
	s.emit(ctx, events...)
	return nil
}

// findSuccessor picks the promotion candidate after an owner departs,
// preferring the earliest admin, then the earliest member.
func (s Service) findSuccessor(ctx context.Context, tx repository.MembershipTx, teamID string) (*domain.Membership, error) {
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleMember} {
		candidate, err := tx.FirstMemberWithRole(ctx, teamID, role)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// GetTeam returns a team record.
func (s Service) GetTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("team %s: %w", teamID, err)
	}
	return team, nil
}

// ListMembers returns all memberships of a team.
func (s Service) ListMembers(ctx context.Context, teamID string) ([]domain.Membership, error) {
	if _, err := s.teams.GetTeamByID(ctx, teamID); err != nil {
		return nil, fmt.Errorf("team %s: %w", teamID, err)
	}
	return s.members.ListTeamMembers(ctx, teamID)
}

// ListUserMemberships returns the memberships a user holds across teams.
func (s Service) ListUserMemberships(ctx context.Context, userID string) ([]domain.Membership, error) {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}
	return s.members.ListUserMemberships(ctx, userID)
}

func (s Service) emit(ctx context.Context, events ...event) {
	if s.notifier == nil {
		return
	}
	for _, e := range events {
		s.notifier.Notify(ctx, e.userID, e.message)
	}
}

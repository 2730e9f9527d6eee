package team

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/reddert/notification-system/internal/domain"
	"github.com/reddert/notification-system/internal/repository"
)

// Service handles team workflows.
type Service struct {
	repo   repository.TeamRepository
	users  repository.UserRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(repo repository.TeamRepository, users repository.UserRepository, logger *slog.Logger) Service {
	return Service{repo: repo, users: users, logger: logger}
}

var errInvalidTeamName = errors.New("team name is required")

// Create registers a team and records the creator as its owner in one
// atomic step, so a team never exists without an owner.
func (s Service) Create(ctx context.Context, creatorID, name, description string) (*domain.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errInvalidTeamName
	}
	exists, err := s.users.UserExists(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	now := time.Now().UTC()
	team := &domain.Team{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
	}
	owner := &domain.Membership{
		TeamID:    team.ID,
		UserID:    creatorID,
		Role:      domain.RoleOwner,
		CreatedAt: now,
	}
	if err := s.repo.CreateTeam(ctx, team, owner); err != nil {
		return nil, err
	}
	s.logger.Info("team created", "team_id", team.ID, "owner_id", creatorID)
	return team, nil
}

// Get returns a team by id.
func (s Service) Get(ctx context.Context, teamID string) (*domain.Team, error) {
	return s.repo.GetTeamByID(ctx, teamID)
}

// List returns all teams.
func (s Service) List(ctx context.Context) ([]domain.Team, error) {
	return s.repo.ListTeams(ctx)
}

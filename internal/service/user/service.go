package user

import (
	"context"
	"errors"
	"strings"

	"log/slog"

	"github.com/reddert/notification-system/internal/domain"
	"github.com/reddert/notification-system/internal/repository"
)

var errInvalidName = errors.New("user name is required")

// Service handles user profile workflows. Account creation lives in the
// auth service; this one covers reads and profile maintenance.
type Service struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(repo repository.UserRepository, logger *slog.Logger) Service {
	return Service{repo: repo, logger: logger}
}

// Get returns a user by id.
func (s Service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// List returns all users.
func (s Service) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

// Rename updates the user's display name.
func (s Service) Rename(ctx context.Context, userID, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errInvalidName
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Name = name
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes a user account.
func (s Service) Delete(ctx context.Context, userID string) error {
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", userID)
	return nil
}

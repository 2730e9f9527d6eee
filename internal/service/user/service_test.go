package user

import (
	"context"
	"io"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reddert/notification-system/internal/domain"
	"github.com/reddert/notification-system/internal/repository"
)

type stubRepo struct {
	users map[string]domain.User
}

func (r *stubRepo) CreateUser(ctx context.Context, u *domain.User) error {
	r.users[u.ID] = *u
	return nil
}

func (r *stubRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *stubRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (r *stubRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	return users, nil
}

func (r *stubRepo) UpdateUser(ctx context.Context, u *domain.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	r.users[u.ID] = *u
	return nil
}

func (r *stubRepo) DeleteUser(ctx context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *stubRepo) UserExists(ctx context.Context, id string) (bool, error) {
	_, ok := r.users[id]
	return ok, nil
}

func newTestService() (Service, *stubRepo) {
	repo := &stubRepo{users: map[string]domain.User{
		"alice": {ID: "alice", Name: "Alice", Email: "alice@example.com"},
	}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, log), repo
}

func TestRename(t *testing.T) {
	svc, repo := newTestService()

	user, err := svc.Rename(context.Background(), "alice", "  Alice B  ")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", user.Name)
	assert.Equal(t, "Alice B", repo.users["alice"].Name)

	_, err = svc.Rename(context.Background(), "alice", "   ")
	assert.ErrorIs(t, err, errInvalidName)

	_, err = svc.Rename(context.Background(), "ghost", "Ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, repo := newTestService()

	require.NoError(t, svc.Delete(context.Background(), "alice"))
	assert.Empty(t, repo.users)
	assert.ErrorIs(t, svc.Delete(context.Background(), "alice"), repository.ErrNotFound)
}

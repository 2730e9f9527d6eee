package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/reddert/notification-system/internal/domain"
	"github.com/reddert/notification-system/internal/repository"
	"github.com/reddert/notification-system/pkg/config"
	"github.com/reddert/notification-system/pkg/crypto"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.APIConfig {
	return config.APIConfig{
		JWTSecret:       "super-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
}

func TestSignupIssuesTokens(t *testing.T) {
	var stored *domain.User
	users := userRepoMock{
		createFunc: func(_ context.Context, user *domain.User) error {
			stored = user
			return nil
		},
	}
	svc := New(users, newLogger(), testConfig())

	user, tokens, err := svc.Signup(context.Background(), "Alice", "ALICE@Example.com", "Testing123!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued")
	}
	if stored == nil || len(stored.PasswordHash) == 0 {
		t.Fatalf("expected hashed password to be stored")
	}
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	users := userRepoMock{
		createFunc: func(_ context.Context, _ *domain.User) error {
			return repository.ErrDuplicate
		},
	}
	svc := New(users, newLogger(), testConfig())

	if _, _, err := svc.Signup(context.Background(), "Alice", "alice@example.com", "Testing123!"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := New(userRepoMock{}, newLogger(), testConfig())

	cases := []struct {
		name, email, password string
	}{
		{"", "alice@example.com", "Testing123!"},
		{"Alice", "not-an-email", "Testing123!"},
		{"Alice", "alice@example.com", "short"},
	}
	for _, tc := range cases {
		if _, _, err := svc.Signup(context.Background(), tc.name, tc.email, tc.password); !errors.Is(err, ErrInvalidSignup) {
			t.Fatalf("expected ErrInvalidSignup for %+v, got %v", tc, err)
		}
	}
}

func TestLoginRoundTrip(t *testing.T) {
	hashed, err := crypto.HashPassword("Testing123!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	users := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			if email != "alice@example.com" {
				t.Fatalf("unexpected email lookup: %s", email)
			}
			return &domain.User{ID: "user-1", Email: email, PasswordHash: hashed}, nil
		},
		getByIDFunc: func(_ context.Context, id string) (*domain.User, error) {
			return &domain.User{ID: id, Email: "alice@example.com"}, nil
		},
	}
	svc := New(users, newLogger(), testConfig())

	user, tokens, err := svc.Login(context.Background(), "Alice@Example.com", "Testing123!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("unexpected user: %+v", user)
	}

	authorized, claims, err := svc.Authorize(context.Background(), tokens.AccessToken)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if authorized.ID != "user-1" || claims.UserID != "user-1" {
		t.Fatalf("unexpected authorize result: %+v %+v", authorized, claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	hashed, err := crypto.HashPassword("Testing123!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	users := userRepoMock{
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Email: email, PasswordHash: hashed}, nil
		},
	}
	svc := New(users, newLogger(), testConfig())

	if _, _, err := svc.Login(context.Background(), "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := New(userRepoMock{}, newLogger(), testConfig())

	if _, _, err := svc.Login(context.Background(), "ghost@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

type userRepoMock struct {
	createFunc     func(context.Context, *domain.User) error
	getByEmailFunc func(context.Context, string) (*domain.User, error)
	getByIDFunc    func(context.Context, string) (*domain.User, error)
}

func (m userRepoMock) CreateUser(ctx context.Context, user *domain.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m userRepoMock) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getByEmailFunc != nil {
		return m.getByEmailFunc(ctx, email)
	}
	return nil, repository.ErrNotFound
}

func (m userRepoMock) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m userRepoMock) ListUsers(ctx context.Context) ([]domain.User, error) { return nil, nil }

func (m userRepoMock) UpdateUser(ctx context.Context, user *domain.User) error { return nil }

func (m userRepoMock) DeleteUser(ctx context.Context, id string) error { return nil }

func (m userRepoMock) UserExists(ctx context.Context, id string) (bool, error) { return false, nil }

package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reddert/notification-system/internal/domain"
	"github.com/reddert/notification-system/internal/repository"
)

type stubNotificationRepo struct {
	byID map[string]domain.Notification
}

func (r *stubNotificationRepo) CreateNotification(ctx context.Context, n *domain.Notification) error {
	r.byID[n.ID] = *n
	return nil
}

func (r *stubNotificationRepo) GetNotificationByID(ctx context.Context, id string) (*domain.Notification, error) {
	n, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &n, nil
}

func (r *stubNotificationRepo) ListNotificationsByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range r.byID {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *stubNotificationRepo) SetNotificationRead(ctx context.Context, id string, read bool) error {
	n, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	n.Read = read
	r.byID[id] = n
	return nil
}

func (r *stubNotificationRepo) DeleteNotification(ctx context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

type stubUserRepo struct {
	users map[string]domain.User
}

func (r *stubUserRepo) CreateUser(ctx context.Context, user *domain.User) error { return nil }
func (r *stubUserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}
func (r *stubUserRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}
func (r *stubUserRepo) ListUsers(ctx context.Context) ([]domain.User, error)    { return nil, nil }
func (r *stubUserRepo) UpdateUser(ctx context.Context, user *domain.User) error { return nil }
func (r *stubUserRepo) DeleteUser(ctx context.Context, id string) error         { return nil }
func (r *stubUserRepo) UserExists(ctx context.Context, id string) (bool, error) {
	_, ok := r.users[id]
	return ok, nil
}

type recordingChannel struct {
	name      string
	delivered []domain.Notification
	fail      bool
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Deliver(ctx context.Context, user *domain.User, n *domain.Notification) error {
	if c.fail {
		return errors.New("delivery refused")
	}
	c.delivered = append(c.delivered, *n)
	return nil
}

func newTestService(channels ...Channel) (Service, *stubNotificationRepo) {
	repo := &stubNotificationRepo{byID: make(map[string]domain.Notification)}
	users := &stubUserRepo{users: map[string]domain.User{
		"alice": {ID: "alice", Email: "alice@example.com"},
	}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, users, log, channels...), repo
}

func TestCreateStoresAndFansOut(t *testing.T) {
	first := &recordingChannel{name: "in_app"}
	second := &recordingChannel{name: "email", fail: true}
	svc, repo := newTestService(first, second)

	n, err := svc.Create(context.Background(), "alice", "You were promoted to admin")
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)

	stored, ok := repo.byID[n.ID]
	require.True(t, ok)
	assert.Equal(t, "alice", stored.UserID)
	assert.False(t, stored.Read)

	// First channel got the notification; the failing one did not break the call.
	require.Len(t, first.delivered, 1)
	assert.Equal(t, n.ID, first.delivered[0].ID)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), "alice", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.Create(context.Background(), "alice", strings.Repeat("x", 501))
	assert.ErrorIs(t, err, ErrMessageTooLong)

	_, err = svc.Create(context.Background(), "ghost", "hello")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateAcceptsMaxLengthMessage(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), "alice", strings.Repeat("x", 500))
	assert.NoError(t, err)
}

func TestRecipientOwnership(t *testing.T) {
	svc, _ := newTestService()

	n, err := svc.Create(context.Background(), "alice", "hello")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "bob", n.ID)
	assert.ErrorIs(t, err, ErrNotRecipient)
	_, err = svc.SetRead(context.Background(), "bob", n.ID, true)
	assert.ErrorIs(t, err, ErrNotRecipient)
	err = svc.Delete(context.Background(), "bob", n.ID)
	assert.ErrorIs(t, err, ErrNotRecipient)
}

func TestSetReadRoundTrip(t *testing.T) {
	svc, repo := newTestService()

	n, err := svc.Create(context.Background(), "alice", "hello")
	require.NoError(t, err)

	updated, err := svc.SetRead(context.Background(), "alice", n.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Read)
	assert.True(t, repo.byID[n.ID].Read)

	updated, err = svc.SetRead(context.Background(), "alice", n.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Read)
}

func TestNotifySwallowsErrors(t *testing.T) {
	svc, repo := newTestService()

	// Unknown user: nothing stored, nothing panics.
	svc.Notify(context.Background(), "ghost", "hello")
	assert.Empty(t, repo.byID)

	svc.Notify(context.Background(), "alice", "hello")
	assert.Len(t, repo.byID, 1)
}

func TestInAppChannelPayload(t *testing.T) {
	var published []byte
	ch := NewInAppChannel(publisherFunc(func(userID string, payload []byte) {
		assert.Equal(t, "alice", userID)
		published = payload
	}))

	n := &domain.Notification{ID: "n1", UserID: "alice", Message: "hello"}
	err := ch.Deliver(context.Background(), &domain.User{ID: "alice"}, n)
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal(published, &event))
	assert.Equal(t, "n1", event["id"])
	assert.Equal(t, "hello", event["message"])
}

type publisherFunc func(userID string, payload []byte)

func (f publisherFunc) Publish(userID string, payload []byte) { f(userID, payload) }

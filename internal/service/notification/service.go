package notification

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

const maxMessageLength = 500

var (
	ErrEmptyMessage   = errors.New("notification message is required")
	ErrMessageTooLong = errors.New("notification message exceeds 500 characters")
	ErrNotRecipient   = errors.New("notification belongs to another user")
)

// Channel delivers a stored notification to one transport. Delivery
// failures are logged, never propagated; the stored record is the source
// of truth.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, user *domain.User, n *domain.Notification) error
}

// Service persists notifications and fans them out across channels.
type Service struct {
	repo     repository.NotificationRepository
	users    repository.UserRepository
	channels []Channel
	logger   *slog.Logger
}

// New constructs a Service.
func New(repo repository.NotificationRepository, users repository.UserRepository, logger *slog.Logger, channels ...Channel) Service {
	return Service{repo: repo, users: users, channels: channels, logger: logger}
}

// Create validates, stores and delivers a notification to userID.
func (s Service) Create(ctx context.Context, userID, message string) (*domain.Notification, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(message)) > maxMessageLength {
		return nil, ErrMessageTooLong
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	n := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	for _, ch := range s.channels {
		if err := ch.Deliver(ctx, user, n); err != nil {
			s.logger.Warn("notification delivery failed",
				"channel", ch.Name(), "notification_id", n.ID, "user_id", userID, "error", err)
		}
	}
	return n, nil
}

// Notify satisfies the membership service's notifier. Invalid or
// undeliverable messages are dropped with a log line.
func (s Service) Notify(ctx context.Context, userID, message string) {
	if _, err := s.Create(ctx, userID, message); err != nil {
		s.logger.Warn("notification dropped", "user_id", userID, "error", err)
	}
}

// ListForUser returns a user's notifications, newest first.
func (s Service) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.repo.ListNotificationsByUser(ctx, userID)
}

// Get returns a notification if it belongs to userID.
func (s Service) Get(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	n, err := s.repo.GetNotificationByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, ErrNotRecipient
	}
	return n, nil
}

// SetRead marks a notification read or unread for its recipient.
func (s Service) SetRead(ctx context.Context, userID, notificationID string, read bool) (*domain.Notification, error) {
	n, err := s.Get(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}
	if n.Read == read {
		return n, nil
	}
	if err := s.repo.SetNotificationRead(ctx, notificationID, read); err != nil {
		return nil, err
	}
	n.Read = read
	return n, nil
}

// Delete removes a notification for its recipient.
func (s Service) Delete(ctx context.Context, userID, notificationID string) error {
	if _, err := s.Get(ctx, userID, notificationID); err != nil {
		return err
	}
	return s.repo.DeleteNotification(ctx, notificationID)
}

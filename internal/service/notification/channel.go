package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/reddert/notification-system/internal/domain"
)

// Publisher pushes a payload to a user's open streams. The ws hub
// implements it.
type Publisher interface {
	Publish(userID string, payload []byte)
}

// InAppChannel delivers notifications over live websocket and SSE streams.
type InAppChannel struct {
	hub Publisher
}

// NewInAppChannel wraps a stream publisher as a delivery channel.
func NewInAppChannel(hub Publisher) *InAppChannel {
	return &InAppChannel{hub: hub}
}

func (c *InAppChannel) Name() string { return "in_app" }

// streamEvent is the wire shape pushed to connected clients.
type streamEvent struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *InAppChannel) Deliver(ctx context.Context, user *domain.User, n *domain.Notification) error {
	payload, err := json.Marshal(streamEvent{ID: n.ID, Message: n.Message, CreatedAt: n.CreatedAt})
	if err != nil {
		return err
	}
	c.hub.Publish(user.ID, payload)
	return nil
}

// EmailChannel delivers notifications over SMTP. A zero Addr disables it
// at construction time in the wiring, not here.
type EmailChannel struct {
	addr     string
	from     string
	username string
	password string
}

// NewEmailChannel configures SMTP delivery. addr is host:port.
func NewEmailChannel(addr, from, username, password string) *EmailChannel {
	return &EmailChannel{addr: addr, from: from, username: username, password: password}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Deliver(ctx context.Context, user *domain.User, n *domain.Notification) error {
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address", user.ID)
	}
	var auth smtp.Auth
	if c.username != "" {
		host := c.addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", c.username, c.password, host)
	}
	msg := strings.Join([]string{
		"From: " + c.from,
		"To: " + user.Email,
		"Subject: Team notification",
		"",
		n.Message,
	}, "\r\n")
	return smtp.SendMail(c.addr, auth, c.from, []string{user.Email}, []byte(msg))
}

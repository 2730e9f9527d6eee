package ws

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSubscriber records deliveries; delivered signals each successful Send
// so tests can wait for the hub goroutine without sleeping.
type stubSubscriber struct {
	mu        sync.Mutex
	received  [][]byte
	fail      bool
	closed    bool
	delivered chan struct{}
}

func newStubSubscriber() *stubSubscriber {
	return &stubSubscriber{delivered: make(chan struct{}, 16)}
}

func (s *stubSubscriber) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("subscriber gone")
	}
	s.received = append(s.received, payload)
	s.delivered <- struct{}{}
	return nil
}

func (s *stubSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *stubSubscriber) messages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.received))
	copy(out, s.received)
	return out
}

func (s *stubSubscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func waitDelivered(t *testing.T, s *stubSubscriber) {
	t.Helper()
	select {
	case <-s.delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestHubPublishesToEverySubscription(t *testing.T) {
	hub := NewHub()
	tab1 := newStubSubscriber()
	tab2 := newStubSubscriber()
	other := newStubSubscriber()
	hub.Register("alice", tab1)
	hub.Register("alice", tab2)
	hub.Register("bob", other)

	hub.Publish("alice", []byte("hello"))
	waitDelivered(t, tab1)
	waitDelivered(t, tab2)

	assert.Equal(t, [][]byte{[]byte("hello")}, tab1.messages())
	assert.Equal(t, [][]byte{[]byte("hello")}, tab2.messages())
	assert.Empty(t, other.messages())
}

func TestHubDropsFailedSubscriber(t *testing.T) {
	hub := NewHub()
	dead := newStubSubscriber()
	dead.fail = true
	live := newStubSubscriber()
	hub.Register("alice", dead)
	hub.Register("alice", live)

	// The hub handles one broadcast at a time, so once the second message
	// lands on the healthy subscription the failed one has been dropped.
	hub.Publish("alice", []byte("one"))
	waitDelivered(t, live)
	hub.Publish("alice", []byte("two"))
	waitDelivered(t, live)

	assert.True(t, dead.isClosed())
	assert.Empty(t, dead.messages())
	require.Len(t, live.messages(), 2)
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	gone := newStubSubscriber()
	stays := newStubSubscriber()
	hub.Register("alice", gone)
	hub.Register("alice", stays)
	hub.Unregister("alice", gone)

	hub.Publish("alice", []byte("after"))
	waitDelivered(t, stays)

	assert.Empty(t, gone.messages())
	assert.Len(t, stays.messages(), 1)
}

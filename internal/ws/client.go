package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single websocket write so a dead peer cannot
// stall the writer goroutine forever.
const writeTimeout = 10 * time.Second

const defaultSendBuffer = 16

var errClientGone = errors.New("websocket client gone")

// Client wraps a websocket connection with a buffered outbound queue. A
// dedicated goroutine drains the queue, so Send never blocks the hub; a
// peer that stops reading fills its queue and gets dropped.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient constructs a client with the given outbound queue size and
// starts its writer goroutine. A non-positive buffer falls back to the
// default.
func NewClient(conn *websocket.Conn, logger *slog.Logger, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	c := &Client{
		conn: conn,
		log:  logger,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Client) writeLoop() {
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Warn("websocket send failed", "error", err)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send queues a message for delivery without blocking. A full queue means
// the peer has stopped keeping up; the client is closed and the error
// tells the hub to drop it.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return errClientGone
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.log.Warn("websocket client too slow, dropping")
		c.Close()
		return errClientGone
	}
}

// Close terminates the connection and stops the writer goroutine.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

package chat

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one browser socket. Writes go through Send and are performed by a single writer
// goroutine; the queue itself is never closed, done signals the writer instead.
type Client struct {
	ID     uint64 // chat user id shown as <User#ID>
	ConnID string // unique per socket, used in logs
	Remote string

	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(id uint64, connID string, ws *websocket.Conn, queue int) *Client {
	if queue <= 0 {
		queue = 64
	}
	c := &Client{
		ID:     id,
		ConnID: connID,
		ws:     ws,
		send:   make(chan []byte, queue),
		done:   make(chan struct{}),
	}
	if ws != nil {
		c.Remote = ws.RemoteAddr().String()
	}
	return c
}

// Enqueue queues payload without blocking. It reports false for a closed or slow client.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close stops the writer. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

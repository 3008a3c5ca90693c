package chat

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Registry tracks connected chat users. Ids are handed out from 1 upwards and never reused.
type Registry struct {
	next atomic.Uint64

	mu   sync.RWMutex
	byID map[uint64]*Client
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint64]*Client)}
}

// Add registers ws under a fresh user id.
func (r *Registry) Add(ws *websocket.Conn, queue int) *Client {
	c := newClient(r.next.Add(1), uuid.NewString(), ws, queue)
	r.mu.Lock()
	r.byID[c.ID] = c
	r.mu.Unlock()
	return c
}

func (r *Registry) Remove(c *Client) {
	r.mu.Lock()
	if cur, ok := r.byID[c.ID]; ok && cur == c {
		delete(r.byID, c.ID)
	}
	r.mu.Unlock()
}

func (r *Registry) Get(id uint64) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// All returns every client ordered by id.
func (r *Registry) All() []*Client {
	return r.Others(0)
}

// Others returns every client except the one with id, ordered by id.
func (r *Registry) Others(id uint64) []*Client {
	r.mu.RLock()
	out := make([]*Client, 0, len(r.byID))
	for cid, c := range r.byID {
		if cid != id {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

package janus

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeGateway is an in-process websocket peer speaking the gateway's JSON dialect. By default it
// answers create with session 42, attach with handle 7, keepalive with ack and everything else
// with an empty success. onRequest may take over any frame by returning true.
type fakeGateway struct {
	t   *testing.T
	srv *httptest.Server

	mu        sync.Mutex
	conns     []*gwConn
	frames    []map[string]any
	accepts   int
	onRequest func(c *gwConn, req map[string]any) bool
	failFirst int // reject this many handshakes before accepting
}

type gwConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *gwConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *gwConn) sendRaw(raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(raw))
}

func (c *gwConn) close() { _ = c.conn.Close() }

func newFakeGateway(t *testing.T) *fakeGateway {
	g := &fakeGateway{t: t}
	up := websocket.Upgrader{
		Subprotocols: []string{DefaultProtocol},
		CheckOrigin:  func(*http.Request) bool { return true },
	}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		if g.failFirst > 0 {
			g.failFirst--
			g.mu.Unlock()
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		g.mu.Unlock()

		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &gwConn{conn: conn}
		g.mu.Lock()
		g.conns = append(g.conns, c)
		g.accepts++
		g.mu.Unlock()
		g.serve(c)
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http") + "/janus"
}

func (g *fakeGateway) serve(c *gwConn) {
	defer c.close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req map[string]any
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		g.mu.Lock()
		g.frames = append(g.frames, req)
		hook := g.onRequest
		g.mu.Unlock()

		if hook != nil && hook(c, req) {
			continue
		}
		_ = c.send(defaultReply(req))
	}
}

func defaultReply(req map[string]any) map[string]any {
	out := map[string]any{"transaction": req["transaction"]}
	if sid, ok := req["session_id"]; ok {
		out["session_id"] = sid
	}
	switch req["janus"] {
	case "create":
		out["janus"] = "success"
		out["data"] = map[string]any{"id": 42}
	case "attach":
		out["janus"] = "success"
		out["data"] = map[string]any{"id": 7}
	case "keepalive":
		out["janus"] = "ack"
	case "message":
		out["janus"] = "success"
		out["sender"] = req["handle_id"]
		out["plugindata"] = map[string]any{
			"plugin": DefaultPlugin,
			"data":   req["body"],
		}
	default:
		out["janus"] = "success"
	}
	return out
}

func (g *fakeGateway) setHook(fn func(c *gwConn, req map[string]any) bool) {
	g.mu.Lock()
	g.onRequest = fn
	g.mu.Unlock()
}

// received returns a copy of every frame of the given kind seen so far.
func (g *fakeGateway) received(kind string) []map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []map[string]any
	for _, f := range g.frames {
		if f["janus"] == kind {
			out = append(out, f)
		}
	}
	return out
}

func (g *fakeGateway) accepted() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.accepts
}

func (g *fakeGateway) lastConn() *gwConn {
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(g.t, g.conns)
	return g.conns[len(g.conns)-1]
}

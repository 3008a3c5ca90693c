package chat

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"janusbridge/service/janus"
	"janusbridge/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ---- 常量参数 ----
const (
	pingInterval = 25 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	maxLine      = 64 << 10
)

// Gateway is the part of the engine the relay needs.
type Gateway interface {
	Request(ctx context.Context, body any) (*janus.PluginResult, error)
	Status() janus.Status
}

type Config struct {
	SendQueue      int
	FanoutWorkers  int
	FanoutQueue    int
	Room           uint64 // room kick applies to
	AdminKey       string
	Secret         string
	CommandTimeout time.Duration
	Logger         *zap.Logger
}

func (c *Config) norm() {
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Server is the browser chat relay: every line is broadcast to the other users, command lines
// are executed against the gateway and answered to the issuer only.
type Server struct {
	cfg      Config
	gw       Gateway
	reg      *Registry
	fanout   *Fanout
	log      *zap.Logger
	upgrader websocket.Upgrader

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewServer(cfg Config, gw Gateway) *Server {
	cfg.norm()
	return &Server{
		cfg:    cfg,
		gw:     gw,
		reg:    NewRegistry(),
		fanout: NewFanout(cfg.FanoutWorkers, cfg.FanoutQueue, cfg.Logger.Named("fanout")),
		log:    cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Registry() *Registry { return s.reg }

// HandleWS upgrades the request and serves one chat user until the socket closes.
func (s *Server) HandleWS(c *gin.Context) {
	if !s.track() {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败
		s.log.Info("upgrade websocket", zap.Error(err))
		return
	}
	client := s.reg.Add(ws, s.cfg.SendQueue)
	log := s.log.With(zap.Uint64("user", client.ID), zap.String("conn", client.ConnID))
	log.Info("new chat user", zap.String("remote", client.Remote))

	written := make(chan struct{})
	safe.Go("chat-writer", func() {
		defer close(written)
		s.writeLoop(client, log)
	})

	s.readLoop(client, log)

	s.reg.Remove(client)
	client.Close()
	<-written
	_ = ws.Close()
	log.Info("good bye user")
}

// ---- 读循环：只读，不写；出错即退出（写协程收尾） ----
func (s *Server) readLoop(c *Client, log *zap.Logger) {
	ws := c.ws
	ws.SetReadLimit(maxLine)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			var ne net.Error
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				log.Debug("peer closed", zap.Error(err))
			case errors.As(err, &ne) && ne.Timeout():
				log.Info("read timeout", zap.Error(err))
			default:
				log.Info("read failed", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		s.handleLine(c, string(data))
	}
}

func (s *Server) writeLoop(c *Client, log *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		// 统一由写协程发 Close；底层连接由 HandleWS 关闭
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Info("write failed", zap.Error(err))
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Info("ping failed", zap.Error(err))
				_ = c.ws.Close()
				return
			}
		}
	}
}

func (s *Server) handleLine(c *Client, text string) {
	cmd, isCmd, err := ParseCommand(text)
	switch {
	case isCmd && err != nil:
		c.Enqueue([]byte(janusLine(err.Error())))
	case isCmd:
		s.log.Info("chat command", zap.Uint64("user", c.ID), zap.Stringer("command", cmd))
		safe.Go("chat-command", func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CommandTimeout)
			defer cancel()
			reply := s.execute(ctx, cmd)
			if s.reg.Get(c.ID) != c {
				s.log.Debug("command issuer left", zap.Uint64("user", c.ID), zap.Stringer("command", cmd))
				return
			}
			c.Enqueue([]byte(reply))
		})
	default:
		s.fanout.Broadcast(s.reg.Others(c.ID), []byte(userLine(c.ID, text)))
	}
}

// OnEvent broadcasts a gateway event to every user. It makes Server a janus.EventSink.
func (s *Server) OnEvent(msg *janus.InboundMessage) {
	s.fanout.Broadcast(s.reg.All(), []byte(janusLine(string(msg.Raw))))
}

// OnStateChange announces gateway availability to every user. It runs on the engine's
// connection loop, so the announcement is skipped rather than queued when the fanout is full.
func (s *Server) OnStateChange(st janus.State) {
	var line string
	switch st {
	case janus.StateConnected:
		line = janusLine("gateway connected")
	case janus.StateDisconnected:
		line = janusLine("gateway disconnected")
	default:
		return
	}
	if !s.fanout.TryBroadcast(s.reg.All(), []byte(line)) {
		s.log.Debug("state announcement dropped", zap.Stringer("state", st))
	}
}

func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// Close disconnects every user and waits for their handlers to return.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	for _, c := range s.reg.All() {
		c.Close()
		_ = c.ws.SetReadDeadline(time.Now())
	}
	s.wg.Wait()
	s.fanout.Close()
}

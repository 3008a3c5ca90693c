package janus

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"janusbridge/tools/errs"
	"janusbridge/tools/safe"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State of the gateway link.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateBootstrapping
	StateConnected
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateBootstrapping:
		return "bootstrapping"
	case StateConnected:
		return "connected"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status is a point-in-time snapshot of the engine.
type Status struct {
	State     State  `json:"state"`
	Epoch     uint64 `json:"epoch"`
	SessionID uint64 `json:"session_id,omitempty"`
	HandleID  uint64 `json:"handle_id,omitempty"`
	Pending   int    `json:"pending"`
}

// link is one physical websocket. It is replaced wholesale on reconnect.
type link struct {
	conn   *websocket.Conn
	epoch  uint64
	wmu    sync.Mutex // gorilla allows a single concurrent writer
	closed chan struct{}
	once   sync.Once
	err    error
}

func (l *link) close(reason error) {
	l.once.Do(func() {
		l.err = reason
		_ = l.conn.Close()
		close(l.closed)
	})
}

// reason returns why the link closed. Only valid once closed.
func (l *link) reason() error {
	l.close(ErrConnectionLost.Wrap())
	return l.err
}

// Engine is a self-healing client for the Janus websocket API. One goroutine (Run) owns the
// state machine; the physical link, session and handle are only written from there.
type Engine struct {
	cfg     Config
	log     *zap.Logger
	clock   clock.Clock
	dialer  *websocket.Dialer
	reg     *Registry
	events  *AsyncSink
	metrics *Metrics
	rng     *rand.Rand

	mu       sync.RWMutex
	state    State
	epoch    uint64
	link     *link
	session  uint64
	handle   uint64
	watchers []func(State)

	running    atomic.Bool
	stopOnce   sync.Once
	stopCh     chan struct{}
	runDone    chan struct{}
	finishOnce sync.Once
}

type Option func(*Engine)

// WithEventSink routes unsolicited gateway messages to sink through a bounded queue of size queue.
func WithEventSink(sink EventSink, queue int) Option {
	return func(e *Engine) {
		e.events = NewAsyncSink(sink, queue, e.log.Named("events"))
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithDialer replaces the websocket dialer. The configured sub-protocol is still enforced.
func WithDialer(d *websocket.Dialer) Option {
	return func(e *Engine) { e.dialer = d }
}

func New(cfg Config, opts ...Option) *Engine {
	cfg.norm()
	e := &Engine{
		cfg:   cfg,
		log:   cfg.Logger,
		clock: cfg.Clock,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		stopCh:  make(chan struct{}),
		runDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	d := *e.dialer
	d.Subprotocols = []string{cfg.Protocol}
	e.dialer = &d

	e.reg = NewRegistry(e.clock, e.log.Named("txn"))
	e.reg.onChange = e.metrics.setPending
	e.metrics.setState(StateDisconnected)
	return e
}

// Run connects, bootstraps and keeps the link alive until ctx ends or Shutdown is called.
// It returns nil on a clean stop.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("janus: engine already running")
	}
	defer close(e.runDone)
	defer e.finish()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		if failures > 0 {
			delay := NextBackoffDelay(e.cfg.Backoff, failures, e.rng)
			e.log.Info("reconnecting", zap.Int("attempt", failures), zap.Duration("delay", delay))
			if !e.sleep(ctx, delay) {
				return nil
			}
			e.metrics.incReconnect()
		}

		served, err := e.cycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if served {
			failures = 1
		} else {
			failures++
		}
		if err != nil {
			e.log.Warn("janus link down", zap.Error(err), zap.Bool("served", served))
		}
	}
}

// cycle runs one link generation: connect, bootstrap, serve, tear down. served reports whether
// the link reached StateConnected.
func (e *Engine) cycle(ctx context.Context) (served bool, err error) {
	e.setState(StateConnecting)
	conn, err := e.dial(ctx)
	if err != nil {
		e.setState(StateDisconnected)
		return false, err
	}

	lk := e.install(conn)
	safe.Go("janus-router", func() { e.readLoop(lk) })

	session, handle, err := e.bootstrap(ctx, lk)
	if err != nil {
		e.teardown(lk, ErrConnectionLost.WrapMsg("bootstrap failed"))
		return false, errs.WrapMsg(err, "bootstrap", "epoch", lk.epoch)
	}

	// created before Connected is visible, so the first beat is exactly one interval out
	ticker := e.clock.Ticker(e.cfg.KeepaliveInterval)
	if !e.promote(lk, session, handle) {
		ticker.Stop()
		e.teardown(lk, ErrConnectionLost.WrapMsg("link closed during bootstrap"))
		return false, lk.reason()
	}
	e.log.Info("janus connected",
		zap.Uint64("epoch", lk.epoch), zap.Uint64("session_id", session), zap.Uint64("handle_id", handle))

	beats := make(chan struct{})
	safe.Go("janus-keepalive", func() {
		defer close(beats)
		e.keepaliveLoop(ctx, lk, session, ticker)
	})

	select {
	case <-lk.closed:
		err = lk.reason()
		e.teardown(lk, err)
	case <-ctx.Done():
		e.teardown(lk, ErrShutdown.Wrap())
	}
	<-beats
	return true, err
}

func (e *Engine) dial(ctx context.Context) (*websocket.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, e.cfg.DialTimeout)
	defer cancel()

	conn, resp, err := e.dialer.DialContext(dctx, e.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, errs.WrapMsg(err, "dial janus", "url", e.cfg.URL, "status", resp.Status)
		}
		return nil, errs.WrapMsg(err, "dial janus", "url", e.cfg.URL)
	}
	if got := conn.Subprotocol(); got != e.cfg.Protocol {
		e.log.Warn("gateway did not confirm sub-protocol",
			zap.String("want", e.cfg.Protocol), zap.String("got", got))
	}
	conn.SetReadLimit(e.cfg.ReadLimit)
	return conn, nil
}

// install makes conn the current link under a fresh epoch and fails every waiter of older epochs.
func (e *Engine) install(conn *websocket.Conn) *link {
	e.mu.Lock()
	e.epoch++
	lk := &link{conn: conn, epoch: e.epoch, closed: make(chan struct{})}
	e.link = lk
	e.session, e.handle = 0, 0
	e.mu.Unlock()

	e.metrics.setEpoch(lk.epoch)
	e.setState(StateBootstrapping)
	if n := e.reg.InvalidateBefore(lk.epoch, ErrConnectionLost.WrapMsg("", "epoch", lk.epoch)); n > 0 {
		e.log.Info("stale transactions invalidated", zap.Int("count", n), zap.Uint64("epoch", lk.epoch))
	}
	return lk
}

func (e *Engine) bootstrap(ctx context.Context, lk *link) (session, handle uint64, err error) {
	session, err = e.CreateSession(ctx)
	if err != nil {
		return 0, 0, errs.WrapMsg(err, "create session")
	}
	// published before attach so a Shutdown in between still destroys it
	e.mu.Lock()
	if e.link == lk {
		e.session = session
	}
	e.mu.Unlock()
	handle, err = e.AttachHandle(ctx, session, e.cfg.Plugin)
	if err != nil {
		return 0, 0, errs.WrapMsg(err, "attach handle", "plugin", e.cfg.Plugin)
	}
	return session, handle, nil
}

func (e *Engine) promote(lk *link, session, handle uint64) bool {
	select {
	case <-lk.closed:
		return false
	default:
	}
	e.mu.Lock()
	if e.link != lk || e.state == StateStopped {
		e.mu.Unlock()
		return false
	}
	e.session, e.handle = session, handle
	e.mu.Unlock()
	e.setState(StateConnected)
	return true
}

// teardown detaches lk, fails its waiters with reason and closes the socket. The link is
// unpublished before waiters are failed so no request can register against it afterwards.
func (e *Engine) teardown(lk *link, reason error) {
	e.mu.Lock()
	if e.link == lk {
		e.link = nil
		e.session, e.handle = 0, 0
	}
	e.mu.Unlock()

	e.setState(StateDisconnected)
	if n := e.reg.InvalidateBefore(lk.epoch+1, reason); n > 0 {
		e.log.Info("in-flight transactions failed", zap.Int("count", n), zap.Uint64("epoch", lk.epoch))
	}
	lk.close(reason)
}

// finish moves to StateStopped and releases everything. Safe to call more than once.
func (e *Engine) finish() {
	e.finishOnce.Do(func() {
		e.mu.Lock()
		lk := e.link
		e.link = nil
		e.session, e.handle = 0, 0
		e.mu.Unlock()

		e.setState(StateStopped)
		if n := e.reg.ResolveAll(ErrShutdown.Wrap()); n > 0 {
			e.log.Info("pending transactions failed on shutdown", zap.Int("count", n))
		}
		if lk != nil {
			lk.close(ErrShutdown.Wrap())
		}
		if e.events != nil {
			if err := e.events.Close(); err != nil {
				e.log.Warn("close event sink", zap.Error(err))
			}
		}
	})
}

// Shutdown destroys the live session (best effort, at most 2s), stops Run and waits for it.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() {
		st := e.Status()
		if (st.State == StateConnected || st.State == StateBootstrapping) && st.SessionID != 0 {
			dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := e.Destroy(dctx, st.SessionID); err != nil {
				e.log.Debug("destroy session on shutdown", zap.Error(err))
			}
			cancel()
		}
		close(e.stopCh)
	})
	if !e.running.Load() {
		e.finish()
		return nil
	}
	select {
	case <-e.runDone:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err())
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	t := e.clock.Timer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	if e.state == StateStopped || e.state == s {
		e.mu.Unlock()
		return
	}
	e.state = s
	watchers := append([]func(State){}, e.watchers...)
	e.mu.Unlock()

	e.metrics.setState(s)
	e.log.Debug("state", zap.Stringer("state", s))
	for _, fn := range watchers {
		fn := fn
		safe.Run("janus-state-watcher", func() { fn(s) })
	}
}

// OnStateChange registers fn to be called after every state transition.
func (e *Engine) OnStateChange(fn func(State)) {
	e.mu.Lock()
	e.watchers = append(e.watchers, fn)
	e.mu.Unlock()
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Epoch returns the epoch of the most recent link.
func (e *Engine) Epoch() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.epoch
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	st := Status{
		State:     e.state,
		Epoch:     e.epoch,
		SessionID: e.session,
		HandleID:  e.handle,
	}
	e.mu.RUnlock()
	st.Pending = e.reg.Len()
	return st
}

func (e *Engine) currentLink() *link {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.link
}

// send writes one frame on lk. A write failure closes the link; the read loop and Run take it from there.
func (e *Engine) send(lk *link, frame []byte) error {
	if e.currentLink() != lk {
		return ErrConnectionLost.WrapMsg("link replaced", "epoch", lk.epoch)
	}

	lk.wmu.Lock()
	defer lk.wmu.Unlock()
	select {
	case <-lk.closed:
		return ErrConnectionLost.WrapMsg("link closed", "epoch", lk.epoch)
	default:
	}
	_ = lk.conn.SetWriteDeadline(time.Now().Add(e.cfg.WriteTimeout))
	if err := lk.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		lk.close(ErrConnectionLost.WrapMsg(err.Error(), "epoch", lk.epoch))
		return ErrConnectionLost.WrapMsg(err.Error(), "epoch", lk.epoch)
	}
	return nil
}

package janus

import (
	"context"
	"errors"
	"sync"
	"time"

	"janusbridge/tools/errs"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Outcome is the single terminal resolution of a transaction.
type Outcome struct {
	Msg *InboundMessage
	Err error
}

// Waiter is a pending transaction. The registry owns it from Register until exactly one of
// Resolve, Cancel, InvalidateBefore, ResolveAll or an Await deadline removes it.
type Waiter struct {
	token    string
	epoch    uint64
	deadline time.Time
	done     chan Outcome
}

func (w *Waiter) Token() string       { return w.token }
func (w *Waiter) Epoch() uint64       { return w.epoch }
func (w *Waiter) Deadline() time.Time { return w.deadline }

// Registry maps transaction tokens to waiters. The lock only guards the map; waking the caller
// goes through the waiter's one-slot channel after the entry is already removed.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*Waiter

	clock    clock.Clock
	log      *zap.Logger
	onChange func(pending int)
}

func NewRegistry(clk clock.Clock, log *zap.Logger) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		pending: make(map[string]*Waiter),
		clock:   clk,
		log:     log,
	}
}

// Register inserts a waiter for token issued under epoch. A zero deadline waits until resolved.
func (r *Registry) Register(token string, epoch uint64, deadline time.Time) (*Waiter, error) {
	w := &Waiter{
		token:    token,
		epoch:    epoch,
		deadline: deadline,
		done:     make(chan Outcome, 1),
	}

	r.mu.Lock()
	if _, exists := r.pending[token]; exists {
		r.mu.Unlock()
		return nil, ErrDuplicateToken.WrapMsg("", "transaction", token)
	}
	r.pending[token] = w
	n := len(r.pending)
	r.mu.Unlock()

	r.changed(n)
	return w, nil
}

// Resolve fulfils the waiter for token. Unknown tokens (late reply, already timed out, duplicate)
// are dropped and reported as false.
func (r *Registry) Resolve(token string, out Outcome) bool {
	r.mu.Lock()
	w, ok := r.pending[token]
	if ok {
		delete(r.pending, token)
	}
	n := len(r.pending)
	r.mu.Unlock()

	if !ok {
		r.log.Debug("reply for unknown transaction dropped", zap.String("transaction", token))
		return false
	}
	r.changed(n)
	w.done <- out
	return true
}

// Cancel removes the waiter without resolving it. Used when the frame never reached the wire.
func (r *Registry) Cancel(w *Waiter) bool {
	ok, n := r.remove(w)
	if ok {
		r.changed(n)
	}
	return ok
}

// InvalidateBefore resolves every waiter registered under an epoch older than epoch with err.
// Waiters of epoch itself are untouched.
func (r *Registry) InvalidateBefore(epoch uint64, err error) int {
	return r.resolveWhere(func(w *Waiter) bool { return w.epoch < epoch }, err)
}

// ResolveAll resolves every pending waiter with err.
func (r *Registry) ResolveAll(err error) int {
	return r.resolveWhere(func(*Waiter) bool { return true }, err)
}

func (r *Registry) resolveWhere(match func(*Waiter) bool, err error) int {
	var hit []*Waiter

	r.mu.Lock()
	for token, w := range r.pending {
		if match(w) {
			hit = append(hit, w)
			delete(r.pending, token)
		}
	}
	n := len(r.pending)
	r.mu.Unlock()

	if len(hit) == 0 {
		return 0
	}
	r.changed(n)
	for _, w := range hit {
		w.done <- Outcome{Err: err}
	}
	return len(hit)
}

// Await blocks until w resolves, its deadline passes or ctx ends. On deadline the entry is
// removed; if a reply won that race the reply is returned instead.
func (r *Registry) Await(ctx context.Context, w *Waiter) Outcome {
	var expired <-chan time.Time
	if !w.deadline.IsZero() {
		t := r.clock.Timer(w.deadline.Sub(r.clock.Now()))
		defer t.Stop()
		expired = t.C
	}

	select {
	case out := <-w.done:
		return out
	case <-expired:
		if r.Cancel(w) {
			return Outcome{Err: ErrTimeout.WrapMsg("", "transaction", w.token)}
		}
		return <-w.done
	case <-ctx.Done():
		if r.Cancel(w) {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Outcome{Err: ErrTimeout.WrapMsg("context deadline", "transaction", w.token)}
			}
			return Outcome{Err: errs.Wrap(ctx.Err())}
		}
		return <-w.done
	}
}

// Len returns the number of pending transactions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Registry) remove(w *Waiter) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.pending[w.token]; ok && cur == w {
		delete(r.pending, w.token)
		return true, len(r.pending)
	}
	return false, len(r.pending)
}

func (r *Registry) changed(n int) {
	if r.onChange != nil {
		r.onChange(n)
	}
}

package janus

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// keepaliveLoop refreshes session on every tick while lk is the Connected link. Failures are
// logged only; a dead link is noticed by the read loop.
func (e *Engine) keepaliveLoop(ctx context.Context, lk *link, session uint64, ticker *clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-lk.closed:
			return
		case <-ticker.C:
			if e.State() != StateConnected || e.currentLink() != lk {
				continue
			}
			if err := e.Keepalive(ctx, session); err != nil {
				e.log.Warn("keepalive failed", zap.Uint64("session_id", session), zap.Error(err))
				continue
			}
			e.log.Debug("keepalive", zap.Uint64("session_id", session))
		}
	}
}

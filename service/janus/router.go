package janus

import (
	"errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const malformedSample = 256

// readLoop owns the read side of lk. It exits only when the socket fails or is closed, and then
// fails every waiter registered on lk's epoch.
func (e *Engine) readLoop(lk *link) {
	log := e.log.With(zap.Uint64("epoch", lk.epoch))
	for {
		mt, data, err := lk.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			switch {
			case errors.As(err, &ce):
				log.Info("gateway closed link", zap.Int("code", ce.Code), zap.String("text", ce.Text))
			default:
				select {
				case <-lk.closed:
				default:
					log.Warn("read failed", zap.Error(err))
				}
			}
			lk.close(ErrConnectionLost.WrapMsg(err.Error(), "epoch", lk.epoch))
			e.reg.InvalidateBefore(lk.epoch+1, lk.reason())
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		e.route(data)
	}
}

// route hands a reply to its waiter or an event to the sink. Frames that do not decode are
// dropped and the loop carries on.
func (e *Engine) route(data []byte) {
	msg, err := Decode(data)
	if err != nil {
		e.metrics.incMalformed()
		sample := data
		if len(sample) > malformedSample {
			sample = sample[:malformedSample]
		}
		e.log.Warn("malformed frame dropped", zap.Error(err), zap.ByteString("frame", sample))
		return
	}

	if msg.Reply() {
		e.reg.Resolve(msg.Transaction, Outcome{Msg: msg})
		return
	}
	if e.events.Offer(msg) {
		e.metrics.incEvent("delivered")
	} else {
		e.metrics.incEvent("dropped")
		e.log.Debug("event dropped", zap.String("janus", msg.Janus), zap.Uint64("session_id", msg.SessionID))
	}
}

package janus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"janusbridge/tools/decode"
	"janusbridge/tools/errs"
	"janusbridge/tools/ids"

	"go.uber.org/zap"
)

// PluginResult is the answer to a plugin message. Ack is set when the gateway only acknowledged
// the request; the real result then arrives later as an event carrying the same transaction.
type PluginResult struct {
	Ack         bool
	Transaction string
	Sender      uint64
	Plugin      string
	Data        json.RawMessage
	Jsep        json.RawMessage
}

// Decode maps the plugin data object onto v (a struct pointer, fields matched by json tag).
// Numbers are decoded leniently so 64-bit room ids and quoted numbers both fit.
func (r *PluginResult) Decode(v any) error {
	if len(r.Data) == 0 {
		return ErrMalformed.WrapMsg("plugin result without data", "transaction", r.Transaction)
	}
	return errs.Wrap(decode.DecodeInto(r.Data, v))
}

// PluginError is a failure reported inside a successful plugin reply ("error_code"/"error").
type PluginError struct {
	Plugin string
	Code   int    `json:"error_code"`
	Reason string `json:"error"`
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("janus: plugin %s error %d: %s", e.Plugin, e.Code, e.Reason)
}

// Err returns the nested plugin error, if any.
func (r *PluginResult) Err() error {
	if len(r.Data) == 0 {
		return nil
	}
	pe := &PluginError{Plugin: r.Plugin}
	if json.Unmarshal(r.Data, pe) != nil || (pe.Code == 0 && pe.Reason == "") {
		return nil
	}
	return pe
}

// Submit sends cmd and waits for its reply. A fresh transaction token is assigned when
// cmd.Transaction is empty. An explicit gateway error is returned as *GatewayError together
// with the reply. Fails fast with ErrNotConnected when there is no link.
func (e *Engine) Submit(ctx context.Context, cmd Command) (*InboundMessage, error) {
	start := e.clock.Now()
	msg, err := e.submit(ctx, cmd)
	e.metrics.observeRequest(cmd.Kind, outcomeLabel(err), e.clock.Now().Sub(start))
	return msg, err
}

func (e *Engine) submit(ctx context.Context, cmd Command) (*InboundMessage, error) {
	lk := e.currentLink()
	if lk == nil {
		if e.State() == StateStopped {
			return nil, ErrShutdown.Wrap()
		}
		return nil, ErrNotConnected.WrapMsg("", "kind", cmd.Kind)
	}
	if cmd.Transaction == "" {
		cmd.Transaction = ids.Token()
	}
	frame, err := Encode(cmd, e.cfg.APISecret)
	if err != nil {
		return nil, err
	}

	w, err := e.reg.Register(cmd.Transaction, lk.epoch, e.clock.Now().Add(e.cfg.RequestTimeout))
	if err != nil {
		return nil, err
	}
	if err := e.send(lk, frame); err != nil {
		e.reg.Cancel(w)
		return nil, err
	}
	e.log.Debug("request sent", zap.String("janus", string(cmd.Kind)),
		zap.String("transaction", cmd.Transaction), zap.Uint64("epoch", lk.epoch))

	out := e.reg.Await(ctx, w)
	if out.Err != nil {
		return nil, out.Err
	}
	if out.Msg.Kind == MessageError {
		return out.Msg, out.Msg.Error
	}
	return out.Msg, nil
}

// CreateSession opens a gateway session and returns its id.
func (e *Engine) CreateSession(ctx context.Context) (uint64, error) {
	msg, err := e.Submit(ctx, Command{Kind: KindCreate})
	if err != nil {
		return 0, err
	}
	return dataID(msg)
}

// AttachHandle attaches plugin to session and returns the handle id.
func (e *Engine) AttachHandle(ctx context.Context, session uint64, plugin string) (uint64, error) {
	msg, err := e.Submit(ctx, Command{Kind: KindAttach, SessionID: session, Plugin: plugin})
	if err != nil {
		return 0, err
	}
	return dataID(msg)
}

// Keepalive refreshes session.
func (e *Engine) Keepalive(ctx context.Context, session uint64) error {
	_, err := e.Submit(ctx, Command{Kind: KindKeepalive, SessionID: session})
	return err
}

// PluginRequest sends body to the plugin behind handle. body may be a json.RawMessage, a []byte
// holding JSON, or any value encoding/json accepts.
func (e *Engine) PluginRequest(ctx context.Context, session, handle uint64, body any) (*PluginResult, error) {
	raw, err := rawBody(body)
	if err != nil {
		return nil, err
	}
	msg, err := e.Submit(ctx, Command{Kind: KindMessage, SessionID: session, HandleID: handle, Body: raw})
	if err != nil {
		return nil, err
	}
	res := &PluginResult{
		Ack:         msg.Kind == MessageAck,
		Transaction: msg.Transaction,
		Sender:      msg.Sender,
		Jsep:        msg.Jsep,
	}
	if msg.PluginData != nil {
		res.Plugin = msg.PluginData.Plugin
		res.Data = msg.PluginData.Data
	}
	return res, nil
}

// Request sends body to the plugin handle the engine attached during bootstrap.
func (e *Engine) Request(ctx context.Context, body any) (*PluginResult, error) {
	e.mu.RLock()
	state, session, handle := e.state, e.session, e.handle
	e.mu.RUnlock()

	switch {
	case state == StateStopped:
		return nil, ErrShutdown.Wrap()
	case state != StateConnected || session == 0 || handle == 0:
		return nil, ErrNotConnected.WrapMsg("", "state", state)
	}
	return e.PluginRequest(ctx, session, handle, body)
}

// Detach releases handle.
func (e *Engine) Detach(ctx context.Context, session, handle uint64) error {
	_, err := e.Submit(ctx, Command{Kind: KindDetach, SessionID: session, HandleID: handle})
	return err
}

// Destroy closes session on the gateway.
func (e *Engine) Destroy(ctx context.Context, session uint64) error {
	_, err := e.Submit(ctx, Command{Kind: KindDestroy, SessionID: session})
	return err
}

func dataID(msg *InboundMessage) (uint64, error) {
	var d struct {
		ID uint64 `json:"id"`
	}
	if len(msg.Data) == 0 || json.Unmarshal(msg.Data, &d) != nil || d.ID == 0 {
		return 0, ErrMalformed.WrapMsg("reply without data.id", "transaction", msg.Transaction)
	}
	return d.ID, nil
}

func rawBody(body any) (json.RawMessage, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return b, nil
	case []byte:
		if !json.Valid(b) {
			return nil, ErrMalformed.WrapMsg("body is not valid JSON")
		}
		return b, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errs.WrapMsg(err, "encode plugin body")
	}
	return raw, nil
}

func outcomeLabel(err error) string {
	var ge *GatewayError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ge):
		return "gateway_error"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConnectionLost):
		return "connection_lost"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrShutdown):
		return "shutdown"
	}
	return "error"
}

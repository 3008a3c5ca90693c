package janus

import (
	"encoding/json"
	"strings"
)

// CommandKind is the value of the "janus" field on an outbound request.
type CommandKind string

const (
	KindCreate    CommandKind = "create"
	KindAttach    CommandKind = "attach"
	KindKeepalive CommandKind = "keepalive"
	KindMessage   CommandKind = "message"
	KindDetach    CommandKind = "detach"
	KindDestroy   CommandKind = "destroy"
)

// Command is one logical outbound request.
type Command struct {
	Kind        CommandKind
	Transaction string
	SessionID   uint64 // zero for create
	HandleID    uint64 // message/detach only
	Plugin      string // attach only
	Body        json.RawMessage
	Jsep        json.RawMessage
}

type outboundEnvelope struct {
	Janus       CommandKind     `json:"janus"`
	APISecret   string          `json:"apisecret,omitempty"`
	Transaction string          `json:"transaction"`
	SessionID   uint64          `json:"session_id,omitempty"`
	HandleID    uint64          `json:"handle_id,omitempty"`
	Plugin      string          `json:"plugin,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	Jsep        json.RawMessage `json:"jsep,omitempty"`
}

// Encode renders cmd as a gateway frame. secret is omitted when empty.
func Encode(cmd Command, secret string) ([]byte, error) {
	if cmd.Transaction == "" {
		return nil, ErrMalformed.WrapMsg("command without transaction", "kind", cmd.Kind)
	}
	return json.Marshal(outboundEnvelope{
		Janus:       cmd.Kind,
		APISecret:   secret,
		Transaction: cmd.Transaction,
		SessionID:   cmd.SessionID,
		HandleID:    cmd.HandleID,
		Plugin:      cmd.Plugin,
		Body:        cmd.Body,
		Jsep:        cmd.Jsep,
	})
}

// MessageKind classifies an inbound frame.
type MessageKind int

const (
	MessageSuccess MessageKind = iota + 1
	MessageError
	MessageAck
	MessageEvent
)

func (k MessageKind) String() string {
	switch k {
	case MessageSuccess:
		return "success"
	case MessageError:
		return "error"
	case MessageAck:
		return "ack"
	case MessageEvent:
		return "event"
	}
	return "unknown"
}

// PluginData is the "plugindata" member of plugin replies and events.
type PluginData struct {
	Plugin string          `json:"plugin"`
	Data   json.RawMessage `json:"data"`
}

// InboundMessage is a parsed gateway frame. It is not mutated after Decode.
type InboundMessage struct {
	Kind        MessageKind
	Janus       string // raw status, e.g. "webrtcup" for an event
	Transaction string
	SessionID   uint64
	HandleID    uint64
	Sender      uint64
	Data        json.RawMessage
	PluginData  *PluginData
	Error       *GatewayError
	Jsep        json.RawMessage
	Body        json.RawMessage
	Raw         []byte
}

// Reply reports whether the message answers a transaction.
func (m *InboundMessage) Reply() bool {
	return m.Kind != MessageEvent && m.Transaction != ""
}

type inboundEnvelope struct {
	Janus       *string         `json:"janus"`
	Transaction string          `json:"transaction"`
	SessionID   uint64          `json:"session_id"`
	HandleID    uint64          `json:"handle_id"`
	Sender      uint64          `json:"sender"`
	Data        json.RawMessage `json:"data"`
	PluginData  *PluginData     `json:"plugindata"`
	Error       *GatewayError   `json:"error"`
	Jsep        json.RawMessage `json:"jsep"`
	Body        json.RawMessage `json:"body"`
}

// eventStatuses are the statuses the gateway pushes without being asked.
var eventStatuses = map[string]struct{}{
	"event":       {},
	"webrtcup":    {},
	"media":       {},
	"slowlink":    {},
	"hangup":      {},
	"detached":    {},
	"timeout":     {},
	"trickle":     {},
	"server_info": {},
}

// Decode parses and classifies a gateway frame. A reply status (success, error, ack) with a
// transaction is a reply; any other known status, or a reply status without a transaction, is
// an event. Invalid JSON and unknown or missing statuses fail with ErrMalformed.
func Decode(raw []byte) (*InboundMessage, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrMalformed.WrapMsg(err.Error())
	}
	if env.Janus == nil {
		return nil, ErrMalformed.WrapMsg("missing janus field")
	}
	status := strings.ToLower(*env.Janus)

	msg := &InboundMessage{
		Janus:       status,
		Transaction: env.Transaction,
		SessionID:   env.SessionID,
		HandleID:    env.HandleID,
		Sender:      env.Sender,
		Data:        env.Data,
		PluginData:  env.PluginData,
		Error:       env.Error,
		Jsep:        env.Jsep,
		Body:        env.Body,
		Raw:         raw,
	}

	var kind MessageKind
	switch status {
	case "success":
		kind = MessageSuccess
	case "error":
		kind = MessageError
		if msg.Error == nil {
			msg.Error = &GatewayError{}
		}
	case "ack":
		kind = MessageAck
	default:
		if _, ok := eventStatuses[status]; !ok {
			return nil, ErrMalformed.WrapMsg("unknown status", "janus", status)
		}
		kind = MessageEvent
	}
	if env.Transaction == "" {
		kind = MessageEvent
	}
	msg.Kind = kind
	return msg, nil
}

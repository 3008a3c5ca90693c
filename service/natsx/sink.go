package natsx

import (
	"context"
	"strconv"
	"time"

	"janusbridge/service/janus"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BizJanusEvents is the route every gateway event is published on.
const BizJanusEvents = "janus.events"

// Header keys carried by every published event.
const (
	HdrJanus   = "Janus-Event"
	HdrSession = "Janus-Session"
	HdrSender  = "Janus-Sender"
	HdrPlugin  = "Janus-Plugin"
)

type publisher interface {
	PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error
}

// Sink publishes every gateway event verbatim on the BizJanusEvents route. Classification
// metadata travels in headers so subscribers can filter without parsing the body.
type Sink struct {
	pub     publisher
	client  *NatsxClient
	timeout time.Duration
	static  map[string]string
	log     *zap.Logger
}

type SinkOption func(*Sink)

// WithStaticHeaders adds hdr to every published event. Event headers win on key clashes.
func WithStaticHeaders(hdr map[string]string) SinkOption {
	return func(s *Sink) { s.static = hdr }
}

// NewSink connects to NATS and registers subject as the event route.
func NewSink(cfg NatsxConfig, subject string, mode NatsxMode, log *zap.Logger, opts ...SinkOption) (*Sink, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c, err := NewNatsxClient(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := c.RegisterRoute(NatsxRoute{Biz: BizJanusEvents, Subject: subject, Mode: mode}); err != nil {
		_ = c.Close()
		return nil, err
	}
	s := &Sink{pub: NewNatsxProducer(c), client: c, timeout: c.cfg.Timeout, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Sink) OnEvent(msg *janus.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.pub.PublishOnce(ctx, BizJanusEvents, msg.Raw, s.headers(msg), uuid.NewString()); err != nil {
		s.log.Warn("publish janus event", zap.String("janus", msg.Janus), zap.Error(err))
	}
}

func (s *Sink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Sink) headers(msg *janus.InboundMessage) map[string]string {
	hdr := EventHeaders(msg)
	for k, v := range s.static {
		if _, ok := hdr[k]; !ok {
			hdr[k] = v
		}
	}
	return hdr
}

// EventHeaders describes msg for subscribers.
func EventHeaders(msg *janus.InboundMessage) map[string]string {
	hdr := map[string]string{HdrJanus: msg.Janus}
	if msg.SessionID != 0 {
		hdr[HdrSession] = strconv.FormatUint(msg.SessionID, 10)
	}
	if msg.Sender != 0 {
		hdr[HdrSender] = strconv.FormatUint(msg.Sender, 10)
	}
	if msg.PluginData != nil && msg.PluginData.Plugin != "" {
		hdr[HdrPlugin] = msg.PluginData.Plugin
	}
	return hdr
}

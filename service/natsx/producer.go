package natsx

import (
	"context"

	"janusbridge/tools/errs"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NatsxProducer 生产端
type NatsxProducer struct{ c *NatsxClient }

func NewNatsxProducer(c *NatsxClient) *NatsxProducer { return &NatsxProducer{c: c} }

// Publish 按 Biz 路由发送
func (p *NatsxProducer) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	r, ok := p.c.route(biz)
	if !ok {
		return errs.NewCodeError(3003, "route not found").WrapMsg("", "biz", biz)
	}
	switch r.Mode {
	case Core:
		return p.c.sendCore(r.Subject, data, hdr)
	case JetStream:
		return p.c.sendJS(ctx, r.Subject, data, hdr)
	}
	return errs.NewCodeError(3004, "unsupported mode").WrapMsg("", "biz", biz, "mode", r.Mode)
}

// PublishOnce 带 Nats-Msg-Id 的发布（JetStream 按它去重）；msgID 为空则自动生成
func (p *NatsxProducer) PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	return p.Publish(ctx, biz, data, withMsgID(hdr, msgID))
}

func withMsgID(hdr map[string]string, msgID string) map[string]string {
	out := make(map[string]string, len(hdr)+1)
	for k, v := range hdr {
		out[k] = v
	}
	if msgID == "" {
		msgID = uuid.NewString()
	}
	out[nats.MsgIdHdr] = msgID
	return out
}

package redis

import (
	"context"
	"strconv"
	"time"

	"janusbridge/service/janus"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultMaxLen = 100_000

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamSink appends every gateway event to a capped Redis stream.
type StreamSink struct {
	rdb     streamAdder
	stream  string
	maxLen  int64
	timeout time.Duration
	log     *zap.Logger
	closeFn func() error
	now     func() time.Time
}

// NewStreamSink writes to stream on rdb, trimming it to roughly maxLen entries.
func NewStreamSink(rdb *redis.Client, stream string, maxLen int64, log *zap.Logger) *StreamSink {
	s := newStreamSink(rdb, stream, maxLen, log)
	s.closeFn = rdb.Close
	return s
}

func newStreamSink(rdb streamAdder, stream string, maxLen int64, log *zap.Logger) *StreamSink {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamSink{
		rdb:     rdb,
		stream:  stream,
		maxLen:  maxLen,
		timeout: 2 * time.Second,
		log:     log,
		now:     time.Now,
	}
}

func (s *StreamSink) OnEvent(msg *janus.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	id, err := s.Append(ctx, msg)
	if err != nil {
		s.log.Warn("append janus event", zap.String("stream", s.stream), zap.Error(err))
		return
	}
	s.log.Debug("janus event stored", zap.String("stream", s.stream), zap.String("id", id))
}

// Append stores msg and returns the stream entry id.
func (s *StreamSink) Append(ctx context.Context, msg *janus.InboundMessage) (string, error) {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: Fields(msg, s.now()),
		Approx: true,
		MaxLen: s.maxLen,
	}
	return s.rdb.XAdd(ctx, args).Result()
}

func (s *StreamSink) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Fields is the stream entry layout for one event.
func Fields(msg *janus.InboundMessage, at time.Time) map[string]any {
	f := map[string]any{
		"id":         uuid.NewString(),
		"janus":      msg.Janus,
		"session_id": strconv.FormatUint(msg.SessionID, 10),
		"sender":     strconv.FormatUint(msg.Sender, 10),
		"received":   at.UnixMilli(),
		"payload":    string(msg.Raw),
	}
	if msg.PluginData != nil {
		f["plugin"] = msg.PluginData.Plugin
	}
	return f
}

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"janusbridge/service/janus"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	cmd := redis.NewStringCmd(ctx, "xadd", a.Stream)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("1700000000000-0")
	}
	return cmd
}

func decode(t *testing.T, raw string) *janus.InboundMessage {
	msg, err := janus.Decode([]byte(raw))
	require.NoError(t, err)
	return msg
}

func TestStreamSinkAppend(t *testing.T) {
	fs := &fakeStream{}
	s := newStreamSink(fs, "janus:events", 500, nil)
	at := time.UnixMilli(1_700_000_000_123)
	s.now = func() time.Time { return at }

	raw := `{"janus":"webrtcup","session_id":42,"sender":7}`
	id, err := s.Append(context.Background(), decode(t, raw))
	require.NoError(t, err)
	assert.Equal(t, "1700000000000-0", id)

	require.Len(t, fs.args, 1)
	a := fs.args[0]
	assert.Equal(t, "janus:events", a.Stream)
	assert.True(t, a.Approx)
	assert.Equal(t, int64(500), a.MaxLen)

	f, ok := a.Values.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "webrtcup", f["janus"])
	assert.Equal(t, "42", f["session_id"])
	assert.Equal(t, "7", f["sender"])
	assert.Equal(t, int64(1_700_000_000_123), f["received"])
	assert.Equal(t, raw, f["payload"])
	assert.NotEmpty(t, f["id"])
	assert.NotContains(t, f, "plugin")
}

func TestStreamSinkDefaultsAndErrors(t *testing.T) {
	fs := &fakeStream{err: errors.New("READONLY You can't write against a read only replica")}
	s := newStreamSink(fs, "janus:events", 0, nil)
	assert.Equal(t, int64(defaultMaxLen), s.maxLen)

	s.OnEvent(decode(t, `{"janus":"event","session_id":1,"plugindata":{"plugin":"janus.plugin.videoroom","data":{}}}`))
	require.Len(t, fs.args, 1)
	assert.Equal(t, "janus.plugin.videoroom", fs.args[0].Values.(map[string]any)["plugin"])
	assert.NoError(t, s.Close())
}

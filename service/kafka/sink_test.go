package kafka

import (
	"errors"
	"testing"

	"janusbridge/service/janus"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) *janus.InboundMessage {
	msg, err := janus.Decode([]byte(raw))
	require.NoError(t, err)
	return msg
}

func TestSinkProducesRawEvent(t *testing.T) {
	raw := `{"janus":"hangup","session_id":42,"sender":7,"reason":"DTLS alert"}`
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != raw {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})

	s := NewSinkFromProducer(p, "janus-events", nil)
	s.OnEvent(decode(t, raw))
	require.NoError(t, s.Close())
}

func TestSinkProduceFailureIsSwallowed(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	p.ExpectSendMessageAndSucceed()

	s := NewSinkFromProducer(p, "janus-events", nil)
	s.OnEvent(decode(t, `{"janus":"timeout","session_id":42}`))
	s.OnEvent(decode(t, `{"janus":"timeout","session_id":43}`))
	require.NoError(t, s.Close())
}

func TestSinkMessageLayout(t *testing.T) {
	s := NewSinkFromProducer(nil, "janus-events", nil)

	pm := s.message(decode(t,
		`{"janus":"event","session_id":42,"plugindata":{"plugin":"janus.plugin.videoroom","data":{}}}`))
	assert.Equal(t, "janus-events", pm.Topic)
	assert.Equal(t, sarama.StringEncoder("42"), pm.Key)
	require.Len(t, pm.Headers, 2)
	assert.Equal(t, "janus", string(pm.Headers[0].Key))
	assert.Equal(t, "event", string(pm.Headers[0].Value))
	assert.Equal(t, "janus.plugin.videoroom", string(pm.Headers[1].Value))

	pm = s.message(decode(t, `{"janus":"timeout"}`))
	assert.Nil(t, pm.Key)
	assert.Len(t, pm.Headers, 1)
}

func TestBuildBaseConfig(t *testing.T) {
	cfg := BuildBaseConfig(Config{ProducerCompression: "LZ4"})
	assert.Equal(t, sarama.CompressionLZ4, cfg.Producer.Compression)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.True(t, cfg.Producer.Return.Successes)
	assert.Equal(t, 3, cfg.Producer.Retry.Max)
	assert.Equal(t, "janusbridge", cfg.ClientID)
	assert.NoError(t, cfg.Validate())
}

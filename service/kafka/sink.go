package kafka

import (
	"strconv"

	"janusbridge/service/janus"
	"janusbridge/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sink writes gateway events to a Kafka topic keyed by session id, so one session's events stay
// ordered within a partition.
type Sink struct {
	producer sarama.SyncProducer
	client   sarama.Client
	topic    string
	log      *zap.Logger
}

// NewSink dials the brokers, optionally ensures the topic and starts a sync producer.
func NewSink(c Config, log *zap.Logger) (*Sink, error) {
	c.norm()
	if log == nil {
		log = zap.NewNop()
	}
	client, err := sarama.NewClient(c.Brokers, BuildBaseConfig(c))
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka client", "brokers", c.Brokers)
	}
	if c.EnsureTopic {
		admin, err := sarama.NewClusterAdminFromClient(client)
		if err != nil {
			_ = client.Close()
			return nil, errs.WrapMsg(err, "kafka admin")
		}
		// closing admin would close the shared client, so it is left to client.Close
		if err := EnsureTopic(admin, c.Topic, c, log); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	p, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errs.WrapMsg(err, "kafka producer")
	}
	s := NewSinkFromProducer(p, c.Topic, log)
	s.client = client
	return s, nil
}

func NewSinkFromProducer(p sarama.SyncProducer, topic string, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{producer: p, topic: topic, log: log}
}

func (s *Sink) OnEvent(msg *janus.InboundMessage) {
	partition, offset, err := s.producer.SendMessage(s.message(msg))
	if err != nil {
		s.log.Warn("produce janus event", zap.String("topic", s.topic), zap.String("janus", msg.Janus), zap.Error(err))
		return
	}
	s.log.Debug("janus event produced", zap.String("topic", s.topic),
		zap.Int32("partition", partition), zap.Int64("offset", offset))
}

func (s *Sink) message(msg *janus.InboundMessage) *sarama.ProducerMessage {
	pm := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(msg.Raw),
		Headers: []sarama.RecordHeader{
			{Key: []byte("janus"), Value: []byte(msg.Janus)},
		},
	}
	if msg.SessionID != 0 {
		pm.Key = sarama.StringEncoder(strconv.FormatUint(msg.SessionID, 10))
	}
	if msg.PluginData != nil && msg.PluginData.Plugin != "" {
		pm.Headers = append(pm.Headers, sarama.RecordHeader{Key: []byte("plugin"), Value: []byte(msg.PluginData.Plugin)})
	}
	return pm
}

func (s *Sink) Close() error {
	err := s.producer.Close()
	if s.client != nil && !s.client.Closed() {
		err = multierr.Append(err, s.client.Close())
	}
	return err
}

package kafka

import (
	"strings"
	"time"

	"github.com/Shopify/sarama"
)

// Config for the event sink. Zero values fall back to the defaults in norm.
type Config struct {
	Brokers             []string
	Topic               string
	ClientID            string
	ProducerRetries     int
	ProducerCompression string // none/snappy/lz4/zstd
	PartitionsPerTopic  int32
	ReplicationFactor   int16
	KafkaVersion        sarama.KafkaVersion
	EnsureTopic         bool
}

func (c *Config) norm() {
	if c.Topic == "" {
		c.Topic = "janus-events"
	}
	if c.ClientID == "" {
		c.ClientID = "janusbridge"
	}
	if c.ProducerRetries <= 0 {
		c.ProducerRetries = 3
	}
	if c.PartitionsPerTopic <= 0 {
		c.PartitionsPerTopic = 8
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = 1
	}
	if c.KafkaVersion == (sarama.KafkaVersion{}) {
		c.KafkaVersion = sarama.V2_1_0_0
	}
}

func BuildBaseConfig(c Config) *sarama.Config {
	c.norm()
	cfg := sarama.NewConfig()
	cfg.ClientID = c.ClientID
	cfg.Version = c.KafkaVersion

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = c.ProducerRetries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // ★ Key(session_id) 决定分区，同一会话有序
	switch strings.ToLower(c.ProducerCompression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

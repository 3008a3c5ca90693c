package config

import "time"

type AppConfig struct {
	NodeID int64       `toml:"node_id"` // snowflake node id, 0~1023
	Log    LogConfig   `toml:"log"`
	Janus  JanusConfig `toml:"janus"`
	Relay  RelayConfig `toml:"relay"`
	Room   RoomConfig  `toml:"room"`
	Sinks  SinksConfig `toml:"sinks"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// JanusConfig describes the gateway link.
type JanusConfig struct {
	URL               string        `toml:"url"`
	Protocol          string        `toml:"protocol"` // websocket sub-protocol
	APISecret         string        `toml:"api_secret"`
	Plugin            string        `toml:"plugin"`
	KeepaliveInterval time.Duration `toml:"keepalive_interval"`
	RequestTimeout    time.Duration `toml:"request_timeout"`
	DialTimeout       time.Duration `toml:"dial_timeout"`
	WriteTimeout      time.Duration `toml:"write_timeout"`
	Backoff           BackoffConfig `toml:"backoff"`
}

type BackoffConfig struct {
	Min        time.Duration `toml:"min"`
	Max        time.Duration `toml:"max"`
	Multiplier float64       `toml:"multiplier"`
	Jitter     bool          `toml:"jitter"`
}

// RelayConfig is the browser facing chat server.
type RelayConfig struct {
	Addr           string        `toml:"addr"`
	SendQueue      int           `toml:"send_queue"`
	FanoutWorkers  int           `toml:"fanout_workers"`
	FanoutQueue    int           `toml:"fanout_queue"`
	CommandTimeout time.Duration `toml:"command_timeout"`
	AllowedOrigins []string      `toml:"allowed_origins"` // empty => any origin
}

// RoomConfig carries the videoroom credentials used by chat commands.
type RoomConfig struct {
	AdminKey string `toml:"admin_key"`
	Secret   string `toml:"secret"`
	Room     uint64 `toml:"room"` // room targeted by kick
}

type SinksConfig struct {
	Queue int         `toml:"queue"` // async sink buffer
	NATS  NATSConfig  `toml:"nats"`
	Redis RedisConfig `toml:"redis"`
	Kafka KafkaConfig `toml:"kafka"`
}

type NATSConfig struct {
	Servers   []string `toml:"servers"`
	Name      string   `toml:"name"`
	Subject   string   `toml:"subject"`
	JetStream bool     `toml:"jetstream"`
	Headers   string   `toml:"headers"` // "k1=v1,k2=v2" added to every event
}

func (c NATSConfig) Enabled() bool { return len(c.Servers) > 0 }

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Stream   string `toml:"stream"`
	MaxLen   int64  `toml:"max_len"`
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

type KafkaConfig struct {
	Brokers     []string `toml:"brokers"`
	Topic       string   `toml:"topic"`
	EnsureTopic bool     `toml:"ensure_topic"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

package config

import (
	"os"
	"time"

	"janusbridge/tools"
	"janusbridge/tools/errs"

	"github.com/BurntSushi/toml"
)

const (
	DefaultJanusURL      = "ws://127.0.0.1:8188/janus"
	DefaultJanusProtocol = "janus-protocol"
	DefaultJanusPlugin   = "janus.plugin.videoroom"
)

var ErrInvalidConfig = errs.NewCodeError(2001, "invalid config")

// Default returns the configuration used when neither a file nor env overrides anything.
func Default() AppConfig {
	return AppConfig{
		NodeID: 1,
		Log:    LogConfig{Level: "info"},
		Janus: JanusConfig{
			URL:               DefaultJanusURL,
			Protocol:          DefaultJanusProtocol,
			Plugin:            DefaultJanusPlugin,
			KeepaliveInterval: 30 * time.Second,
			RequestTimeout:    10 * time.Second,
			DialTimeout:       5 * time.Second,
			WriteTimeout:      5 * time.Second,
			Backoff: BackoffConfig{
				Min:        time.Second,
				Max:        30 * time.Second,
				Multiplier: 2,
				Jitter:     true,
			},
		},
		Relay: RelayConfig{
			Addr:           ":8080",
			SendQueue:      256,
			FanoutWorkers:  4,
			FanoutQueue:    1024,
			CommandTimeout: 10 * time.Second,
		},
		Sinks: SinksConfig{
			Queue: 1024,
			NATS:  NATSConfig{Name: "janusbridge", Subject: "janus.events"},
			Redis: RedisConfig{Stream: "janus:events", MaxLen: 100_000},
			Kafka: KafkaConfig{Topic: "janus-events"},
		},
	}
}

// Load builds the config: defaults, then the TOML file at path (optional), then env overrides.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, errs.WrapMsg(err, "stat config", "path", path)
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, errs.WrapMsg(err, "decode config", "path", path)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	cfg.Log.Level = tools.GetEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.NodeID = int64(tools.GetEnvInt("NODE_ID", int(cfg.NodeID)))

	j := &cfg.Janus
	j.URL = tools.GetEnv("JANUS_URL", j.URL)
	j.Protocol = tools.GetEnv("JANUS_PROTOCOL", j.Protocol)
	j.APISecret = tools.GetEnv("JANUS_API_SECRET", j.APISecret)
	j.Plugin = tools.GetEnv("JANUS_PLUGIN", j.Plugin)
	j.KeepaliveInterval = tools.GetEnvDuration("JANUS_KEEPALIVE", j.KeepaliveInterval)
	j.RequestTimeout = tools.GetEnvDuration("JANUS_REQUEST_TIMEOUT", j.RequestTimeout)
	j.Backoff.Min = tools.GetEnvDuration("JANUS_BACKOFF_MIN", j.Backoff.Min)
	j.Backoff.Max = tools.GetEnvDuration("JANUS_BACKOFF_MAX", j.Backoff.Max)

	cfg.Relay.Addr = tools.GetEnv("RELAY_ADDR", cfg.Relay.Addr)
	cfg.Relay.AllowedOrigins = tools.GetEnvList("RELAY_ALLOWED_ORIGINS", cfg.Relay.AllowedOrigins)
	cfg.Room.AdminKey = tools.GetEnv("ROOM_ADMIN_KEY", cfg.Room.AdminKey)
	cfg.Room.Secret = tools.GetEnv("ROOM_SECRET", cfg.Room.Secret)

	cfg.Sinks.NATS.Servers = tools.GetEnvList("NATS_SERVERS", cfg.Sinks.NATS.Servers)
	cfg.Sinks.NATS.JetStream = tools.GetEnvBool("NATS_JETSTREAM", cfg.Sinks.NATS.JetStream)
	cfg.Sinks.NATS.Headers = tools.GetEnv("NATS_HEADERS", cfg.Sinks.NATS.Headers)
	cfg.Sinks.Redis.Addr = tools.GetEnv("REDIS_ADDR", cfg.Sinks.Redis.Addr)
	cfg.Sinks.Redis.Password = tools.GetEnv("REDIS_PASSWORD", cfg.Sinks.Redis.Password)
	cfg.Sinks.Kafka.Brokers = tools.GetEnvList("KAFKA_BROKERS", cfg.Sinks.Kafka.Brokers)
	cfg.Sinks.Kafka.EnsureTopic = tools.GetEnvBool("KAFKA_ENSURE_TOPIC", cfg.Sinks.Kafka.EnsureTopic)
}

func (c AppConfig) Validate() error {
	j := c.Janus
	switch {
	case j.URL == "":
		return ErrInvalidConfig.WrapMsg("janus.url is empty")
	case j.KeepaliveInterval <= 0:
		return ErrInvalidConfig.WrapMsg("janus.keepalive_interval must be positive")
	case j.RequestTimeout <= 0:
		return ErrInvalidConfig.WrapMsg("janus.request_timeout must be positive")
	case j.Backoff.Min < time.Second:
		return ErrInvalidConfig.WrapMsg("janus.backoff.min below 1s", "min", j.Backoff.Min)
	case j.Backoff.Max > 0 && j.Backoff.Max < j.Backoff.Min:
		return ErrInvalidConfig.WrapMsg("janus.backoff.max below min", "min", j.Backoff.Min, "max", j.Backoff.Max)
	case c.Relay.Addr == "":
		return ErrInvalidConfig.WrapMsg("relay.addr is empty")
	}
	return nil
}

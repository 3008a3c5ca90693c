package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultJanusURL, cfg.Janus.URL)
	assert.Equal(t, DefaultJanusProtocol, cfg.Janus.Protocol)
	assert.Equal(t, 30*time.Second, cfg.Janus.KeepaliveInterval)
	assert.Equal(t, 10*time.Second, cfg.Janus.RequestTimeout)
	assert.Equal(t, time.Second, cfg.Janus.Backoff.Min)
	assert.False(t, cfg.Sinks.NATS.Enabled())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.toml")
	body := `
[janus]
url = "ws://janus.internal:8188/janus"
api_secret = "api_secret4321"
keepalive_interval = "20s"

[janus.backoff]
min = "2s"
max = "10s"

[room]
admin_key = "admin_key4321"
room = 5555

[sinks.redis]
addr = "127.0.0.1:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("JANUS_REQUEST_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://janus.internal:8188/janus", cfg.Janus.URL)
	assert.Equal(t, "api_secret4321", cfg.Janus.APISecret)
	assert.Equal(t, 20*time.Second, cfg.Janus.KeepaliveInterval)
	assert.Equal(t, 3*time.Second, cfg.Janus.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.Janus.Backoff.Min)
	assert.Equal(t, uint64(5555), cfg.Room.Room)
	assert.True(t, cfg.Sinks.Redis.Enabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Sinks.Kafka.Brokers)
	// untouched defaults survive a partial file
	assert.Equal(t, DefaultJanusPlugin, cfg.Janus.Plugin)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Janus.KeepaliveInterval = 0
	assert.True(t, errors.Is(cfg.Validate(), ErrInvalidConfig))

	cfg = Default()
	cfg.Janus.Backoff.Min = 5 * time.Second
	cfg.Janus.Backoff.Max = time.Second
	assert.True(t, errors.Is(cfg.Validate(), ErrInvalidConfig))

	cfg = Default()
	cfg.Janus.Backoff.Min = 10 * time.Millisecond
	cfg.Janus.Backoff.Max = 20 * time.Millisecond
	assert.True(t, errors.Is(cfg.Validate(), ErrInvalidConfig))

	cfg = Default()
	cfg.Janus.URL = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadRejectsShortBackoffFromEnv(t *testing.T) {
	t.Setenv("JANUS_BACKOFF_MIN", "10ms")
	_, err := Load("")
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestSinkSwitchesFromEnv(t *testing.T) {
	t.Setenv("NATS_JETSTREAM", "true")
	t.Setenv("NATS_HEADERS", "Bridge=eu-1")
	t.Setenv("KAFKA_ENSURE_TOPIC", "1")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Sinks.NATS.JetStream)
	assert.Equal(t, "Bridge=eu-1", cfg.Sinks.NATS.Headers)
	assert.True(t, cfg.Sinks.Kafka.EnsureTopic)
}

func TestRelayDefaultsAndOrigins(t *testing.T) {
	t.Setenv("RELAY_ALLOWED_ORIGINS", "chat.example.com, localhost:8080")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Relay.FanoutQueue)
	assert.Equal(t, 10*time.Second, cfg.Relay.CommandTimeout)
	assert.Equal(t, []string{"chat.example.com", "localhost:8080"}, cfg.Relay.AllowedOrigins)
}

package janus

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	DefaultProtocol = "janus-protocol"
	DefaultPlugin   = "janus.plugin.videoroom"
)

// Config drives the engine. Zero values are replaced by defaults in norm.
type Config struct {
	URL               string
	Protocol          string // websocket sub-protocol
	APISecret         string
	Plugin            string // plugin attached during bootstrap
	KeepaliveInterval time.Duration
	RequestTimeout    time.Duration
	DialTimeout       time.Duration
	WriteTimeout      time.Duration
	ReadLimit         int64
	Backoff           BackoffConfig

	Clock  clock.Clock // 可注入时钟（单测用）；nil => real clock
	Logger *zap.Logger
}

func (c *Config) norm() {
	if c.Protocol == "" {
		c.Protocol = DefaultProtocol
	}
	if c.Plugin == "" {
		c.Plugin = DefaultPlugin
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 30 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20 // 1MB
	}
	if c.Backoff.Min <= 0 {
		c.Backoff.Min = time.Second
	}
	if c.Backoff.Max <= 0 {
		c.Backoff.Max = 30 * time.Second
	}
	if c.Backoff.Multiplier <= 0 {
		c.Backoff.Multiplier = 2
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

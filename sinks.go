package main

import (
	"context"

	"janusbridge/global/config"
	"janusbridge/service/janus"
	"janusbridge/service/kafka"
	"janusbridge/service/natsx"
	rstore "janusbridge/service/storage/redis"
	"janusbridge/tools"

	"go.uber.org/zap"
)

// buildSinks opens every configured event backend. On error the sinks opened so far are closed.
func buildSinks(ctx context.Context, c config.SinksConfig, log *zap.Logger) (sinks janus.MultiSink, err error) {
	defer func() {
		if err != nil {
			_ = sinks.Close()
			sinks = nil
		}
	}()

	if c.NATS.Enabled() {
		mode := natsx.Core
		if c.NATS.JetStream {
			mode = natsx.JetStream
		}
		s, err := natsx.NewSink(natsx.NatsxConfig{Servers: c.NATS.Servers, Name: c.NATS.Name}, c.NATS.Subject, mode,
			log.Named("nats"), natsx.WithStaticHeaders(tools.ParseHdr(c.NATS.Headers)))
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, s)
		log.Info("event sink enabled", zap.String("sink", "nats"), zap.String("subject", c.NATS.Subject), zap.Bool("jetstream", c.NATS.JetStream))
	}

	if c.Redis.Enabled() {
		rdb, err := rstore.NewClient(ctx, rstore.Config{Addr: c.Redis.Addr, Password: c.Redis.Password, DB: c.Redis.DB})
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, rstore.NewStreamSink(rdb, c.Redis.Stream, c.Redis.MaxLen, log.Named("redis")))
		log.Info("event sink enabled", zap.String("sink", "redis"), zap.String("stream", c.Redis.Stream))
	}

	if c.Kafka.Enabled() {
		s, err := kafka.NewSink(kafka.Config{Brokers: c.Kafka.Brokers, Topic: c.Kafka.Topic, EnsureTopic: c.Kafka.EnsureTopic}, log.Named("kafka"))
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, s)
		log.Info("event sink enabled", zap.String("sink", "kafka"), zap.String("topic", c.Kafka.Topic))
	}
	return sinks, nil
}

func janusConfig(c config.JanusConfig, log *zap.Logger) janus.Config {
	return janus.Config{
		URL:               c.URL,
		Protocol:          c.Protocol,
		APISecret:         c.APISecret,
		Plugin:            c.Plugin,
		KeepaliveInterval: c.KeepaliveInterval,
		RequestTimeout:    c.RequestTimeout,
		DialTimeout:       c.DialTimeout,
		WriteTimeout:      c.WriteTimeout,
		Backoff: janus.BackoffConfig{
			Min:        c.Backoff.Min,
			Max:        c.Backoff.Max,
			Multiplier: c.Backoff.Multiplier,
			Jitter:     c.Backoff.Jitter,
		},
		Logger: log,
	}
}

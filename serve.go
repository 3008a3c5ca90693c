package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"janusbridge/global/config"
	"janusbridge/logger"
	"janusbridge/middleware"
	"janusbridge/service/chat"
	"janusbridge/service/janus"
	"janusbridge/tools/errs"
	"janusbridge/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	config    string
	logLevel  string
	relayAddr string
	janusURL  string
}

// apply lets explicit flags win over file and env.
func (f serveFlags) apply(cfg *config.AppConfig) {
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.relayAddr != "" {
		cfg.Relay.Addr = f.relayAddr
	}
	if f.janusURL != "" {
		cfg.Janus.URL = f.janusURL
	}
}

func serveCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the gateway and serve the chat relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.config)
			if err != nil {
				return err
			}
			f.apply(&cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger.Init(cfg.Log.Level)
			defer func() { _ = logger.Sync() }()
			ids.SetNodeID(cfg.NodeID)

			logger.Infof("janusbridge %s (%s) starting", version, commit)
			logger.Debug("config loaded", zap.String("janus", cfg.Janus.URL), zap.String("relay", cfg.Relay.Addr),
				zap.Bool("nats", cfg.Sinks.NATS.Enabled()), zap.Bool("redis", cfg.Sinks.Redis.Enabled()),
				zap.Bool("kafka", cfg.Sinks.Kafka.Enabled()))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := serve(ctx, cfg); err != nil {
				logger.Error("janusbridge stopped with error", zap.Error(err))
				return err
			}
			logger.Info("janusbridge stopped")
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "c", "", "TOML config file")
	fl.StringVar(&f.logLevel, "log-level", "", "debug|info|warn|error")
	fl.StringVar(&f.relayAddr, "relay-addr", "", "chat relay listen address")
	fl.StringVar(&f.janusURL, "janus-url", "", "gateway websocket URL")
	return cmd
}

func serve(ctx context.Context, cfg config.AppConfig) error {
	log := logger.Named("bridge")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := janus.NewMetrics("janusbridge", reg)
	if err != nil {
		return err
	}

	sinks, err := buildSinks(ctx, cfg.Sinks, logger.Named("sink"))
	if err != nil {
		return err
	}

	// the relay needs the engine and the engine needs the relay as a sink; nothing is delivered
	// before Run, so the closure sees the assigned relay.
	var relay *chat.Server
	sinks = append(sinks, janus.EventSinkFunc(func(msg *janus.InboundMessage) { relay.OnEvent(msg) }))

	engine := janus.New(janusConfig(cfg.Janus, logger.Named("janus")),
		janus.WithEventSink(sinks, cfg.Sinks.Queue),
		janus.WithMetrics(metrics),
	)
	relay = chat.NewServer(chat.Config{
		SendQueue:      cfg.Relay.SendQueue,
		FanoutWorkers:  cfg.Relay.FanoutWorkers,
		FanoutQueue:    cfg.Relay.FanoutQueue,
		Room:           cfg.Room.Room,
		AdminKey:       cfg.Room.AdminKey,
		Secret:         cfg.Room.Secret,
		CommandTimeout: cfg.Relay.CommandTimeout,
		Logger:         logger.Named("relay"),
	}, engine)
	engine.OnStateChange(relay.OnStateChange)

	srv := &http.Server{
		Addr:              cfg.Relay.Addr,
		Handler:           newRouter(cfg, relay, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Shutdown stops the engine so the session can be destroyed first
		return engine.Run(context.WithoutCancel(gctx))
	})
	g.Go(func() error {
		log.Info("relay listening", zap.String("addr", srv.Addr), zap.String("janus", cfg.Janus.URL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errs.WrapMsg(err, "relay listen", "addr", srv.Addr)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := engine.Shutdown(sctx)
		if err != nil {
			logger.Warn("engine shutdown incomplete", zap.Error(err))
		}
		relay.Close()
		return multierr.Append(err, srv.Shutdown(sctx))
	})
	return g.Wait()
}

func newRouter(cfg config.AppConfig, relay *chat.Server, reg *prometheus.Registry) *gin.Engine {
	if logger.ParseLevel(cfg.Log.Level) != zap.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	log := logger.Named("http")
	r := gin.New()
	mm := middleware.NewManager()
	mm.Add(
		middleware.Recovery(log),
		middleware.AccessLog(log),
		middleware.Origin("/chat", cfg.Relay.AllowedOrigins),
	)
	mm.Apply(r)
	relay.Routes(r, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}

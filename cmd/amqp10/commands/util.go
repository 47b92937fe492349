package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/mcastelli/amqp10/internal/logger"
	"github.com/mcastelli/amqp10/internal/telemetry"
	"github.com/mcastelli/amqp10/pkg/config"
	"github.com/mcastelli/amqp10/pkg/engine"
	"github.com/mcastelli/amqp10/pkg/metrics"
	enginemetrics "github.com/mcastelli/amqp10/pkg/metrics/prometheus"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// runtimeEnv is everything a client command needs: loaded configuration,
// an open connection, and a shutdown function that tears down the
// connection, metrics server, and telemetry in order.
type runtimeEnv struct {
	cfg      *config.Config
	conn     *engine.Conn
	shutdown func()
}

// setupRuntime loads configuration, initializes the ambient stack
// (logger, telemetry, metrics), and dials the broker.
func setupRuntime(ctx context.Context) (*runtimeEnv, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}

	if err := InitLogger(cfg); err != nil {
		return nil, err
	}

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "amqp10",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	var (
		engineM       metrics.Engine
		metricsServer *metrics.Server
	)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		engineM = enginemetrics.NewEngineMetrics()
		metricsServer = metrics.NewServer(fmt.Sprintf(":%d", cfg.Metrics.Port))
		if metricsServer != nil {
			srv := metricsServer
			go func() {
				if err := srv.Start(); err != nil {
					logger.Warn("metrics server failed", logger.Err(err))
				}
			}()
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Connection.DialTimeout)
	defer cancel()

	conn, err := engine.Dial(dialCtx, cfg.Connection.Address, engine.ConnOptions{
		ContainerID:  cfg.Connection.ContainerID,
		Hostname:     cfg.Connection.Hostname,
		MaxFrameSize: uint32(cfg.Connection.MaxFrameSize),
		ChannelMax:   cfg.Connection.ChannelMax,
		IdleTimeout:  cfg.Connection.IdleTimeout,
		Metrics:      engineM,
	})
	if err != nil {
		_ = telemetryShutdown(ctx)
		return nil, err
	}

	shutdown := func() {
		if err := conn.Close(); err != nil {
			logger.Warn("connection close failed", logger.Err(err))
		}
		if metricsServer != nil {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer stopCancel()
			if err := metricsServer.Stop(stopCtx); err != nil {
				logger.Warn("metrics server stop failed", logger.Err(err))
			}
		}
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", logger.Err(err))
		}
	}

	return &runtimeEnv{cfg: cfg, conn: conn, shutdown: shutdown}, nil
}

// beginSession maps a session on the connection using the configured
// windows and waits for the peer's Begin. The caller's handlers are
// preserved; only Mapped is wrapped for the synchronous wait.
func beginSession(env *runtimeEnv, timeout time.Duration, handlers engine.SessionHandlers) (*engine.Session, error) {
	s := env.conn.NewSession()

	mapped := make(chan struct{})
	callerMapped := handlers.Mapped
	handlers.Mapped = func(s *engine.Session) {
		close(mapped)
		if callerMapped != nil {
			callerMapped(s)
		}
	}
	s.Observe(handlers)

	nextOut := uint32(0)
	inWin := env.cfg.Session.IncomingWindow
	outWin := env.cfg.Session.OutgoingWindow
	if err := s.Begin(engine.SessionOptions{
		NextOutgoingID: &nextOut,
		IncomingWindow: &inWin,
		OutgoingWindow: &outWin,
		HandleMax:      env.cfg.Session.HandleMax,
		FlowControl:    env.cfg.Session.FlowControl,
	}); err != nil {
		return nil, err
	}

	select {
	case <-mapped:
		return s, nil
	case <-time.After(timeout):
		_ = s.End(nil)
		return nil, fmt.Errorf("timed out waiting for session begin after %s", timeout)
	}
}

package config

import (
	"strings"
	"time"

	"github.com/mcastelli/amqp10/internal/bytesize"
)

// Default values for unspecified configuration fields.
const (
	DefaultBrokerAddress  = "localhost:5672"
	DefaultMaxFrameSize   = 64 * bytesize.KiB
	DefaultChannelMax     = uint16(255)
	DefaultIdleTimeout    = 30 * time.Second
	DefaultDialTimeout    = 10 * time.Second
	DefaultIncomingWindow = uint32(2048)
	DefaultOutgoingWindow = uint32(2048)
	DefaultHandleMax      = uint32(255)
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyConnectionDefaults(&cfg.Connection)
	applySessionDefaults(&cfg.Session)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)

	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

// applyMetricsDefaults sets Prometheus metrics server defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyConnectionDefaults sets AMQP connection defaults.
func applyConnectionDefaults(cfg *ConnectionConfig) {
	if cfg.Address == "" {
		cfg.Address = DefaultBrokerAddress
	}
	// ContainerID stays empty here; the connection generates a unique id
	// per dial when none is configured.
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	if cfg.ChannelMax == 0 {
		cfg.ChannelMax = DefaultChannelMax
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
}

// applySessionDefaults sets session window defaults.
func applySessionDefaults(cfg *SessionConfig) {
	if cfg.IncomingWindow == 0 {
		cfg.IncomingWindow = DefaultIncomingWindow
	}
	if cfg.OutgoingWindow == 0 {
		cfg.OutgoingWindow = DefaultOutgoingWindow
	}
	if cfg.HandleMax == 0 {
		cfg.HandleMax = DefaultHandleMax
	}
}

// GetDefaultConfig returns a configuration populated entirely from defaults.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

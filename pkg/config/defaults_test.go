package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format text, got %q", cfg.Logging.Format)
	}
	if cfg.Telemetry.Endpoint != "localhost:4317" {
		t.Errorf("Expected default OTLP endpoint, got %q", cfg.Telemetry.Endpoint)
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Expected default sample rate 1.0, got %v", cfg.Telemetry.SampleRate)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
	if cfg.Connection.Address != DefaultBrokerAddress {
		t.Errorf("Expected default broker address, got %q", cfg.Connection.Address)
	}
	if cfg.Connection.DialTimeout != DefaultDialTimeout {
		t.Errorf("Expected default dial timeout, got %v", cfg.Connection.DialTimeout)
	}
	if cfg.Session.OutgoingWindow != DefaultOutgoingWindow {
		t.Errorf("Expected default outgoing window, got %d", cfg.Session.OutgoingWindow)
	}
	if cfg.Session.HandleMax != DefaultHandleMax {
		t.Errorf("Expected default handle max, got %d", cfg.Session.HandleMax)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Logging.Level = "debug"
	cfg.Connection.ChannelMax = 7
	cfg.Session.IncomingWindow = 16

	ApplyDefaults(cfg)

	// Level is normalized to uppercase, not replaced
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Connection.ChannelMax != 7 {
		t.Errorf("Expected channel_max 7 preserved, got %d", cfg.Connection.ChannelMax)
	}
	if cfg.Session.IncomingWindow != 16 {
		t.Errorf("Expected incoming_window 16 preserved, got %d", cfg.Session.IncomingWindow)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected default config to validate, got: %v", err)
	}
}

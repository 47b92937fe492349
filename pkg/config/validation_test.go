package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	err := Validate(cfg)
	if err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "NOISY"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "Logging.Level") {
		t.Errorf("Expected error to name Logging.Level, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for out-of-range metrics port")
	}
	if !strings.Contains(err.Error(), "Metrics.Port") {
		t.Errorf("Expected error to name Metrics.Port, got: %v", err)
	}
}

func TestValidate_MissingAddress(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Connection.Address = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for missing broker address")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("Expected 'required' in error, got: %v", err)
	}
}

func TestValidate_FrameSizeBelowProtocolMinimum(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Connection.MaxFrameSize = 256

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for max_frame_size below 512")
	}
	if !strings.Contains(err.Error(), "512") {
		t.Errorf("Expected protocol minimum in error, got: %v", err)
	}
}

func TestValidate_SampleRateOutOfRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for sample rate above 1.0")
	}
}

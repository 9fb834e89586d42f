package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const testConfig = `
hardware:
  simulated: true
  pump_pin: 17
  light_channel: 0
  soil_channel: 1
  reservoir_channel: 2

sensors:
  sample_interval: 2s
  light_threshold: 800
  soil_dry: 3200
  soil_wet: 1200
  reservoir_empty: 300

predictor:
  base_url: "http://localhost:5000"
  predict_interval: 30s
  timeout: 10s
  light_offset: 500

control:
  listen_addr: ":8080"

telemetry:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: waterctl
  device_id: garden-1

telegram:
  enabled: true
  bot_token: "test_token"
  chat_id: "12345"

logging:
  level: "info"
  format: "text"
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, testConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sensors.SampleInterval != 2*time.Second {
		t.Errorf("unexpected sample interval: %v", cfg.Sensors.SampleInterval)
	}
	if cfg.Predictor.BaseURL != "http://localhost:5000" {
		t.Errorf("unexpected predictor URL: %s", cfg.Predictor.BaseURL)
	}
	if cfg.Sensors.LightThreshold != 800 {
		t.Errorf("unexpected light threshold: %d", cfg.Sensors.LightThreshold)
	}
	if !cfg.Hardware.Simulated {
		t.Error("expected simulated hardware")
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	cal := cfg.Calibration()
	if cal.SoilDry != 3200 || cal.SoilWet != 1200 || cal.ReservoirEmpty != 300 {
		t.Errorf("unexpected calibration: %+v", cal)
	}
}

func TestDefaults(t *testing.T) {
	// A minimal file still yields a fully-populated, valid config.
	cfg, err := Load(writeTempConfig(t, "hardware:\n  simulated: true\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Sensors.SampleInterval != 2*time.Second {
		t.Errorf("unexpected default sample interval: %v", cfg.Sensors.SampleInterval)
	}
	if cfg.Predictor.PredictInterval != 30*time.Second {
		t.Errorf("unexpected default predict interval: %v", cfg.Predictor.PredictInterval)
	}
	if cfg.Predictor.LightOffset != 500 {
		t.Errorf("unexpected default light offset: %d", cfg.Predictor.LightOffset)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("unexpected default log level: %s", cfg.Logging.Level)
	}
}

func TestValidateErrors(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeTempConfig(t, testConfig))
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "bad pump pin",
			mutate:  func(c *Config) { c.Hardware.PumpPin = 99 },
			wantMsg: "pump_pin",
		},
		{
			name:    "bad ADC channel",
			mutate:  func(c *Config) { c.Hardware.SoilChannel = 8 },
			wantMsg: "MCP3008",
		},
		{
			name:    "sample interval too short",
			mutate:  func(c *Config) { c.Sensors.SampleInterval = time.Millisecond },
			wantMsg: "sample_interval",
		},
		{
			name:    "calibration out of raw range",
			mutate:  func(c *Config) { c.Sensors.SoilDry = 5000 },
			wantMsg: "calibration",
		},
		{
			name:    "missing predictor URL",
			mutate:  func(c *Config) { c.Predictor.BaseURL = "" },
			wantMsg: "base_url",
		},
		{
			name:    "predict interval below sample interval",
			mutate:  func(c *Config) { c.Predictor.PredictInterval = time.Second },
			wantMsg: "predict_interval",
		},
		{
			name:    "telegram enabled without token",
			mutate:  func(c *Config) { c.Telegram.BotToken = "" },
			wantMsg: "bot_token",
		},
		{
			name:    "telemetry enabled without device",
			mutate:  func(c *Config) { c.Telemetry.DeviceID = "" },
			wantMsg: "device_id",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantMsg: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

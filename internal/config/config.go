package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/udare/waterctl/internal/models"
)

// Config represents the complete daemon configuration
type Config struct {
	Hardware  HardwareConfig  `mapstructure:"hardware"`
	Sensors   SensorsConfig   `mapstructure:"sensors"`
	Predictor PredictorConfig `mapstructure:"predictor"`
	Control   ControlConfig   `mapstructure:"control"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// HardwareConfig holds GPIO/SPI wiring and the simulation switch
type HardwareConfig struct {
	Simulated        bool   `mapstructure:"simulated"` // use the in-memory board instead of real GPIO
	PumpPin          int    `mapstructure:"pump_pin"`
	LightChannel     int    `mapstructure:"light_channel"`     // MCP3008 channel
	SoilChannel      int    `mapstructure:"soil_channel"`      // MCP3008 channel
	ReservoirChannel int    `mapstructure:"reservoir_channel"` // MCP3008 channel
	ClimateTempPath  string `mapstructure:"climate_temp_path"` // IIO sysfs temperature file
	ClimateHumPath   string `mapstructure:"climate_hum_path"`  // IIO sysfs humidity file
}

// SensorsConfig holds the sampling cadence and initial calibration
type SensorsConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	LightThreshold int           `mapstructure:"light_threshold"`
	SoilDry        int           `mapstructure:"soil_dry"`
	SoilWet        int           `mapstructure:"soil_wet"`
	ReservoirEmpty int           `mapstructure:"reservoir_empty"`
}

// PredictorConfig holds the remote scoring service configuration
type PredictorConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	PredictInterval time.Duration `mapstructure:"predict_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
	LightOffset     int           `mapstructure:"light_offset"` // subtracted from the raw light value to center the feature
}

// ControlConfig holds the inbound HTTP control surface configuration
type ControlConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// TelemetryConfig holds the MQTT telemetry publisher configuration
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DeviceID string `mapstructure:"device_id"`
}

// TelegramConfig holds Telegram alert configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("WATERCTL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Hardware defaults (BCM numbering, MCP3008 on SPI0, dht11 IIO driver)
	v.SetDefault("hardware.simulated", false)
	v.SetDefault("hardware.pump_pin", 17)
	v.SetDefault("hardware.light_channel", 0)
	v.SetDefault("hardware.soil_channel", 1)
	v.SetDefault("hardware.reservoir_channel", 2)
	v.SetDefault("hardware.climate_temp_path", "/sys/bus/iio/devices/iio:device0/in_temp_input")
	v.SetDefault("hardware.climate_hum_path", "/sys/bus/iio/devices/iio:device0/in_humidityrelative_input")

	// Sensor defaults
	v.SetDefault("sensors.sample_interval", "2s")
	v.SetDefault("sensors.light_threshold", 800)
	v.SetDefault("sensors.soil_dry", 3200)
	v.SetDefault("sensors.soil_wet", 1200)
	v.SetDefault("sensors.reservoir_empty", 300)

	// Predictor defaults
	v.SetDefault("predictor.base_url", "http://localhost:5000")
	v.SetDefault("predictor.predict_interval", "30s")
	v.SetDefault("predictor.timeout", "10s")
	v.SetDefault("predictor.light_offset", 500)

	// Control surface defaults
	v.SetDefault("control.listen_addr", ":8080")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.broker", "tcp://localhost:1883")
	v.SetDefault("telemetry.client_id", "waterctl")
	v.SetDefault("telemetry.device_id", "garden-1")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Hardware config
	if c.Hardware.PumpPin < 0 || c.Hardware.PumpPin > 27 {
		return fmt.Errorf("hardware.pump_pin must be a valid BCM pin (0-27)")
	}
	for name, ch := range map[string]int{
		"hardware.light_channel":     c.Hardware.LightChannel,
		"hardware.soil_channel":      c.Hardware.SoilChannel,
		"hardware.reservoir_channel": c.Hardware.ReservoirChannel,
	} {
		if ch < 0 || ch > 7 {
			return fmt.Errorf("%s must be an MCP3008 channel (0-7)", name)
		}
	}
	if !c.Hardware.Simulated {
		if c.Hardware.ClimateTempPath == "" {
			return fmt.Errorf("hardware.climate_temp_path is required")
		}
		if c.Hardware.ClimateHumPath == "" {
			return fmt.Errorf("hardware.climate_hum_path is required")
		}
	}

	// Validate Sensors config
	if c.Sensors.SampleInterval < 100*time.Millisecond {
		return fmt.Errorf("sensors.sample_interval must be at least 100ms")
	}
	cal := c.Calibration()
	if err := cal.Validate(); err != nil {
		return fmt.Errorf("invalid sensor calibration: %w", err)
	}

	// Validate Predictor config
	if c.Predictor.BaseURL == "" {
		return fmt.Errorf("predictor.base_url is required")
	}
	if c.Predictor.PredictInterval < c.Sensors.SampleInterval {
		return fmt.Errorf("predictor.predict_interval must be at least the sample interval")
	}
	if c.Predictor.Timeout < time.Second {
		return fmt.Errorf("predictor.timeout must be at least 1 second")
	}

	// Validate Control config
	if c.Control.ListenAddr == "" {
		return fmt.Errorf("control.listen_addr is required")
	}

	// Validate Telemetry config
	if c.Telemetry.Enabled {
		if c.Telemetry.Broker == "" {
			return fmt.Errorf("telemetry.broker is required when telemetry is enabled")
		}
		if c.Telemetry.DeviceID == "" {
			return fmt.Errorf("telemetry.device_id is required when telemetry is enabled")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Calibration builds the initial calibration parameters from the sensor
// section. The engine owns the calibration afterwards; threshold writes via
// the control surface do not flow back into the config.
func (c *Config) Calibration() models.Calibration {
	return models.Calibration{
		LightThreshold: c.Sensors.LightThreshold,
		SoilDry:        c.Sensors.SoilDry,
		SoilWet:        c.Sensors.SoilWet,
		ReservoirEmpty: c.Sensors.ReservoirEmpty,
	}
}

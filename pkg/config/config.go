package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	goble "github.com/srg/blelink/internal/device/go-ble"
	"github.com/srg/blelink/internal/peripheral"
	"gopkg.in/yaml.v3"
)

// MaxHistorySize mirrors the recorder limit so a bad file fails early.
const MaxHistorySize = 1024 * 1024

// Config holds application configuration
type Config struct {
	// LogLevel is a logrus level name; "panic" keeps the CLI silent.
	LogLevel string `yaml:"log_level" default:"panic"`

	ScanTimeout         time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout" default:"30s"`
	ReconnectBackoffMax time.Duration `yaml:"reconnect_backoff_max" default:"30s"`
	RefreshDelay        time.Duration `yaml:"refresh_delay" default:"500ms"`

	TelemetryService        string `yaml:"telemetry_service" default:"0000fff0-0000-1000-8000-00805f9b34fb"`
	TelemetryCharacteristic string `yaml:"telemetry_characteristic" default:"0000fff1-0000-1000-8000-00805f9b34fb"`

	HistorySize uint32 `yaml:"history_size" default:"256"`
	InboxSize   int    `yaml:"inbox_size" default:"64"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.ScanTimeout < 0 {
		return fmt.Errorf("scan_timeout must not be negative")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be > 0")
	}
	if c.ReconnectBackoffMax <= 0 {
		return fmt.Errorf("reconnect_backoff_max must be > 0")
	}
	if c.RefreshDelay < 0 {
		return fmt.Errorf("refresh_delay must not be negative")
	}
	if c.TelemetryService == "" || c.TelemetryCharacteristic == "" {
		return fmt.Errorf("telemetry_service and telemetry_characteristic must not be empty")
	}
	if c.HistorySize == 0 || c.HistorySize > MaxHistorySize {
		return fmt.Errorf("history_size must be in 1..%d, got %d", MaxHistorySize, c.HistorySize)
	}
	if c.InboxSize <= 0 {
		return fmt.Errorf("inbox_size must be > 0")
	}
	return nil
}

// Level returns the parsed log level, PanicLevel when unparsable.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.PanicLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// PeripheralOptions returns the per-peripheral settings.
func (c *Config) PeripheralOptions() peripheral.Options {
	opts := peripheral.DefaultOptions()
	opts.TelemetryService = c.TelemetryService
	opts.TelemetryCharacteristic = c.TelemetryCharacteristic
	if c.InboxSize > 0 {
		opts.InboxSize = c.InboxSize
	}
	return opts
}

// TransportOptions returns the go-ble link settings.
func (c *Config) TransportOptions() goble.TransportOptions {
	return goble.TransportOptions{
		ConnectTimeout:      c.ConnectTimeout,
		ReconnectBackoffMax: c.ReconnectBackoffMax,
	}
}

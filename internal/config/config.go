package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Serial  SerialConfig  `yaml:"serial"`
	Relay   RelayConfig   `yaml:"relay"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

type SerialConfig struct {
	BaudRate  int      `yaml:"baud_rate"`
	Delimiter string   `yaml:"delimiter"`
	Patterns  []string `yaml:"patterns"`
}

type RelayConfig struct {
	BatchSize        int           `yaml:"batch_size"`
	SettleDelay      time.Duration `yaml:"settle_delay"`
	SimulationMarker string        `yaml:"simulation_marker"`
	ClientBuffer     int           `yaml:"client_buffer"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML file, applies defaults and validates the result. An empty
// path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "public"
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = 115200
	}
	if c.Serial.Delimiter == "" {
		c.Serial.Delimiter = "\r\n"
	}
	if c.Relay.BatchSize == 0 {
		c.Relay.BatchSize = 10
	}
	if c.Relay.SettleDelay == 0 {
		c.Relay.SettleDelay = 500 * time.Millisecond
	}
	if c.Relay.SimulationMarker == "" {
		c.Relay.SimulationMarker = "TEST"
	}
	if c.Relay.ClientBuffer == 0 {
		c.Relay.ClientBuffer = 64
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Metrics.Enabled == nil {
		enabled := true
		c.Metrics.Enabled = &enabled
	}
}

// MetricsEnabled reports whether /metrics should be served.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Enabled == nil || *c.Metrics.Enabled
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.Wrap(ErrInvalidConfig, "server.addr is required")
	}
	if c.Serial.BaudRate < 0 {
		return errors.Wrapf(ErrInvalidConfig, "serial.baud_rate must be positive, got %d", c.Serial.BaudRate)
	}
	if c.Relay.BatchSize < 1 {
		return errors.Wrapf(ErrInvalidConfig, "relay.batch_size must be at least 1, got %d", c.Relay.BatchSize)
	}
	if c.Relay.SettleDelay < 0 {
		return errors.Wrapf(ErrInvalidConfig, "relay.settle_delay must not be negative, got %s", c.Relay.SettleDelay)
	}
	if c.Relay.ClientBuffer < 1 {
		return errors.Wrapf(ErrInvalidConfig, "relay.client_buffer must be at least 1, got %d", c.Relay.ClientBuffer)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Wrapf(ErrInvalidConfig, "log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

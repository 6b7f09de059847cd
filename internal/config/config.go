package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Hass            HassConfig     `yaml:"hass"`
	Bridge          BridgeConfig   `yaml:"bridge"`
	Database        DatabaseConfig `yaml:"database"`
	Log             LogConfig      `yaml:"log"`
	EventBus        EventBusConfig `yaml:"eventbus"`
	ShutdownTimeout Duration       `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// HassConfig contains Home Assistant connection settings
type HassConfig struct {
	URL     string   `yaml:"url"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"` // HTTP timeout for REST requests

	// Websocket reconnect settings
	MinRetryBackoff Duration `yaml:"min_retry_backoff"` // Minimum backoff between reconnects (default: 1s)
	MaxRetryBackoff Duration `yaml:"max_retry_backoff"` // Maximum backoff between reconnects (default: 2m)
	RetryMultiplier float64  `yaml:"retry_multiplier"`  // Backoff multiplier (default: 2.0)
	MaxReconnects   int      `yaml:"max_reconnects"`    // Max reconnect attempts, 0 = infinite (default: 0)
}

// BridgeConfig contains the emulated bridge settings
type BridgeConfig struct {
	DataDir         string `yaml:"data_dir"`
	HTTPPort        int    `yaml:"http_port"`
	HTTPSPort       int    `yaml:"https_port"`
	UseDefaultPorts bool   `yaml:"use_default_ports_for_discovery"` // Advertise ports 80/443 regardless of bound ports (reverse proxy)
	BindAddr        string `yaml:"bind_addr"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file.
// A missing file is not an error: all settings fall back to defaults
// and environment variables, so the daemon can run flag-only.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		// Expand environment variables
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, err
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Hass defaults
	if cfg.Hass.URL == "" {
		cfg.Hass.URL = envOr("HASS_URL", "http://hassio/homeassistant")
	}
	if cfg.Hass.Token == "" {
		cfg.Hass.Token = envOr("HASS_TOKEN", os.Getenv("HASSIO_TOKEN"))
	}
	if cfg.Hass.Timeout == 0 {
		cfg.Hass.Timeout = Duration(30 * time.Second)
	}
	if cfg.Hass.MinRetryBackoff == 0 {
		cfg.Hass.MinRetryBackoff = Duration(1 * time.Second)
	}
	if cfg.Hass.MaxRetryBackoff == 0 {
		cfg.Hass.MaxRetryBackoff = Duration(2 * time.Minute)
	}
	if cfg.Hass.RetryMultiplier == 0 {
		cfg.Hass.RetryMultiplier = 2.0
	}
	// MaxReconnects defaults to 0 (infinite), no need to set

	// Bridge defaults
	if cfg.Bridge.DataDir == "" {
		cfg.Bridge.DataDir = envOr("DATA_DIR", defaultDataDir())
	}
	if cfg.Bridge.HTTPPort == 0 {
		if port, err := strconv.Atoi(os.Getenv("HTTP_PORT")); err == nil && port > 0 {
			cfg.Bridge.HTTPPort = port
		} else {
			cfg.Bridge.HTTPPort = 80
		}
	}
	if cfg.Bridge.HTTPSPort == 0 {
		if port, err := strconv.Atoi(os.Getenv("HTTPS_PORT")); err == nil && port > 0 {
			cfg.Bridge.HTTPSPort = port
		} else {
			cfg.Bridge.HTTPSPort = 443
		}
	}
	if os.Getenv("USE_DEFAULT_PORTS") == "true" {
		cfg.Bridge.UseDefaultPorts = true
	}
	if os.Getenv("VERBOSE") == "true" {
		cfg.Log.Level = "debug"
	}
	if cfg.Bridge.BindAddr == "" {
		cfg.Bridge.BindAddr = "0.0.0.0"
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.Bridge.DataDir, "hueshim.sqlite")
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hueshim"
	}
	return filepath.Join(home, ".hueshim")
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// ExpandEnvString expands a single string with environment variables
func ExpandEnvString(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return expandEnvVars(s)
	}
	return s
}

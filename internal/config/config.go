package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the gaswatch daemon configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Engine   EngineConfig   `yaml:"engine"`
	State    StateConfig    `yaml:"state"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ProviderConfig holds the gas provider portal settings.
type ProviderConfig struct {
	BaseURL         string `yaml:"base_url"`
	Serial          string `yaml:"serial"` // account serial number (sn)
	ScanIntervalMin int    `yaml:"scan_interval_min"`
	TimeoutSec      int    `yaml:"timeout_sec"`
	UserAgent       string `yaml:"user_agent"`
}

// EngineConfig holds accrual engine settings.
type EngineConfig struct {
	TickIntervalMin int `yaml:"tick_interval_min"`
}

// StateConfig holds durable state storage settings.
type StateConfig struct {
	Driver    string       `yaml:"driver"` // sqlite, redis (default: sqlite)
	KeyPrefix string       `yaml:"key_prefix"`
	SQLite    SQLiteConfig `yaml:"sqlite"`
	Redis     RedisConfig  `yaml:"redis"`
}

// SQLiteConfig holds sqlite driver settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds redis driver settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// MQTTConfig holds reading-export settings. An empty Broker disables export.
type MQTTConfig struct {
	Broker          string `yaml:"broker"`
	ClientID        string `yaml:"client_id"`
	TopicPrefix     string `yaml:"topic_prefix"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Provider.ScanIntervalMin <= 0 {
		c.Provider.ScanIntervalMin = 60
	}
	if c.Provider.TimeoutSec <= 0 {
		c.Provider.TimeoutSec = 15
	}
	if c.Provider.UserAgent == "" {
		c.Provider.UserAgent = "gaswatch/1.0"
	}
	if c.Engine.TickIntervalMin <= 0 {
		c.Engine.TickIntervalMin = 5
	}
	if c.State.Driver == "" {
		c.State.Driver = "sqlite"
	}
	if c.State.KeyPrefix == "" {
		c.State.KeyPrefix = "gaswatch:"
	}
	if c.State.SQLite.Path == "" {
		c.State.SQLite.Path = "gaswatch.db"
	}
	if c.State.Redis.ReadinessTimeout <= 0 {
		c.State.Redis.ReadinessTimeout = 10
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "gaswatch"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "gaswatch"
	}
	if c.MQTT.DiscoveryPrefix == "" {
		c.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
}

var serialRegex = regexp.MustCompile(`^[0-9]+$`)

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Provider.Serial == "" {
		return fmt.Errorf("provider.serial is required")
	}
	if !serialRegex.MatchString(c.Provider.Serial) {
		return fmt.Errorf("provider.serial must be digits only, got %q", c.Provider.Serial)
	}
	switch c.State.Driver {
	case "sqlite", "redis":
		// ok
	default:
		return fmt.Errorf("state.driver must be \"sqlite\" or \"redis\", got %q", c.State.Driver)
	}
	if c.State.Driver == "redis" && len(c.State.Redis.Addrs) == 0 {
		return fmt.Errorf("state.redis.addrs is required for the redis driver")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

// ABOUTME: Configuration loading and parsing for chat-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete chat-gateway configuration
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Database  DatabaseConfig            `yaml:"database"`
	Auth      AuthConfig                `yaml:"auth"`
	Credits   CreditsConfig             `yaml:"credits"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Streaming StreamingConfig           `yaml:"streaming"`
	Logging   LoggingConfig             `yaml:"logging"`
	Metrics   MetricsConfig             `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// CreditsConfig holds message-credit budget configuration.
// Costs override the built-in per-provider-code costs; agent task costs
// are fixed and not configurable.
type CreditsConfig struct {
	DefaultLimit int64            `yaml:"default_limit"`
	Costs        map[string]int64 `yaml:"costs"`
}

// ProviderConfig holds one streaming backend, keyed by provider code
type ProviderConfig struct {
	URL    string `yaml:"url"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

// StreamingConfig holds streaming timing configuration
type StreamingConfig struct {
	Watchdog       time.Duration `yaml:"-"`
	TypingDebounce time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	WatchdogRaw       string `yaml:"watchdog"`
	TypingDebounceRaw string `yaml:"typing_debounce"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values that have sensible defaults
func applyDefaults(cfg *Config) {
	if cfg.Credits.DefaultLimit == 0 {
		cfg.Credits.DefaultLimit = 1000
	}
	if cfg.Streaming.Watchdog == 0 {
		cfg.Streaming.Watchdog = 60 * time.Second
	}
	if cfg.Streaming.TypingDebounce == 0 {
		cfg.Streaming.TypingDebounce = time.Second
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	for code, provider := range c.Providers {
		if provider.URL == "" {
			return fmt.Errorf("providers.%s.url is required", code)
		}
	}

	for code, cost := range c.Credits.Costs {
		if cost <= 0 {
			return fmt.Errorf("credits.costs.%s must be positive", code)
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Streaming.WatchdogRaw != "" {
		cfg.Streaming.Watchdog, err = time.ParseDuration(cfg.Streaming.WatchdogRaw)
		if err != nil {
			return fmt.Errorf("parsing watchdog %q: %w", cfg.Streaming.WatchdogRaw, err)
		}
	}

	if cfg.Streaming.TypingDebounceRaw != "" {
		cfg.Streaming.TypingDebounce, err = time.ParseDuration(cfg.Streaming.TypingDebounceRaw)
		if err != nil {
			return fmt.Errorf("parsing typing_debounce %q: %w", cfg.Streaming.TypingDebounceRaw, err)
		}
	}

	return nil
}

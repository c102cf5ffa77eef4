package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for DroidGate.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Security  SecurityConfig  `yaml:"security"`
	Webhooks  WebhookConfig   `yaml:"webhooks"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig contains SQLite database settings for the audit trail.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// SecurityConfig contains authentication and rate limiting settings.
type SecurityConfig struct {
	Token     TokenConfig     `yaml:"token"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// TrustForwardedFor derives the rate-limit client identifier from the
	// X-Forwarded-For header. Only enable behind a trusted reverse proxy.
	TrustForwardedFor bool `yaml:"trust_forwarded_for"`
}

// TokenConfig contains API token settings.
type TokenConfig struct {
	// Path is the filesystem location of the API token file.
	// If the file is absent and AutoGenerate is false, the service runs
	// WITHOUT authentication. This is an explicit bootstrap/dev escape
	// hatch and is insecure for any reachable deployment.
	Path string `yaml:"path"`

	// AutoGenerate creates a random token on first start when the file
	// does not exist.
	AutoGenerate bool `yaml:"auto_generate"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// PolicyFile is an optional JSON file defining the default and
	// authenticated tiers. Built-in defaults apply when empty.
	PolicyFile string `yaml:"policy_file"`
}

// WebhookConfig contains webhook registry and delivery settings.
type WebhookConfig struct {
	// RegistryPath is the JSON file holding registered webhooks.
	RegistryPath string `yaml:"registry_path"`

	// DeliveryTimeout bounds each outbound POST (seconds).
	DeliveryTimeout int `yaml:"delivery_timeout"`

	// ShutdownGrace is how long to wait for in-flight deliveries on
	// shutdown before abandoning them (seconds).
	ShutdownGrace int `yaml:"shutdown_grace"`
}

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// RuntimeConfig contains settings for the external runtime control tooling.
type RuntimeConfig struct {
	// ControlBinary is the container runtime control CLI.
	ControlBinary string `yaml:"control_binary"`

	// BridgeBinary is the device bridge tool (adb or compatible).
	BridgeBinary string `yaml:"bridge_binary"`

	// ContainerName identifies the managed runtime container.
	ContainerName string `yaml:"container_name"`

	Timeouts RuntimeTimeoutConfig `yaml:"timeouts"`
}

// RuntimeTimeoutConfig contains per-command-class timeouts (seconds).
type RuntimeTimeoutConfig struct {
	Status     int `yaml:"status"`
	Command    int `yaml:"command"`
	Restart    int `yaml:"restart"`
	Screenshot int `yaml:"screenshot"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DROIDGATE_SECTION_KEY
// For example: DROIDGATE_API_PORT, DROIDGATE_TOKEN_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Path:        "./data/droidgate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Security: SecurityConfig{
			Token: TokenConfig{
				Path:         "./data/api_token",
				AutoGenerate: true,
			},
			RateLimit: RateLimitConfig{
				Enabled: true,
			},
		},
		Webhooks: WebhookConfig{
			RegistryPath:    "./data/webhooks.json",
			DeliveryTimeout: 10,
			ShutdownGrace:   5,
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Runtime: RuntimeConfig{
			ControlBinary: "/usr/local/bin/droid-runtime",
			BridgeBinary:  "/usr/bin/adb",
			ContainerName: "droid0",
			Timeouts: RuntimeTimeoutConfig{
				Status:     5,
				Command:    10,
				Restart:    30,
				Screenshot: 20,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DROIDGATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("DROIDGATE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("DROIDGATE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Database
	if v := os.Getenv("DROIDGATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Security
	if v := os.Getenv("DROIDGATE_TOKEN_PATH"); v != "" {
		cfg.Security.Token.Path = v
	}
	if v := os.Getenv("DROIDGATE_RATELIMIT_POLICY"); v != "" {
		cfg.Security.RateLimit.PolicyFile = v
	}

	// Webhooks
	if v := os.Getenv("DROIDGATE_WEBHOOK_REGISTRY"); v != "" {
		cfg.Webhooks.RegistryPath = v
	}

	// Runtime
	if v := os.Getenv("DROIDGATE_RUNTIME_CONTROL"); v != "" {
		cfg.Runtime.ControlBinary = v
	}
	if v := os.Getenv("DROIDGATE_RUNTIME_BRIDGE"); v != "" {
		cfg.Runtime.BridgeBinary = v
	}
}

// Validate checks the configuration for errors. Invalid configuration is a
// startup failure, never a request-time one.
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled {
		if c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "" {
			errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Webhooks.RegistryPath == "" {
		errs = append(errs, "webhooks.registry_path is required")
	}
	if c.Webhooks.DeliveryTimeout <= 0 {
		errs = append(errs, "webhooks.delivery_timeout must be positive")
	}

	if c.Runtime.ControlBinary == "" {
		errs = append(errs, "runtime.control_binary is required")
	}
	if c.Runtime.BridgeBinary == "" {
		errs = append(errs, "runtime.bridge_binary is required")
	}
	if c.Runtime.Timeouts.Status <= 0 || c.Runtime.Timeouts.Command <= 0 ||
		c.Runtime.Timeouts.Restart <= 0 || c.Runtime.Timeouts.Screenshot <= 0 {
		errs = append(errs, "runtime.timeouts values must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetDeliveryTimeout returns the webhook delivery timeout as a Duration.
func (c *WebhookConfig) GetDeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeout) * time.Second
}

// GetShutdownGrace returns the webhook shutdown grace period as a Duration.
func (c *WebhookConfig) GetShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGrace) * time.Second
}

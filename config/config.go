// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Schema   SchemaConfig   `yaml:"schema"`
	Policy   PolicyConfig   `yaml:"policy"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Audit    AuditConfig    `yaml:"audit"`
	Auth     AuthConfig     `yaml:"auth"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// SchemaConfig points at the compiled schema artifact. The artifact is
// loaded once at startup; an inconsistent artifact refuses startup.
type SchemaConfig struct {
	Artifact string `yaml:"artifact"`
}

// PolicyConfig configures access-control policy loading.
type PolicyConfig struct {
	// File is the policy rules file. Reloadable at runtime.
	File string `yaml:"file"`

	// Watch enables automatic reload on file change.
	Watch bool `yaml:"watch"`
}

// DispatchConfig configures the dispatch pipeline.
type DispatchConfig struct {
	// CallbackTimeout bounds handler execution per call.
	CallbackTimeout time.Duration `yaml:"callback_timeout"`

	// RejectUnconstrained rejects values for leaves that declare no
	// pattern, range or enum instead of accepting and flagging them.
	RejectUnconstrained bool `yaml:"reject_unconstrained"`
}

// AuditConfig configures the audit trail.
// Use "memory" for an in-process ring buffer or "sqlite" for persistence.
type AuditConfig struct {
	Mode          string        `yaml:"mode"` // "memory" or "sqlite"
	Path          string        `yaml:"path,omitempty"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// AuthConfig configures session token verification.
type AuthConfig struct {
	// JWTSecret signs and verifies session tokens. Empty means a random
	// per-process secret.
	JWTSecret string `yaml:"jwt_secret,omitempty"`

	// TokenTTL is the session token lifetime.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// AdminConfig configures the admin surface.
type AdminConfig struct {
	// TokenHash is the bcrypt hash of the admin bearer token. Empty
	// disables the mutating admin endpoints.
	TokenHash string `yaml:"token_hash,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8440,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Policy: PolicyConfig{
			Watch: true,
		},
		Dispatch: DispatchConfig{
			CallbackTimeout: 30 * time.Second,
		},
		Audit: AuditConfig{
			Mode:          "memory",
			BatchSize:     100,
			FlushInterval: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Schema.Artifact == "" {
		return fmt.Errorf("schema.artifact is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Audit.Mode {
	case "memory":
	case "sqlite":
		if c.Audit.Path == "" {
			return fmt.Errorf("audit.path is required for sqlite audit mode")
		}
	default:
		return fmt.Errorf("audit.mode %q must be memory or sqlite", c.Audit.Mode)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q not recognized", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	if c.Dispatch.CallbackTimeout <= 0 {
		return fmt.Errorf("dispatch.callback_timeout must be positive")
	}
	return nil
}

// applyEnvOverrides applies DATAGATE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATAGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DATAGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATAGATE_SCHEMA_ARTIFACT"); v != "" {
		cfg.Schema.Artifact = v
	}
	if v := os.Getenv("DATAGATE_POLICY_FILE"); v != "" {
		cfg.Policy.File = v
	}
	if v := os.Getenv("DATAGATE_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("DATAGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DATAGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Package config provides configuration management for the file server.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ajaxzhan/fileserver/pkg/api"
)

// PropDataDir is the lifecycle property naming the data root.
const PropDataDir = "DataDir"

// Config represents the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Ownership OwnershipConfig `yaml:"ownership"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sentry    SentryConfig    `yaml:"sentry"`
}

// ServerConfig holds transport configuration.
type ServerConfig struct {
	Name           string          `yaml:"name" validate:"required"`
	GRPCAddr       string          `yaml:"grpc_addr" validate:"required"`
	HTTPAddr       string          `yaml:"http_addr"`
	MaxMessageSize int             `yaml:"max_message_size" validate:"gt=0"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the token bucket applied to all RPCs.
// A zero rate disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// StorageConfig holds data root configuration.
type StorageConfig struct {
	DataDir         string `yaml:"data_dir" validate:"required"`
	Backend         string `yaml:"backend" validate:"required,oneof=disk memory"`
	MaxTransferSize int64  `yaml:"max_transfer_size" validate:"gt=0"`
}

// OwnershipConfig selects the ownership registry layout.
// Shards <= 1 uses a single lock.
type OwnershipConfig struct {
	Shards int `yaml:"shards" validate:"gte=0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// SentryConfig holds error reporting configuration. An empty DSN disables it.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:           "FileService",
			GRPCAddr:       ":10110",
			MaxMessageSize: api.MaxMessageSize,
		},
		Storage: StorageConfig{
			DataDir:         "/tmp/fileserver/data",
			Backend:         "disk",
			MaxTransferSize: api.DefaultMaxTransferSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Sentry: SentryConfig{
			Environment: "development",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads configuration from a file, or returns default if file doesn't exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// ApplyEnv overrides fields from FILESERVER_* variables and SENTRY_DSN.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("FILESERVER_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("FILESERVER_GRPC_ADDR"); v != "" {
		c.Server.GRPCAddr = v
	}
	if v := os.Getenv("FILESERVER_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("FILESERVER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FILESERVER_MAX_TRANSFER_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("FILESERVER_MAX_TRANSFER_SIZE: %w", err)
		}
		c.Storage.MaxTransferSize = n
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		c.Sentry.DSN = v
	}
	return nil
}

// Properties returns the values handed to the service host at start.
func (c *Config) Properties() map[string]string {
	return map[string]string{
		PropDataDir: c.Storage.DataDir,
	}
}

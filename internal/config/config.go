package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQL    = "sql"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// Guards the operator routes when set
	AdminToken string `envconfig:"ADMIN_TOKEN"`

	// Europarcel
	EuroparcelBaseURL string        `envconfig:"EUROPARCEL_BASE_URL" default:"https://api.europarcel.com/api/"`
	EuroparcelTimeout time.Duration `envconfig:"EUROPARCEL_TIMEOUT" default:"15s"`
	EuroparcelUseMock bool          `envconfig:"EUROPARCEL_USE_MOCK" default:"false"`
	LockerCacheTTL    time.Duration `envconfig:"LOCKER_CACHE_TTL" default:"2h"`

	// Storage
	StoreBackend   string        `envconfig:"STORE_BACKEND" default:"memory"`
	RedisURL       string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	DatabaseDriver string        `envconfig:"DATABASE_DRIVER" default:"postgres"`
	DatabaseDSN    string        `envconfig:"DATABASE_DSN"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"48h"`
	InstancesFile  string        `envconfig:"INSTANCES_FILE"`

	// Anti-forgery tokens
	NonceSecret string        `envconfig:"NONCE_SECRET"`
	NonceTTL    time.Duration `envconfig:"NONCE_TTL" default:"12h"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"parcelgate"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements envconfig cannot express.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL is required for the redis backend")
		}
	case BackendSQL:
		if c.DatabaseDSN == "" {
			return errors.New("config: DATABASE_DSN is required for the sql backend")
		}
		if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
			return fmt.Errorf("config: unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
		}
	default:
		return fmt.Errorf("config: unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("store.backend", c.StoreBackend),
		attribute.Bool("europarcel.mock", c.EuroparcelUseMock),
	}
}

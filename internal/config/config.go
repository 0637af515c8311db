package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Rules     RulesConfig
	Limits    LimitsConfig
	Telemetry TelemetryConfig
	Metrics   MetricsConfig
	Jobs      JobsConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string        `env:"SERVER_PORT" envDefault:"8080"`
	Env            string        `env:"SERVER_ENV" envDefault:"development"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string `env:"DB_HOST" envDefault:"localhost"`
	Port      string `env:"DB_PORT" envDefault:"8000"`
	Namespace string `env:"DB_NAMESPACE" envDefault:"rotativos"`
	Database  string `env:"DB_DATABASE" envDefault:"main"`
	User      string `env:"DB_USER" envDefault:"root"`
	Password  string `env:"DB_PASSWORD" envDefault:"root"`
}

// RulesConfig holds rule engine settings
type RulesConfig struct {
	// SeedFile is an optional YAML file applied to an empty rule config store at startup.
	SeedFile    string        `env:"RULES_SEED_FILE"`
	CapacityTTL time.Duration `env:"RULES_CAPACITY_TTL" envDefault:"60s"`
}

// LimitsConfig holds per-member limits on the endpoints that run the rule
// pipeline
type LimitsConfig struct {
	RequestsPerMinute    int `env:"LIMIT_REQUESTS_PER_MINUTE" envDefault:"30"`
	ValidationsPerMinute int `env:"LIMIT_VALIDATIONS_PER_MINUTE" envDefault:"60"`
	Burst                int `env:"LIMIT_BURST" envDefault:"10"`
}

// TelemetryConfig holds OpenTelemetry tracing settings
type TelemetryConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"rotativos-api"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"METRICS_PATH" envDefault:"/metrics"`
}

// JobsConfig holds background job settings
type JobsConfig struct {
	ReconcileEnabled  bool          `env:"RECONCILE_ENABLED" envDefault:"true"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1h"`
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}
	if c.IsProduction() && c.Database.Password == "root" {
		errs = append(errs, errors.New("DB_PASSWORD must be changed from the default in production"))
	}

	// Rules validation
	if c.Rules.CapacityTTL <= 0 {
		errs = append(errs, errors.New("RULES_CAPACITY_TTL must be positive"))
	}

	// Limits validation
	if c.Limits.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("LIMIT_REQUESTS_PER_MINUTE must be positive"))
	}
	if c.Limits.ValidationsPerMinute <= 0 {
		errs = append(errs, errors.New("LIMIT_VALIDATIONS_PER_MINUTE must be positive"))
	}
	if c.Limits.Burst < 0 {
		errs = append(errs, errors.New("LIMIT_BURST must not be negative"))
	}

	// Telemetry validation
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED is true"))
		}
		if c.Telemetry.ServiceName == "" {
			errs = append(errs, errors.New("OTEL_SERVICE_NAME is required when OTEL_ENABLED is true"))
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLER_RATIO must be between 0 and 1, got %v", c.Telemetry.SampleRatio))
	}

	// Metrics validation
	if c.Metrics.Enabled && (c.Metrics.Path == "" || c.Metrics.Path[0] != '/') {
		errs = append(errs, errors.New("METRICS_PATH must start with '/'"))
	}

	// Jobs validation
	if c.Jobs.ReconcileEnabled && c.Jobs.ReconcileInterval < time.Minute {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must be at least 1m"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all kernel configuration.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"local"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Database settings
	Database DatabaseConfig

	// DeviceID identifies this node's sync endpoint for echo suppression
	// when it acts as a sync client against a remote kernel.
	DeviceID string `env:"DEVICE_ID" envDefault:""`

	// Cron governs the minute-tick scheduled trigger loop.
	Cron CronConfig

	// Otel carries OpenTelemetry exporter settings; tracing is a no-op
	// until ExporterEndpoint is set (see pkg/tracing).
	Otel OtelConfig

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"smaragda"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"smaragda"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// CronConfig governs the minute-tick scheduled trigger loop.
type CronConfig struct {
	Enabled  bool          `env:"CRON_ENABLED" envDefault:"true"`
	Interval time.Duration `env:"CRON_TICK_INTERVAL" envDefault:"60s"`

	// DispatchPerSecond/DispatchBurst bound how fast one tick can fire
	// due schedules/triggers into the action and process engines, so a
	// backlog built up during downtime doesn't thundering-herd them.
	DispatchPerSecond float64 `env:"CRON_DISPATCH_PER_SECOND" envDefault:"20"`
	DispatchBurst     int     `env:"CRON_DISPATCH_BURST" envDefault:"5"`
}

// NewConfig loads configuration from environment variables.
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("db_host", cfg.Database.Host),
		slog.Bool("cron_enabled", cfg.Cron.Enabled),
	)

	return cfg, nil
}

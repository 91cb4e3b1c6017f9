// Package config loads the CRM service configuration from environment
// variables, applying defaults and validating everything on startup so a
// misconfigured process fails before it accepts traffic.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Broker   BrokerConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including in-flight submits.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the chi Timeout middleware budget.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig selects and configures the record store.
type DatabaseConfig struct {
	// Driver is one of memory, postgres, mysql, sqlite (default: memory)
	Driver string `env:"DB_DRIVER" default:"memory"`

	// URL is the connection string; required for every driver except memory.
	// Supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Seed loads the sample customers and leads into the memory store.
	Seed bool `env:"DB_SEED" default:"true"`
}

// RedisConfig holds the import history store settings.
// An empty Addr keeps history in process memory.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" default:"0"`
}

// QueueConfig holds asynq settings for background imports.
type QueueConfig struct {
	// Enabled exposes the async import endpoint; requires REDIS_ADDR.
	Enabled     bool          `env:"QUEUE_ENABLED" default:"false"`
	Concurrency int           `env:"QUEUE_CONCURRENCY" default:"4"`
	MaxRetry    int           `env:"QUEUE_MAX_RETRY" default:"0"`
	TaskTimeout time.Duration `env:"QUEUE_TASK_TIMEOUT" default:"10m"`
}

// BrokerConfig holds the AMQP settings for import events.
// An empty URL disables publishing.
type BrokerConfig struct {
	URL      string `env:"AMQP_URL" envAlt:"RABBITMQ_URL"`
	Exchange string `env:"AMQP_EXCHANGE" default:"crm.imports"`
}

// ImportConfig holds import pipeline settings.
type ImportConfig struct {
	// MaxSourceSize is the largest accepted source text in bytes (default: 10MB)
	MaxSourceSize int64 `env:"IMPORT_MAX_SOURCE_SIZE" default:"10485760"`

	// MaxConcurrent bounds commits running at the same time across sessions.
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long a submit waits for a commit slot.
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// CommitTimeout bounds a single commit call.
	CommitTimeout time.Duration `env:"IMPORT_COMMIT_TIMEOUT" default:"5m"`

	// SessionTTL is how long an untouched session survives.
	SessionTTL time.Duration `env:"IMPORT_SESSION_TTL" default:"30m"`

	// SweepInterval is how often expired sessions are removed.
	SweepInterval time.Duration `env:"IMPORT_SWEEP_INTERVAL" default:"1m"`

	// HistoryLimit is the number of summaries kept per entity.
	HistoryLimit int `env:"IMPORT_HISTORY_LIMIT" default:"50"`

	// SchemaFile optionally points at a TOML file with extra entity schemas.
	SchemaFile string `env:"IMPORT_SCHEMA_FILE"`
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit applies to submit and one-shot import endpoints.
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

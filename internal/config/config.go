// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Every field is populated from the environment; nested sections contribute
// their prefix, so Server.Port is read from SERVER_PORT.
type Config struct {
	Server   ServerConfig    `envconfig:"SERVER"`
	Upload   UploadConfig    `envconfig:"UPLOAD"`
	Query    QueryConfig     `envconfig:"QUERY"`
	Export   ExportConfig    `envconfig:"EXPORT"`
	Mirror   MirrorConfig    `envconfig:"MIRROR"`
	Rate     RateLimitConfig `envconfig:"RATE_LIMIT"`
	Security SecurityConfig  `envconfig:"SECURITY"`
	Logging  LoggingConfig   `envconfig:"LOG"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	Port int `envconfig:"PORT" default:"8000"`

	// ReadTimeout is the maximum duration for reading the request, body included
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`

	// WriteTimeout is 0 by default so large exports are not cut off
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for ordinary requests
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// UploadConfig holds dataset upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted file size in bytes (default: 100MB)
	MaxFileSize int64 `envconfig:"MAX_FILE_SIZE" default:"104857600"`

	// AllowedExtensions lists accepted file extensions, dot included
	AllowedExtensions []string `envconfig:"ALLOWED_EXTENSIONS" default:".csv,.xls,.xlsx"`

	// MaxConcurrent bounds how many uploads are parsed at the same time
	MaxConcurrent int `envconfig:"MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long an upload waits for a parse slot
	MaxWaitTime time.Duration `envconfig:"MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single load, parse and mirror included
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5m"`
}

// QueryConfig holds pagination settings for data queries.
type QueryConfig struct {
	DefaultPageSize int `envconfig:"DEFAULT_PAGE_SIZE" default:"100"`
	MaxPageSize     int `envconfig:"MAX_PAGE_SIZE" default:"1000"`
}

// ExportConfig holds export file settings.
type ExportConfig struct {
	// Dir is where export files are written
	Dir string `envconfig:"DIR" default:"uploads"`

	// Retention is how long an export file is kept before the janitor removes it
	Retention time.Duration `envconfig:"RETENTION" default:"1h"`

	// CleanupInterval is how often the janitor runs
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"10m"`

	// CSVBOM prefixes CSV exports with a UTF-8 byte order mark for Excel
	CSVBOM bool `envconfig:"CSV_BOM" default:"false"`
}

// MirrorConfig selects the secondary queryable store the active dataset is
// copied into after every load.
type MirrorConfig struct {
	// Driver is one of: sqlite, postgres, none
	Driver string `envconfig:"DRIVER" default:"sqlite"`

	// SQLitePath is the database file used by the sqlite driver
	SQLitePath string `envconfig:"SQLITE_PATH" default:"temp_data.db"`

	// DatabaseURL is the PostgreSQL connection string used by the postgres driver
	DatabaseURL string `envconfig:"DATABASE_URL"`

	MaxConns int `envconfig:"MAX_CONNS" default:"4"`

	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME" default:"30m"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `envconfig:"ENABLED" default:"true"`

	// RPS is the sustained requests per second allowed per client IP
	RPS float64 `envconfig:"RPS" default:"20"`

	// Burst is the bucket size per client IP
	Burst int `envconfig:"BURST" default:"40"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// AllowedOrigins is the CORS allow list for the browser front end
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173,http://127.0.0.1:3000"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers
	EnableCSP bool `envconfig:"ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `envconfig:"LEVEL" default:"info"`

	// Format is the log format: text or json
	Format string `envconfig:"FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

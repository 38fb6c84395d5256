package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// normalize lowercases enum-like values and trims list entries so that
// Validate and consumers see a canonical form.
func (c *Config) normalize() {
	c.Mirror.Driver = strings.ToLower(strings.TrimSpace(c.Mirror.Driver))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	c.Upload.AllowedExtensions = cleanList(c.Upload.AllowedExtensions, true)
	c.Security.AllowedOrigins = cleanList(c.Security.AllowedOrigins, false)
	c.Security.TrustedProxies = cleanList(c.Security.TrustedProxies, false)
}

func cleanList(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if lower {
			s = strings.ToLower(s)
		}
		out = append(out, s)
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Upload validation
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		errs = append(errs, "UPLOAD_ALLOWED_EXTENSIONS must list at least one extension")
	}
	for _, ext := range c.Upload.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Sprintf("UPLOAD_ALLOWED_EXTENSIONS entry %q must start with a dot", ext))
		}
	}
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, "UPLOAD_TIMEOUT must be positive")
	}

	// Query validation
	if c.Query.MaxPageSize <= 0 {
		errs = append(errs, "QUERY_MAX_PAGE_SIZE must be positive")
	}
	if c.Query.DefaultPageSize <= 0 || c.Query.DefaultPageSize > c.Query.MaxPageSize {
		errs = append(errs, fmt.Sprintf("QUERY_DEFAULT_PAGE_SIZE (%d) must be 1-%d",
			c.Query.DefaultPageSize, c.Query.MaxPageSize))
	}

	// Export validation
	if strings.TrimSpace(c.Export.Dir) == "" {
		errs = append(errs, "EXPORT_DIR is required")
	}
	if c.Export.Retention <= 0 {
		errs = append(errs, "EXPORT_RETENTION must be positive")
	}
	if c.Export.CleanupInterval <= 0 {
		errs = append(errs, "EXPORT_CLEANUP_INTERVAL must be positive")
	}

	// Mirror validation
	switch c.Mirror.Driver {
	case "sqlite":
		if c.Mirror.SQLitePath == "" {
			errs = append(errs, "MIRROR_SQLITE_PATH is required when MIRROR_DRIVER=sqlite")
		}
	case "postgres":
		if c.Mirror.DatabaseURL == "" {
			errs = append(errs, "MIRROR_DATABASE_URL is required when MIRROR_DRIVER=postgres")
		}
		if c.Mirror.MaxConns <= 0 {
			errs = append(errs, "MIRROR_MAX_CONNS must be positive")
		}
	case "none":
	default:
		errs = append(errs, fmt.Sprintf("MIRROR_DRIVER (%q) must be one of: sqlite, postgres, none", c.Mirror.Driver))
	}

	// Rate limit validation
	if c.Rate.Enabled && (c.Rate.RPS <= 0 || c.Rate.Burst <= 0) {
		errs = append(errs, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The mirror database URL is masked.
func (c *Config) String() string {
	dbURL := ""
	if c.Mirror.DatabaseURL != "" {
		dbURL = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Upload: {MaxFileSize: %d, MaxConcurrent: %d, Extensions: %v}, ",
		c.Upload.MaxFileSize, c.Upload.MaxConcurrent, c.Upload.AllowedExtensions)
	fmt.Fprintf(&b, "Export: {Dir: %q, Retention: %s}, ", c.Export.Dir, c.Export.Retention)
	fmt.Fprintf(&b, "Mirror: {Driver: %q, SQLitePath: %q, DatabaseURL: %q}, ",
		c.Mirror.Driver, c.Mirror.SQLitePath, dbURL)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RPS: %g, Burst: %d}, ", c.Rate.Enabled, c.Rate.RPS, c.Rate.Burst)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

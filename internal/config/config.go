// Package config loads application settings from environment variables.
// Defaults are applied for unset values and the result is validated on
// startup so misconfiguration fails fast.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Convert  ConvertConfig
	Storage  StorageConfig
	History  HistoryConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Cleanup  CleanupConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 2m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"2m"`
}

// DatabaseConfig holds the optional PostgreSQL connection used for
// conversion history. When URL is empty history is kept in memory.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL" envAlt:"DB_URL"`
	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(d.URL) != ""
}

// UploadConfig bounds incoming conversion requests.
type UploadConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the number of conversions run in parallel (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long a request waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single conversion (default: 5m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"5m"`
}

// ConvertConfig holds the default conversion options. Requests may override
// delimiter and encoding per call.
type ConvertConfig struct {
	// Delimiter separates fields. `\t` and "tab" select a tab.
	Delimiter string `env:"CONVERT_DELIMITER" default:","`

	// Encoding is the input character set (WHATWG label).
	Encoding string `env:"CONVERT_ENCODING" default:"utf-8"`

	// Engine selects the xlsx encoder: native or excelize.
	Engine string `env:"CONVERT_ENGINE" envAlt:"XLSX_ENGINE" default:"native"`

	// AutoFitRows is the number of leading rows sampled for column widths.
	AutoFitRows int `env:"CONVERT_AUTOFIT_ROWS" default:"1"`

	// SanitizeUTF8 replaces invalid UTF-8 with '?' instead of rejecting input.
	SanitizeUTF8 bool `env:"CONVERT_SANITIZE_UTF8" default:"false"`

	// MaxLineBytes is the longest accepted input line; 0 means unlimited.
	MaxLineBytes int `env:"CONVERT_MAX_LINE_BYTES" default:"0"`
}

// DelimiterValue returns Delimiter with tab aliases expanded.
func (c ConvertConfig) DelimiterValue() string {
	return ExpandDelimiter(c.Delimiter)
}

// ExpandDelimiter maps the spellings `\t`, "tab" and "TAB" to a tab
// character and returns anything else unchanged.
func ExpandDelimiter(s string) string {
	switch s {
	case `\t`, "tab", "TAB":
		return "\t"
	}
	return s
}

// StorageConfig locates converted files.
type StorageConfig struct {
	// Dir receives converted workbooks until they are downloaded.
	Dir string `env:"STORAGE_DIR" envAlt:"UPLOAD_DIR" default:"resource/xlsx"`
}

// HistoryConfig sizes the in-memory history used without a database.
type HistoryConfig struct {
	Capacity int `env:"HISTORY_CAPACITY" default:"1000"`
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the general per-IP limit (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ConvertLimit is the per-IP limit for conversion endpoints (default: 20)
	ConvertLimit int `env:"RATE_LIMIT_CONVERT" envAlt:"RATE_LIMIT_UPLOAD" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies lists proxy CIDRs whose forwarding headers are honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// CORSOrigins lists origins allowed to call the API.
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// APIKeys are accepted in the X-API-Key header.
	APIKeys []string `env:"API_KEYS"`

	// RequireAPIKey rejects /api requests without a valid key.
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// CleanupConfig controls purging of outputs that were never downloaded.
type CleanupConfig struct {
	Enabled   bool          `env:"CLEANUP_ENABLED" default:"true"`
	Retention time.Duration `env:"CLEANUP_RETENTION" default:"24h"`
	Interval  time.Duration `env:"CLEANUP_INTERVAL" default:"1h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

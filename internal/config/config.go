// Package config loads the server configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/session"
)

// Config holds all configuration for the server binary.
type Config struct {
	// Server
	Host     string
	Port     string
	LogLevel string
	// LogFormat is "json", "text", or empty for the GO_ENV default.
	LogFormat string

	Database DatabaseConfig

	// Redis
	RedisURL string

	Session SessionConfig

	// Security
	LoginThrottleEnabled     bool
	LoginMaxAttempts         int
	LoginCooldown            time.Duration
	DiscloseInactiveAccounts bool

	// HTTP rate limit for login and register, per client IP.
	AuthRequestsPerSecond float64
	AuthBurst             int

	EnableAuditLog bool

	// OpenTelemetry metrics, pushed over OTLP/HTTP. The exporter reads its
	// endpoint and headers from the standard OTEL_EXPORTER_OTLP_* variables.
	OtelMetricsEnabled  bool
	OtelMetricsInterval time.Duration
	OtelServiceName     string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host           string
	Port           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int32
	MinConnections int32
	AcquireTimeout time.Duration
	IdleTimeout    time.Duration
}

// SessionConfig holds cookie and lifetime settings.
type SessionConfig struct {
	CookieName   string
	CookieDomain string
	CookieSecure bool
	SameSite     string
	MaxAge       time.Duration
	IdleTimeout  time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var err error
	config := &Config{}

	// Server configuration
	config.Host = getEnvOrDefault("HOST", "0.0.0.0")
	config.Port = getEnvOrDefault("PORT", "8080")
	config.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	config.LogFormat = os.Getenv("LOG_FORMAT")

	// Database configuration
	config.Database.Host = getEnvOrDefault("DATABASE_HOST", "localhost")
	config.Database.Port = getEnvOrDefault("DATABASE_PORT", "5432")
	config.Database.Name = getEnvOrDefault("DATABASE_NAME", "sessionauth")
	config.Database.User = getEnvOrDefault("DATABASE_USER", "sessionauth")
	config.Database.Password = os.Getenv("DATABASE_PASSWORD")
	config.Database.SSLMode = getEnvOrDefault("DATABASE_SSL_MODE", "disable")

	maxConns, err := getIntEnv("DATABASE_MAX_CONNECTIONS", 25)
	if err != nil {
		return nil, err
	}
	minConns, err := getIntEnv("DATABASE_MIN_CONNECTIONS", 2)
	if err != nil {
		return nil, err
	}
	config.Database.MaxConnections = int32(maxConns)
	config.Database.MinConnections = int32(minConns)

	if config.Database.AcquireTimeout, err = getDurationEnv("DATABASE_ACQUIRE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if config.Database.IdleTimeout, err = getDurationEnv("DATABASE_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}

	// Redis configuration
	config.RedisURL = getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0")

	// Session configuration
	config.Session.CookieName = getEnvOrDefault("SESSION_COOKIE_NAME", "sid")
	config.Session.CookieDomain = os.Getenv("SESSION_COOKIE_DOMAIN")
	config.Session.CookieSecure = getBoolEnv("SESSION_COOKIE_SECURE", false)
	config.Session.SameSite = getEnvOrDefault("SESSION_COOKIE_SAME_SITE", "lax")

	maxAgeSeconds, err := getIntEnv("SESSION_MAX_AGE_SECONDS", 86400)
	if err != nil {
		return nil, err
	}
	config.Session.MaxAge = time.Duration(maxAgeSeconds) * time.Second
	if config.Session.IdleTimeout, err = getDurationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}

	// Security configuration
	config.LoginThrottleEnabled = getBoolEnv("LOGIN_THROTTLE_ENABLED", false)
	if config.LoginMaxAttempts, err = getIntEnv("LOGIN_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if config.LoginCooldown, err = getDurationEnv("LOGIN_COOLDOWN", 15*time.Minute); err != nil {
		return nil, err
	}
	config.DiscloseInactiveAccounts = getBoolEnv("DISCLOSE_INACTIVE_ACCOUNTS", false)

	rps := getEnvOrDefault("AUTH_RATE_LIMIT_RPS", "5")
	if config.AuthRequestsPerSecond, err = strconv.ParseFloat(rps, 64); err != nil {
		return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT_RPS: %w", err)
	}
	if config.AuthBurst, err = getIntEnv("AUTH_RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}

	// Feature flags
	config.EnableAuditLog = getBoolEnv("ENABLE_AUDIT_LOG", true)
	config.OtelMetricsEnabled = getBoolEnv("OTEL_METRICS_ENABLED", false)
	if config.OtelMetricsInterval, err = getDurationEnv("OTEL_METRICS_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	config.OtelServiceName = getEnvOrDefault("OTEL_SERVICE_NAME", "sessionauthd")

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid port: %s", c.Port)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535: %s", c.Port)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validSameSite := []string{"strict", "lax", "none"}
	if !contains(validSameSite, strings.ToLower(c.Session.SameSite)) {
		return fmt.Errorf("invalid SESSION_COOKIE_SAME_SITE: %s (must be one of: %s)", c.Session.SameSite, strings.Join(validSameSite, ", "))
	}

	if c.Session.MaxAge < time.Minute {
		return fmt.Errorf("session max age must be at least 1 minute, got: %v", c.Session.MaxAge)
	}
	if c.Session.IdleTimeout < 0 {
		return fmt.Errorf("session idle timeout must not be negative, got: %v", c.Session.IdleTimeout)
	}

	if c.Database.MaxConnections < 1 || c.Database.MinConnections < 0 || c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("invalid database pool bounds: min=%d max=%d", c.Database.MinConnections, c.Database.MaxConnections)
	}
	if c.Database.AcquireTimeout <= 0 || c.Database.IdleTimeout <= 0 {
		return fmt.Errorf("database timeouts must be positive")
	}

	if c.LoginThrottleEnabled && (c.LoginMaxAttempts < 1 || c.LoginCooldown <= 0) {
		return fmt.Errorf("login throttle needs LOGIN_MAX_ATTEMPTS >= 1 and a positive LOGIN_COOLDOWN")
	}

	if c.AuthRequestsPerSecond <= 0 || c.AuthBurst < 1 {
		return fmt.Errorf("auth rate limit must be positive: rps=%v burst=%d", c.AuthRequestsPerSecond, c.AuthBurst)
	}

	if c.OtelMetricsEnabled && c.OtelMetricsInterval < time.Second {
		return fmt.Errorf("OTEL_METRICS_INTERVAL must be at least 1s, got: %v", c.OtelMetricsInterval)
	}

	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// DatabaseDSN builds the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     c.Database.Host + ":" + c.Database.Port,
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}

// Auth maps the environment onto the engine configuration, starting from
// sessionauth.DefaultConfig.
func (c *Config) Auth() sessionauth.Config {
	cfg := sessionauth.DefaultConfig()

	cfg.Session.CookieName = c.Session.CookieName
	cfg.Session.CookieDomain = c.Session.CookieDomain
	cfg.Session.CookieSecure = c.Session.CookieSecure
	cfg.Session.SameSite = session.ParseSameSite(c.Session.SameSite)
	cfg.Session.MaxAge = c.Session.MaxAge
	cfg.Session.IdleTimeout = c.Session.IdleTimeout

	cfg.Security.EnableLoginThrottle = c.LoginThrottleEnabled
	cfg.Security.MaxLoginAttempts = c.LoginMaxAttempts
	cfg.Security.LoginCooldownDuration = c.LoginCooldown
	cfg.Security.DiscloseInactiveAccounts = c.DiscloseInactiveAccounts

	cfg.Audit.Enabled = c.EnableAuditLog

	return cfg
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

package sessionauth

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config is the engine configuration. Build deep-copies it; later changes to
// the caller's value have no effect.
type Config struct {
	Session  SessionConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the session store adapter and the session cookie.
type SessionConfig struct {
	RedisPrefix  string
	CookieName   string
	CookieDomain string
	CookieSecure bool
	SameSite     http.SameSite

	// MaxAge is the absolute session lifetime and the cookie Max-Age.
	MaxAge time.Duration
	// IdleTimeout expires sessions that go unread; zero disables sliding expiry.
	IdleTimeout time.Duration
	// OperationTimeout bounds every Redis call made on behalf of a request.
	OperationTimeout time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MinPasswordBytes int
	MaxPasswordBytes int
	UpgradeOnLogin   bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls the login throttle and failure disclosure.
type SecurityConfig struct {
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration

	// DiscloseInactiveAccounts makes login report "account is not active" for
	// inactive or soft-deleted accounts instead of the uniform invalid
	// credentials error. Off by default.
	DiscloseInactiveAccounts bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration: one-day sessions with a
// 30 minute idle window, Lax cookies, and OWASP-grade Argon2id parameters.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:      "sess",
			CookieName:       "sid",
			CookieSecure:     false,
			SameSite:         http.SameSiteLaxMode,
			MaxAge:           24 * time.Hour,
			IdleTimeout:      30 * time.Minute,
			OperationTimeout: 2 * time.Second,
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MinPasswordBytes: 8,
			MaxPasswordBytes: 1024,
			UpgradeOnLogin:   true,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:      false,
			EnableIPThrottle:         false,
			MaxLoginAttempts:         5,
			LoginCooldownDuration:    15 * time.Minute,
			DiscloseInactiveAccounts: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// Config holds only value fields today; the copy is still funnelled through
// here so Build has one place to deep-copy.
func cloneConfig(cfg Config) Config {
	out := cfg
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration against hardened minimums.
func (c *Config) Validate() error {
	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " \t\r\n") {
		return errors.New("Session RedisPrefix must not contain whitespace")
	}
	if c.Session.CookieName == "" || strings.ContainsAny(c.Session.CookieName, " ;,=\t") {
		return errors.New("Session CookieName must be a valid cookie token")
	}
	switch c.Session.SameSite {
	case http.SameSiteLaxMode, http.SameSiteStrictMode:
	case http.SameSiteNoneMode:
		if !c.Session.CookieSecure {
			return errors.New("Session SameSite=None requires CookieSecure")
		}
	default:
		return errors.New("Session SameSite must be Lax, Strict, or None")
	}
	if c.Session.MaxAge < time.Minute {
		return errors.New("Session MaxAge must be >= 1m")
	}
	if c.Session.IdleTimeout < 0 {
		return errors.New("Session IdleTimeout must be >= 0")
	}
	if c.Session.IdleTimeout > c.Session.MaxAge {
		return errors.New("Session IdleTimeout must not exceed MaxAge")
	}
	if c.Session.OperationTimeout <= 0 {
		return errors.New("Session OperationTimeout must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinPasswordBytes < 0 || c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password length bounds must be >= 0")
	}
	if c.Password.MaxPasswordBytes > 0 && c.Password.MinPasswordBytes > c.Password.MaxPasswordBytes {
		return errors.New("Password MinPasswordBytes must not exceed MaxPasswordBytes")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0 when the login throttle is enabled")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security LoginCooldownDuration must be > 0 when the login throttle is enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

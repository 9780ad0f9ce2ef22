package sessionauth

import (
	"net/http"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name: "strict same site valid",
			mutate: func(c *Config) {
				c.Session.SameSite = http.SameSiteStrictMode
			},
			wantValid: true,
		},
		{
			name: "same site none requires secure",
			mutate: func(c *Config) {
				c.Session.SameSite = http.SameSiteNoneMode
			},
			wantValid: false,
		},
		{
			name: "same site none with secure valid",
			mutate: func(c *Config) {
				c.Session.SameSite = http.SameSiteNoneMode
				c.Session.CookieSecure = true
			},
			wantValid: true,
		},
		{
			name: "default same site invalid",
			mutate: func(c *Config) {
				c.Session.SameSite = http.SameSiteDefaultMode
			},
			wantValid: false,
		},
		{
			name: "blank prefix invalid",
			mutate: func(c *Config) {
				c.Session.RedisPrefix = "  "
			},
			wantValid: false,
		},
		{
			name: "cookie name with separator invalid",
			mutate: func(c *Config) {
				c.Session.CookieName = "sid;x"
			},
			wantValid: false,
		},
		{
			name: "idle timeout above max age invalid",
			mutate: func(c *Config) {
				c.Session.MaxAge = time.Hour
				c.Session.IdleTimeout = 2 * time.Hour
			},
			wantValid: false,
		},
		{
			name: "idle timeout disabled valid",
			mutate: func(c *Config) {
				c.Session.IdleTimeout = 0
			},
			wantValid: true,
		},
		{
			name: "zero operation timeout invalid",
			mutate: func(c *Config) {
				c.Session.OperationTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "weak argon memory invalid",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "short salt invalid",
			mutate: func(c *Config) {
				c.Password.SaltLength = 8
			},
			wantValid: false,
		},
		{
			name: "inverted password bounds invalid",
			mutate: func(c *Config) {
				c.Password.MinPasswordBytes = 64
				c.Password.MaxPasswordBytes = 32
			},
			wantValid: false,
		},
		{
			name: "throttle without attempts invalid",
			mutate: func(c *Config) {
				c.Security.EnableLoginThrottle = true
				c.Security.MaxLoginAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "throttle disabled ignores attempts",
			mutate: func(c *Config) {
				c.Security.MaxLoginAttempts = 0
			},
			wantValid: true,
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuilderRejectsMissingDependencies(t *testing.T) {
	if _, err := New().WithUserProvider(newFakeProvider()).Build(); err == nil {
		t.Fatal("expected error without redis")
	}

	_, rdb, done := newTestRedis(t)
	defer done()
	if _, err := New().WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without user provider")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	_, rdb, done := newTestRedis(t)
	defer done()

	b := New().WithConfig(testConfig()).WithRedis(rdb).WithUserProvider(newFakeProvider())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

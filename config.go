package authkit

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shiftcrew/authkit/password"
)

// Config is the full configuration surface for authkit. Zero values are
// filled in with defaults by [DefaultConfig] and the builder; a Config is
// cloned on the way into [Builder.Build] and treated as immutable afterwards.
type Config struct {
	Provider  ProviderConfig
	JWTSecret []byte
	Issuer    string

	// TokenTTL bounds access-token lifetime; RefreshTokenTTL bounds the
	// refresh window. Validate enforces RefreshTokenTTL > TokenTTL.
	TokenTTL        time.Duration
	RefreshTokenTTL time.Duration

	// RequireVerifiedEmail gates sign-in on a verified email address.
	RequireVerifiedEmail bool

	Password     password.Policy
	PasswordHash password.Config
	Session      SessionConfig
	RateLimit    RateLimitConfig
	Refresh      RefreshConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderKind selects which registered backend the builder instantiates.
type ProviderKind string

const (
	// ProviderMemory is the built-in map-backed backend.
	ProviderMemory ProviderKind = "memory"
	// ProviderRemote is the built-in external-identity HTTP backend.
	ProviderRemote ProviderKind = "remote"
)

// ProviderConfig names the backend kind plus its backend-specific settings.
type ProviderConfig struct {
	Kind   ProviderKind
	Remote RemoteConfig
}

// RemoteConfig configures the external-identity HTTP backend.
type RemoteConfig struct {
	// BaseURL is the root of the remote identity service, without a
	// trailing slash.
	BaseURL string
	// APIKey is sent as the apikey header on every request.
	APIKey string
	// AdminToken authorizes the admin user endpoints. Optional; admin
	// operations fail with [ErrNotSupported] when absent.
	AdminToken string
	// Timeout bounds each HTTP call when the caller's context carries no
	// earlier deadline.
	Timeout time.Duration
	// HTTPClient overrides the transport. Nil uses a client with Timeout.
	HTTPClient *http.Client
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes session storage and cookie guidance surfaced to
// embedding HTTP layers.
type SessionConfig struct {
	// MaxSessionsPerUser caps concurrent sessions; 0 means unlimited.
	// When the cap is hit, the oldest session is evicted on sign-in.
	MaxSessionsPerUser int
	// CleanupInterval drives the memory store janitor. 0 disables it.
	CleanupInterval time.Duration
	// RedisPrefix namespaces session keys when a Redis store is wired.
	RedisPrefix string

	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig tunes the failed-attempt limiter for sign-in and password
// operations.
type RateLimitConfig struct {
	Enabled     bool
	MaxAttempts int
	Cooldown    time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls the service façade's proactive refresh timer.
type RefreshConfig struct {
	// Proactive schedules a background refresh before the access token
	// expires.
	Proactive bool
	// Fraction of the access TTL after which the refresh fires, in (0,1).
	Fraction float64
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig tunes the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull counts and discards events under backpressure instead of
	// blocking the emitting operation.
	DropIfFull bool
}

// MetricsConfig tunes the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULTS / VALIDATION
====================================
*/

// DefaultConfig returns the configuration used when the builder receives no
// explicit Config: memory backend, 30 minute access tokens, 30 day refresh
// window, default password policy and argon2id parameters.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Provider:        ProviderConfig{Kind: ProviderMemory},
		TokenTTL:        30 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		Issuer:          "authkit",
		Password:        password.DefaultPolicy(),
		PasswordHash:    password.DefaultConfig(),
		Session: SessionConfig{
			CleanupInterval: time.Minute,
			RedisPrefix:     "aks",
			CookieSecure:    true,
			CookieHTTPOnly:  true,
			CookieSameSite:  http.SameSiteLaxMode,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxAttempts: 5,
			Cooldown:    15 * time.Minute,
		},
		Refresh: RefreshConfig{
			Proactive: false,
			Fraction:  0.8,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks internal consistency. It is called by [Builder.Build]
// after defaults are applied.
func (c Config) Validate() error {
	switch c.Provider.Kind {
	case "":
		return errors.New("provider kind required")
	case ProviderRemote:
		if c.Provider.Remote.BaseURL == "" {
			return errors.New("remote provider requires BaseURL")
		}
	}

	if len(c.JWTSecret) < 32 {
		return errors.New("JWTSecret must be at least 32 bytes")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TokenTTL must be positive")
	}
	if c.RefreshTokenTTL <= c.TokenTTL {
		return errors.New("RefreshTokenTTL must be longer than TokenTTL")
	}
	if c.Session.MaxSessionsPerUser < 0 {
		return errors.New("MaxSessionsPerUser cannot be negative")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxAttempts <= 0 {
			return errors.New("RateLimit.MaxAttempts must be positive when enabled")
		}
		if c.RateLimit.Cooldown <= 0 {
			return errors.New("RateLimit.Cooldown must be positive when enabled")
		}
	}
	if c.Refresh.Proactive {
		if c.Refresh.Fraction <= 0 || c.Refresh.Fraction >= 1 {
			return fmt.Errorf("Refresh.Fraction must be in (0,1), got %v", c.Refresh.Fraction)
		}
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("Audit.BufferSize cannot be negative")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWTSecret = cloneBytes(cfg.JWTSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

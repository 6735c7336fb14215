package authkit

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envConfig mirrors the subset of [Config] that makes sense to set from the
// process environment. Nested backend and policy structs keep their defaults
// unless overridden here.
type envConfig struct {
	ProviderKind    string        `env:"AUTHKIT_PROVIDER" envDefault:"memory"`
	JWTSecret       string        `env:"AUTHKIT_JWT_SECRET"`
	Issuer          string        `env:"AUTHKIT_ISSUER" envDefault:"authkit"`
	TokenTTL        time.Duration `env:"AUTHKIT_TOKEN_TTL" envDefault:"30m"`
	RefreshTokenTTL time.Duration `env:"AUTHKIT_REFRESH_TOKEN_TTL" envDefault:"720h"`
	RequireVerified bool          `env:"AUTHKIT_REQUIRE_VERIFIED_EMAIL" envDefault:"false"`

	RemoteBaseURL    string        `env:"AUTHKIT_REMOTE_BASE_URL"`
	RemoteAPIKey     string        `env:"AUTHKIT_REMOTE_API_KEY"`
	RemoteAdminToken string        `env:"AUTHKIT_REMOTE_ADMIN_TOKEN"`
	RemoteTimeout    time.Duration `env:"AUTHKIT_REMOTE_TIMEOUT" envDefault:"10s"`

	MaxSessionsPerUser int           `env:"AUTHKIT_MAX_SESSIONS_PER_USER" envDefault:"0"`
	SessionPrefix      string        `env:"AUTHKIT_SESSION_PREFIX" envDefault:"aks"`
	CleanupInterval    time.Duration `env:"AUTHKIT_SESSION_CLEANUP_INTERVAL" envDefault:"1m"`

	RateLimitEnabled  bool          `env:"AUTHKIT_RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitAttempts int           `env:"AUTHKIT_RATE_LIMIT_ATTEMPTS" envDefault:"5"`
	RateLimitCooldown time.Duration `env:"AUTHKIT_RATE_LIMIT_COOLDOWN" envDefault:"15m"`

	ProactiveRefresh bool    `env:"AUTHKIT_PROACTIVE_REFRESH" envDefault:"false"`
	RefreshFraction  float64 `env:"AUTHKIT_REFRESH_FRACTION" envDefault:"0.8"`

	AuditEnabled   bool `env:"AUTHKIT_AUDIT_ENABLED" envDefault:"true"`
	AuditBuffer    int  `env:"AUTHKIT_AUDIT_BUFFER" envDefault:"256"`
	MetricsEnabled bool `env:"AUTHKIT_METRICS_ENABLED" envDefault:"true"`
}

// ConfigFromEnv builds a [Config] from the process environment on top of
// [DefaultConfig]. When dotenv files are given, each is loaded first; a
// missing explicit file is an error, while the conventional ".env" fallback
// is loaded only if present.
func ConfigFromEnv(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) > 0 {
		if err := godotenv.Load(dotenvFiles...); err != nil {
			return Config{}, fmt.Errorf("load dotenv: %w", err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("load dotenv: %w", err)
		}
	}

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg := defaultConfig()
	cfg.Provider.Kind = ProviderKind(ec.ProviderKind)
	cfg.JWTSecret = []byte(ec.JWTSecret)
	cfg.Issuer = ec.Issuer
	cfg.TokenTTL = ec.TokenTTL
	cfg.RefreshTokenTTL = ec.RefreshTokenTTL
	cfg.RequireVerifiedEmail = ec.RequireVerified

	cfg.Provider.Remote.BaseURL = ec.RemoteBaseURL
	cfg.Provider.Remote.APIKey = ec.RemoteAPIKey
	cfg.Provider.Remote.AdminToken = ec.RemoteAdminToken
	cfg.Provider.Remote.Timeout = ec.RemoteTimeout

	cfg.Session.MaxSessionsPerUser = ec.MaxSessionsPerUser
	cfg.Session.RedisPrefix = ec.SessionPrefix
	cfg.Session.CleanupInterval = ec.CleanupInterval

	cfg.RateLimit.Enabled = ec.RateLimitEnabled
	cfg.RateLimit.MaxAttempts = ec.RateLimitAttempts
	cfg.RateLimit.Cooldown = ec.RateLimitCooldown

	cfg.Refresh.Proactive = ec.ProactiveRefresh
	cfg.Refresh.Fraction = ec.RefreshFraction

	cfg.Audit.Enabled = ec.AuditEnabled
	cfg.Audit.BufferSize = ec.AuditBuffer
	cfg.Metrics.Enabled = ec.MetricsEnabled

	return cfg, nil
}

package authkit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("TokenTTL = %v", cfg.TokenTTL)
	}
	if cfg.RefreshTokenTTL != 720*time.Hour {
		t.Fatalf("RefreshTokenTTL = %v", cfg.RefreshTokenTTL)
	}
	if cfg.Issuer != "authkit" {
		t.Fatalf("Issuer = %q", cfg.Issuer)
	}
	if cfg.Provider.Kind != ProviderMemory {
		t.Fatalf("Provider.Kind = %q", cfg.Provider.Kind)
	}
	if cfg.Password.MinLength == 0 {
		t.Fatal("password policy not defaulted")
	}
	if cfg.PasswordHash.Memory == 0 || cfg.PasswordHash.KeyLength == 0 {
		t.Fatal("argon2 params not defaulted")
	}

	// Defaults fail validation until a secret is supplied.
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to demand a JWT secret")
	}
	cfg.JWTSecret = testSecret
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate with secret failed: %v", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AUTHKIT_PROVIDER", "remote")
	t.Setenv("AUTHKIT_JWT_SECRET", string(testSecret))
	t.Setenv("AUTHKIT_TOKEN_TTL", "15m")
	t.Setenv("AUTHKIT_REFRESH_TOKEN_TTL", "240h")
	t.Setenv("AUTHKIT_REMOTE_BASE_URL", "https://id.example.test")
	t.Setenv("AUTHKIT_REMOTE_API_KEY", "anon-key")
	t.Setenv("AUTHKIT_RATE_LIMIT_ATTEMPTS", "9")
	t.Setenv("AUTHKIT_PROACTIVE_REFRESH", "true")
	t.Setenv("AUTHKIT_REFRESH_FRACTION", "0.5")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}

	if cfg.Provider.Kind != ProviderRemote {
		t.Fatalf("Provider.Kind = %q", cfg.Provider.Kind)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Fatalf("TokenTTL = %v", cfg.TokenTTL)
	}
	if cfg.RefreshTokenTTL != 240*time.Hour {
		t.Fatalf("RefreshTokenTTL = %v", cfg.RefreshTokenTTL)
	}
	if cfg.Provider.Remote.BaseURL != "https://id.example.test" {
		t.Fatalf("BaseURL = %q", cfg.Provider.Remote.BaseURL)
	}
	if cfg.Provider.Remote.APIKey != "anon-key" {
		t.Fatalf("APIKey = %q", cfg.Provider.Remote.APIKey)
	}
	if cfg.RateLimit.MaxAttempts != 9 {
		t.Fatalf("MaxAttempts = %d", cfg.RateLimit.MaxAttempts)
	}
	if !cfg.Refresh.Proactive || cfg.Refresh.Fraction != 0.5 {
		t.Fatalf("refresh config = %+v", cfg.Refresh)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("env config failed validation: %v", err)
	}
}

func TestConfigFromEnvDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authkit.env")
	content := "AUTHKIT_ISSUER=dotenv-issuer\nAUTHKIT_JWT_SECRET=" + string(testSecret) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	cfg, err := ConfigFromEnv(path)
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if cfg.Issuer != "dotenv-issuer" {
		t.Fatalf("Issuer = %q", cfg.Issuer)
	}

	if _, err := ConfigFromEnv(filepath.Join(dir, "missing.env")); err == nil {
		t.Fatal("expected error for missing dotenv file")
	}
}

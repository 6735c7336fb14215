package authkit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = nil }, "secret"},
		{"short secret", func(c *Config) { c.JWTSecret = []byte("short") }, "secret"},
		{"missing kind", func(c *Config) { c.Provider.Kind = "" }, "kind"},
		{"remote without base url", func(c *Config) {
			c.Provider.Kind = ProviderRemote
			c.Provider.Remote.BaseURL = ""
		}, "base"},
		{"refresh window not longer", func(c *Config) { c.RefreshTokenTTL = c.TokenTTL }, "refresh"},
		{"fraction out of range", func(c *Config) {
			c.Refresh.Proactive = true
			c.Refresh.Fraction = 1.5
		}, "fraction"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			_, err := New().WithConfig(cfg).Build()
			if err == nil {
				t.Fatal("expected Build to fail")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig())
	svc, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer svc.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderConfigIsCopied(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg)

	// Mutating the caller's secret after WithConfig must not leak in.
	cfg.JWTSecret[0] ^= 0xff
	cfg.Provider.Kind = "mutated"

	svc, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer svc.Close()

	if svc.Config().Provider.Kind != ProviderMemory {
		t.Fatalf("config aliased: %q", svc.Config().Provider.Kind)
	}
	cfg.JWTSecret[0] ^= 0xff
}

func TestBuilderWithProviderBypassesRegistry(t *testing.T) {
	cfg := testConfig()
	cfg.Provider.Kind = "never-registered"

	fake := &stubProvider{}
	svc, err := New().WithConfig(cfg).WithProvider(fake).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer svc.Close()

	if svc.Provider() != Provider(fake) {
		t.Fatal("expected the injected provider to be used")
	}
}

func TestBuilderWithRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	svc, err := New().WithConfig(testConfig()).WithRedis(client).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()
	result := mustSignIn(t, svc, "admin@demo-org.test", "AdminDemo1!")

	// Session state actually lives in Redis.
	if len(mr.Keys()) == 0 {
		t.Fatal("expected session keys in redis")
	}
	if _, err := svc.ValidateToken(ctx, result.AccessToken); err != nil {
		t.Fatalf("ValidateToken over redis failed: %v", err)
	}

	refreshed, err := svc.RefreshToken(ctx, result.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken over redis failed: %v", err)
	}
	if _, err := svc.RefreshToken(ctx, result.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid on replay, got %v", err)
	}
	if _, err := svc.ValidateToken(ctx, refreshed.AccessToken); err != nil {
		t.Fatalf("rotated token failed over redis: %v", err)
	}
}

func TestBuilderRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := testConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.MaxAttempts = 2

	svc, err := New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.SignIn(ctx, Credentials{Email: "admin@demo-org.test", Password: "bad"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	_, err = svc.SignIn(ctx, Credentials{Email: "admin@demo-org.test", Password: "AdminDemo1!"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

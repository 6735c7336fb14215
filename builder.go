package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiftcrew/authkit/internal/rate"
	"github.com/shiftcrew/authkit/jwt"
	"github.com/shiftcrew/authkit/password"
	"github.com/shiftcrew/authkit/session"
)

// Builder assembles a [Service]. Configure it with the With* methods and
// call [Builder.Build] exactly once.
type Builder struct {
	config Config

	redis     redis.UniversalClient
	sessions  session.Store
	limiter   RateLimitStore
	auditSink AuditSink
	provider  Provider
	clock     func() time.Time

	built bool
}

// New creates a builder carrying [DefaultConfig]. A JWT secret must still
// be supplied through [Builder.WithConfig] before Build succeeds.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies a Redis client. Sessions and rate limiting move to
// Redis-backed implementations unless overridden explicitly.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore overrides the session store selection.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessions = store
	return b
}

// WithRateLimitStore overrides the rate-limit store selection.
func (b *Builder) WithRateLimitStore(store RateLimitStore) *Builder {
	b.limiter = store
	return b
}

// WithAuditSink receives audit events from the async dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithProvider bypasses the registry and wraps the given backend directly.
func (b *Builder) WithProvider(p Provider) *Builder {
	b.provider = p
	return b
}

// WithClock injects a time source, used by tests to simulate expiry.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration, wires the session store, rate
// limiter, audit dispatcher, and metrics, constructs the backend through
// the registry, and returns the service façade.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	sessions := b.sessions
	ownsSessions := false
	if sessions == nil {
		if b.redis != nil {
			sessions = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
		} else {
			sessions = session.NewMemoryStore(cfg.Session.CleanupInterval)
		}
		ownsSessions = true
	}

	limiter := b.limiter
	if limiter == nil {
		if cfg.RateLimit.Enabled && b.redis != nil {
			limiter = &redisRateStore{limiter: rate.New(b.redis, rate.Config{
				MaxAttempts: cfg.RateLimit.MaxAttempts,
				Cooldown:    cfg.RateLimit.Cooldown,
			})}
		} else {
			limiter = permitAllStore{}
		}
	}

	dispatcher := newAuditDispatcher(cfg.Audit, b.auditSink)
	metrics := NewMetrics(cfg.Metrics)

	deps := Dependencies{
		Config:    cfg,
		Sessions:  sessions,
		RateLimit: limiter,
		Clock:     clock,
		audit:     dispatcher,
		metrics:   metrics,
	}

	provider := b.provider
	if provider == nil {
		var err error
		provider, err = newProvider(deps)
		if err != nil {
			if dispatcher != nil {
				dispatcher.Close()
			}
			return nil, err
		}
	}

	b.built = true

	return &Service{
		provider:     provider,
		cfg:          cfg,
		audit:        dispatcher,
		metrics:      metrics,
		sessions:     sessions,
		ownsSessions: ownsSessions,
		clock:        clock,
	}, nil
}

// redisRateStore adapts the internal fixed-window limiter to the
// [RateLimitStore] contract.
type redisRateStore struct {
	limiter *rate.Limiter
}

func (s *redisRateStore) Check(ctx context.Context, identifier, action string) error {
	if err := s.limiter.Check(ctx, identifier, action); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			return fmt.Errorf("%w: %s", ErrRateLimited, action)
		}
		return err
	}
	return nil
}

func (s *redisRateStore) RecordHit(ctx context.Context, identifier, action string) error {
	if err := s.limiter.RecordHit(ctx, identifier, action); err != nil && !errors.Is(err, rate.ErrLimited) {
		return err
	}
	return nil
}

func (s *redisRateStore) Reset(ctx context.Context, identifier, action string) error {
	return s.limiter.Reset(ctx, identifier, action)
}

func newHasherFor(cfg Config) (*password.Hasher, error) {
	return password.NewHasher(cfg.PasswordHash)
}

func newTokenManagerFor(cfg Config) (*jwt.Manager, error) {
	return jwt.NewManager(jwt.Config{
		Secret:    cfg.JWTSecret,
		AccessTTL: cfg.TokenTTL,
		Issuer:    cfg.Issuer,
	})
}

// Compile-time wiring checks.
var (
	_ RateLimitStore = (*redisRateStore)(nil)
	_ RateLimitStore = permitAllStore{}
	_ Provider       = (*MemoryProvider)(nil)
	_ Provider       = (*RemoteProvider)(nil)
)

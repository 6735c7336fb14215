package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	Prefix      string
	MaxAttempts int
	Cooldown    time.Duration
}

// Limiter tracks failed attempts per identifier+action pair using Redis
// fixed-window counters.
type Limiter struct {
	redis redis.UniversalClient
	cfg   Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "akrl"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Minute
	}
	return &Limiter{
		redis: redisClient,
		cfg:   cfg,
	}
}

// Check returns [ErrLimited] when the identifier has already exhausted its
// budget for the action. A missing counter passes.
func (l *Limiter) Check(ctx context.Context, identifier, action string) error {
	count, err := l.redis.Get(ctx, l.key(identifier, action)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.cfg.MaxAttempts) {
		return ErrLimited
	}

	return nil
}

// RecordHit registers a failed attempt. It returns [ErrLimited] once the
// attempt crosses the budget so callers may short-circuit.
func (l *Limiter) RecordHit(ctx context.Context, identifier, action string) error {
	key := l.key(identifier, action)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.cfg.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count >= int64(l.cfg.MaxAttempts) {
		return ErrLimited
	}
	return nil
}

// Reset clears the counter for an identifier+action pair, typically after a
// successful authentication.
func (l *Limiter) Reset(ctx context.Context, identifier, action string) error {
	if err := l.redis.Del(ctx, l.key(identifier, action)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter. Missing keys return zero and do not
// reveal account existence.
func (l *Limiter) Attempts(ctx context.Context, identifier, action string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(identifier, action)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) key(identifier, action string) string {
	digest := sha256.Sum256([]byte(identifier))
	return l.cfg.Prefix + ":" + action + ":" + hex.EncodeToString(digest[:16])
}

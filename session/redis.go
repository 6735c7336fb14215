package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeRefreshScript atomically resolves the refresh index entry and
// removes both the index and the session blob, returning the blob. A losing
// racer observes a missing index key and gets nothing.
const consumeRefreshScript = `
local id = redis.call("GET", KEYS[1])
if not id then
  return false
end
redis.call("DEL", KEYS[1])
local sessKey = ARGV[1] .. id
local blob = redis.call("GET", sessKey)
if not blob then
  return false
end
redis.call("DEL", sessKey)
return blob
`

var consumeRefreshLua = redis.NewScript(consumeRefreshScript)

// RedisStore is a [Store] backed by Redis, for deployments where several
// processes share one session table. Records carry a TTL closing with the
// refresh window, so dead sessions vanish without a janitor.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed store using the given key prefix
// ("aks" when empty). The client remains owned by the caller.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "aks"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" || sess.AccessToken == "" || sess.RefreshToken == "" {
		return ErrInvalidSession
	}
	if sess.AccessToken == sess.RefreshToken {
		return ErrInvalidSession
	}
	ttl := time.Until(sess.RefreshExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("%w: refresh window already closed", ErrInvalidSession)
	}

	blob, err := encodeRecord(sess)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.sessKey(sess.ID), blob, ttl)
	pipe.Set(ctx, s.accessKey(sess.AccessToken), sess.ID, ttl)
	pipe.Set(ctx, s.refreshKey(sess.RefreshToken), sess.ID, ttl)
	pipe.SAdd(ctx, s.userKey(sess.UserID), sess.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

func (s *RedisStore) GetByID(ctx context.Context, id string) (*Session, error) {
	return s.fetch(ctx, s.sessKey(id))
}

func (s *RedisStore) GetByAccessToken(ctx context.Context, token string) (*Session, error) {
	id, err := s.redis.Get(ctx, s.accessKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return s.fetch(ctx, s.sessKey(id))
}

func (s *RedisStore) ConsumeRefreshToken(ctx context.Context, token string) (*Session, error) {
	raw, err := consumeRefreshLua.Run(ctx, s.redis,
		[]string{s.refreshKey(token)},
		s.prefix+":sess:",
	).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	blob, ok := raw.(string)
	if !ok {
		return nil, ErrNotFound
	}
	sess, err := decodeRecord([]byte(blob))
	if err != nil {
		return nil, err
	}

	// Index cleanup is best effort; the session blob is already gone.
	pipe := s.redis.Pipeline()
	pipe.Del(ctx, s.accessKey(sess.AccessToken))
	pipe.SRem(ctx, s.userKey(sess.UserID), sess.ID)
	_, _ = pipe.Exec(ctx)

	return sess, nil
}

func (s *RedisStore) Touch(ctx context.Context, id string, at time.Time) error {
	sess, err := s.fetch(ctx, s.sessKey(id))
	if err != nil {
		return err
	}

	sess.LastAccessAt = at
	sess.UpdatedAt = at
	blob, err := encodeRecord(sess)
	if err != nil {
		return err
	}

	err = s.redis.SetArgs(ctx, s.sessKey(id), blob, redis.SetArgs{KeepTTL: true}).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	out := make([]Session, 0, len(ids))
	var stale []any
	for _, id := range ids {
		sess, err := s.fetch(ctx, s.sessKey(id))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				stale = append(stale, id)
				continue
			}
			return nil, err
		}
		out = append(out, *sess)
	}

	if len(stale) > 0 {
		_ = s.redis.SRem(ctx, s.userKey(userID), stale...).Err()
	}

	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	sess, err := s.fetch(ctx, s.sessKey(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.sessKey(id))
	pipe.Del(ctx, s.accessKey(sess.AccessToken))
	pipe.Del(ctx, s.refreshKey(sess.RefreshToken))
	pipe.SRem(ctx, s.userKey(sess.UserID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	count := 0
	for _, id := range ids {
		sess, err := s.fetch(ctx, s.sessKey(id))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return count, err
		}
		pipe := s.redis.TxPipeline()
		pipe.Del(ctx, s.sessKey(id))
		pipe.Del(ctx, s.accessKey(sess.AccessToken))
		pipe.Del(ctx, s.refreshKey(sess.RefreshToken))
		if _, err := pipe.Exec(ctx); err != nil {
			return count, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		count++
	}

	if err := s.redis.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return count, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

func (s *RedisStore) Close() error {
	// The Redis client is owned by the caller.
	return nil
}

func (s *RedisStore) fetch(ctx context.Context, key string) (*Session, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeRecord(data)
}

func (s *RedisStore) sessKey(id string) string {
	return s.prefix + ":sess:" + id
}

func (s *RedisStore) accessKey(token string) string {
	return s.prefix + ":at:" + tokenDigest(token)
}

func (s *RedisStore) refreshKey(token string) string {
	return s.prefix + ":rt:" + tokenDigest(token)
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

// tokenDigest keys indexes by a token digest so raw tokens never appear in
// Redis.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

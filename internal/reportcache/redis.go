package reportcache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const (
	redisPrefix     = "ledger:report:"
	redisVersionKey = "ledger:report:version"
)

// RedisStore is a Remote shared between API replicas. Keys are hashed and
// carry a version so Bump invalidates everything at once.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) version(ctx context.Context) (int64, error) {
	ver, err := s.client.Get(ctx, redisVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
	}
	return ver, nil
}

func (s *RedisStore) key(ctx context.Context, raw string) (string, error) {
	ver, err := s.version(ctx)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256([]byte(raw))
	return fmt.Sprintf("%s%d:%s", redisPrefix, ver, hex.EncodeToString(sum[:16])), nil
}

// Get implements Remote.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, nil
	}
	k, err := s.key(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("reportcache: redis version: %w", err)
	}
	raw, err := s.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reportcache: redis get: %w", err)
	}
	return raw, true, nil
}

// Set implements Remote.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return nil
	}
	k, err := s.key(ctx, key)
	if err != nil {
		return fmt.Errorf("reportcache: redis version: %w", err)
	}
	if err := s.client.Set(ctx, k, value, ttl).Err(); err != nil {
		return fmt.Errorf("reportcache: redis set: %w", err)
	}
	return nil
}

// Bump invalidates every shared entry by moving to a new key version.
func (s *RedisStore) Bump(ctx context.Context) (int64, error) {
	if s == nil || s.client == nil {
		return 0, nil
	}
	ver, err := s.client.Incr(ctx, redisVersionKey).Result()
	if err != nil {
		return 0, fmt.Errorf("reportcache: redis bump: %w", err)
	}
	if ver == 1 {
		// version 1 was the implicit default; skip past it
		ver, err = s.client.Incr(ctx, redisVersionKey).Result()
		if err != nil {
			return 0, fmt.Errorf("reportcache: redis bump: %w", err)
		}
	}
	return ver, nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCodeNotFound is returned when no code is stored for a key, or it expired.
var ErrCodeNotFound = errors.New("code not found or expired")

// CodeStore keeps short-lived verification codes.
type CodeStore interface {
	Save(ctx context.Context, key, code string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type redisCodeStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCodeStore stores codes under "<prefix>:<key>" with a Redis TTL.
func NewRedisCodeStore(rdb *redis.Client, prefix string) CodeStore {
	return &redisCodeStore{rdb: rdb, prefix: prefix}
}

func (s *redisCodeStore) key(k string) string {
	return fmt.Sprintf("%s:%s", s.prefix, k)
}

func (s *redisCodeStore) Save(ctx context.Context, key, code string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(key), code, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store code for %s: %w", key, err)
	}
	return nil
}

func (s *redisCodeStore) Get(ctx context.Context, key string) (string, error) {
	code, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read code for %s: %w", key, err)
	}
	return code, nil
}

func (s *redisCodeStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares claimed keys between instances using SET NX with a TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, cfg Config) *RedisStore {
	return &RedisStore{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}
}

func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	ok, err := s.client.SetNX(ctx, s.prefix+key, time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, errors.Join(ErrStore, err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

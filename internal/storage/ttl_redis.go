package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTTLStore backs the presence and typing trackers with Redis, so markers
// survive process restarts and are shared across instances.
type RedisTTLStore struct {
	Client *redis.Client
}

func NewRedisTTLStore(client *redis.Client) *RedisTTLStore {
	return &RedisTTLStore{Client: client}
}

// SetEx writes the key with the given TTL and reports whether it already
// existed. SET with GET returns the old value atomically; redis.Nil means
// there was none.
func (s *RedisTTLStore) SetEx(key string, ttl time.Duration) (bool, error) {
	_, err := s.Client.SetArgs(context.Background(), key, "true", redis.SetArgs{
		TTL: ttl,
		Get: true,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisTTLStore) Exists(key string) (bool, error) {
	n, err := s.Client.Exists(context.Background(), key).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisTTLStore) Del(key string) (bool, error) {
	n, err := s.Client.Del(context.Background(), key).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

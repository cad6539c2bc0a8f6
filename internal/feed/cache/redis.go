package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bullionrates/internal/feed"
)

// KeyPrefix namespaces cache keys in Redis.
const KeyPrefix = "bullionrates:feed:"

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisStore shares cached observations between processes.
type RedisStore struct {
	client redisClient
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, client, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]feed.Observation, bool, error) {
	data, err := s.client.Get(ctx, KeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get observations from redis: %w", err)
	}
	var obs []feed.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal observations: %w", err)
	}
	return obs, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, obs []feed.Observation, ttl time.Duration) error {
	// JSON has no NaN; such bars are stored without a close.
	clean := make([]feed.Observation, len(obs))
	for i, o := range obs {
		if o.Close != nil && !o.Valid() {
			o.Close = nil
		}
		clean[i] = o
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("failed to marshal observations: %w", err)
	}
	if err := s.client.Set(ctx, KeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set observations in redis: %w", err)
	}
	return nil
}

// redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"confess.share/internal/models"
)

var _ Cache = (*RedisCache)(nil)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(options *redis.Options) (*RedisCache, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Set(ctx context.Context, id string, entry *models.CachedSecret, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %v", ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	return r.client.Set(ctx, id, data, ttl).Err()
}

func (r *RedisCache) Get(ctx context.Context, id string) (*models.CachedSecret, error) {
	data, err := r.client.Get(ctx, id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}

	var entry models.CachedSecret
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}

	return &entry, nil
}

func (r *RedisCache) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, id).Err()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

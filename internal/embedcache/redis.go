// ABOUTME: Redis-backed vector cache using go-redis
// ABOUTME: Vectors are stored as little-endian float64 blobs with a TTL
package embedcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/util"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache on a Redis server
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to addr and verifies the server responds
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// Get loads a vector; a missing key is not an error
func (r *RedisCache) Get(ctx context.Context, key string) ([]float64, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec, err := util.BlobToVector(data)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set stores a vector with the configured TTL
func (r *RedisCache) Set(ctx context.Context, key string, vector []float64) error {
	return r.client.Set(ctx, key, util.VectorToBlob(vector), r.ttl).Err()
}

// Close releases the connection pool
func (r *RedisCache) Close() error {
	return r.client.Close()
}

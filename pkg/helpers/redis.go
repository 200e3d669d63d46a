package helpers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// ErrRedisNotConfigured is returned when no Redis URL is provided.
var ErrRedisNotConfigured = errors.New("redis connection failed: REDIS_URL is not set")

// NewRedisClient initializes a redis client from a redis:// or rediss:// URL
func NewRedisClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, ErrRedisNotConfigured
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// RedisGetJSON decodes the JSON value at key into dest. A missing key is
// reported as found=false with no error.
func RedisGetJSON[T any](ctx context.Context, rdb redis.Cmdable, key string, dest *T) (bool, error) {
	res, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(res, dest); err != nil {
		return false, err
	}
	return true, nil
}

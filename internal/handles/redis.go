package handles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "ecotrail:handle:"
	fieldData        = "data"
	fieldContentType = "contentType"
)

// RedisRegistry stores handle bytes in redis. The TTL bounds how long an
// unconsumed handle can outlive an owner that never released it.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, ttl: ttl}
}

func (r *RedisRegistry) Create(ctx context.Context, data []byte, contentType string) (Handle, error) {
	if len(data) == 0 {
		return Handle{}, fmt.Errorf("cannot create handle for empty data")
	}
	token := newToken()
	key := redisKeyPrefix + token

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldData, data, fieldContentType, contentType)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return Handle{}, fmt.Errorf("failed to store handle: %w", err)
	}
	return Handle{Token: token, ContentType: contentType, Size: len(data)}, nil
}

func (r *RedisRegistry) Consume(ctx context.Context, token string) ([]byte, string, error) {
	key := redisKeyPrefix + token

	var get *redis.MapStringStringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGetAll(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, "", fmt.Errorf("failed to consume handle: %w", err)
	}

	fields := get.Val()
	data, ok := fields[fieldData]
	if !ok {
		return nil, "", ErrHandleNotFound
	}
	return []byte(data), fields[fieldContentType], nil
}

func (r *RedisRegistry) Release(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to release handle: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Outstanding(ctx context.Context) (int, error) {
	count := 0
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count handles: %w", err)
	}
	return count, nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

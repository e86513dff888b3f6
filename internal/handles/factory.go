package handles

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 10 * time.Minute

// NewRegistry builds the configured registry. "memory" (or empty) needs no
// address; "redis" pings the server before returning.
func NewRegistry(ctx context.Context, registryType, address string, ttl time.Duration) (Registry, error) {
	switch registryType {
	case "memory", "":
		return NewMemoryRegistry(), nil
	case "redis":
		if ttl <= 0 {
			ttl = DefaultTTL
		}
		client := redis.NewClient(&redis.Options{Addr: address})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", address, err)
		}
		slog.Info("redis handle registry connected", "address", address, "ttl", ttl)
		return NewRedisRegistry(client, ttl), nil
	default:
		return nil, fmt.Errorf("unsupported handle registry type: %s", registryType)
	}
}

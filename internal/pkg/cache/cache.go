package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/fitsync/internal/pkg/config"
)

// NewClient connects to the Redis-compatible cache backing the job queue. The
// client is returned even when the first ping fails so go-redis can reconnect
// once the server is reachable.
func NewClient(cfg config.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to %s: %v", cfg.Addr(), err)
		return client, fmt.Errorf("ping cache %s: %w", cfg.Addr(), err)
	}
	log.Infof("[Cache] Connected to %s: %s", cfg.Addr(), pong)
	return client, nil
}

// Ping reports whether the cache answers within the context deadline.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TheRockzi/hackacademy/internal/config"
)

// NewRedis connects the client that backs session storage and the profile
// and session pub/sub channels. The URL form (redis://host:port/db) keeps
// the whole connection in one env var. A failed ping is fatal here: with
// no Redis there are no sessions, so there is nothing useful to serve.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}

// Package cache provides Redis connection management with lifecycle coordination.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/intake/pkg/lifecycle"
)

// System manages a Redis client and lifecycle coordination.
type System interface {
	// Client returns the underlying Redis client.
	Client() *redis.Client
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

type cache struct {
	client      *redis.Client
	logger      *slog.Logger
	connTimeout time.Duration
}

// New creates a Redis system. No connection is made until Start.
func New(cfg *Config, logger *slog.Logger) System {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &cache{
		client:      client,
		logger:      logger.With("system", "redis"),
		connTimeout: cfg.ConnTimeoutDuration(),
	}
}

func (c *cache) Client() *redis.Client {
	return c.client
}

func (c *cache) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, c.connTimeout)
		defer cancel()

		if err := c.client.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}

		c.logger.Info("redis connection established")
		return nil
	})

	lc.OnShutdown(func(context.Context) error {
		if err := c.client.Close(); err != nil {
			return fmt.Errorf("redis close: %w", err)
		}

		c.logger.Info("redis connection closed")
		return nil
	})

	return nil
}

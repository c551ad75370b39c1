package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/perflab/querybench/pkg/config"
)

// Redis is the cache backend reached through a go-redis client.
type Redis struct {
	log    logrus.FieldLogger
	cfg    *config.RedisConfig
	client *redis.Client
}

// Compile-time interface check.
var _ Cache = (*Redis)(nil)

// NewRedis creates an unconnected Redis backend.
func NewRedis(log logrus.FieldLogger, cfg *config.RedisConfig) *Redis {
	return &Redis{
		log: log.WithField("component", "redis"),
		cfg: cfg,
	}
}

// Start opens the client and verifies connectivity.
func (r *Redis) Start(ctx context.Context) error {
	r.client = redis.NewClient(&redis.Options{
		Addr:     r.cfg.Address,
		Password: r.cfg.Password,
		DB:       r.cfg.DB,
	})

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}

	r.log.WithField("address", r.cfg.Address).Info("Redis connected")

	return nil
}

// Stop closes the client.
func (r *Redis) Stop() error {
	if r.client == nil {
		return nil
	}

	return r.client.Close()
}

// Get returns the stored value and whether the key was present.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	return val, true, nil
}

// Set stores value under key with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}

	return nil
}

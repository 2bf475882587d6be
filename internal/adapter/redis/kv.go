// Package redis stores snapshots in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/MohamedAzimStelco/outage-dashboard/internal/config"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/snapshot"
	goredis "github.com/redis/go-redis/v9"
)

// KV implements snapshot.KV on a Redis client.
type KV struct {
	client *goredis.Client
}

// NewKV connects to the configured Redis instance. The connection is lazy;
// use Ping to check it.
func NewKV(cfg *config.Config) *KV {
	return &KV{client: goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})}
}

// Get returns snapshot.ErrNotFound when the key does not exist.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := k.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, snapshot.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

// Set stores value without expiry, replacing any previous value.
func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	if err := k.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (k *KV) Ping(ctx context.Context) error {
	return k.client.Ping(ctx).Err()
}

func (k *KV) Close() error {
	return k.client.Close()
}

// Package redis wraps a go-redis client with JSON helpers. A Redisdb built
// without an address is disabled: reads always miss and writes are dropped.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"sql-sandbox/configs"
)

type Redisdb struct {
	client *redis.Client
}

// NewRedis connects and pings. An empty address yields a disabled client.
func NewRedis(ctx context.Context, conf configs.RedisConfig) (*Redisdb, error) {
	if conf.Addr == "" {
		return &Redisdb{}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        conf.Addr,
		Password:    conf.Password,
		DB:          conf.DB,
		DialTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", conf.Addr, err)
	}
	return &Redisdb{client: rdb}, nil
}

func (r *Redisdb) Enabled() bool { return r != nil && r.client != nil }

// GetJSON decodes the value under key into dst. found is false on a miss.
func (r *Redisdb) GetJSON(ctx context.Context, key string, dst any) (found bool, err error) {
	if !r.Enabled() {
		return false, nil
	}
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (r *Redisdb) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !r.Enabled() {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, raw, ttl).Err()
}

// DeletePrefix removes every key starting with prefix.
func (r *Redisdb) DeletePrefix(ctx context.Context, prefix string) error {
	if !r.Enabled() {
		return nil
	}
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redisdb) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Close()
}

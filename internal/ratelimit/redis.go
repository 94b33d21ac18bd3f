// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter shared between processes.
// Each key is a counter that expires at the end of its window.
type Redis struct {
	client *redis.Client
	prefix string
	max    int
	period time.Duration
}

// NewRedis creates a Redis-backed limiter from a connection URL.
func NewRedis(redisURL, prefix string, max int, period time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisWithClient(client, prefix, max, period), nil
}

// NewRedisWithClient creates a limiter from an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, max int, period time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix + "ratelimit:", max: max, period: period}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

// Record implements Limiter. The counter and its TTL are read in one
// transaction; a key left without a TTL gets the window expiry again.
func (r *Redis) Record(ctx context.Context, key string) (Decision, error) {
	k := r.key(key)

	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	if _, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pttl = pipe.PTTL(ctx, k)
		return nil
	}); err != nil {
		return Decision{}, fmt.Errorf("record attempt: %w", err)
	}

	n := incr.Val()
	ttl := pttl.Val()
	if ttl < 0 {
		if err := r.client.PExpire(ctx, k, r.period).Err(); err != nil {
			return Decision{}, fmt.Errorf("set window expiry: %w", err)
		}
		ttl = r.period
	}
	return decide(int(n), r.max, ttl), nil
}

// Reset implements Limiter.
func (r *Redis) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

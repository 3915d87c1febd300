// Package redis counts failed publish authentications per client in Redis.
package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mailbus:auth_failures:"

// NewClient connects to Redis and checks the connection
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", addr)
	}
	return client, nil
}

// Limiter blocks a client after limit failures within window.
// The window starts with the first failure.
type Limiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

// NewLimiter returns a limiter storing its counters in client
func NewLimiter(client redis.Cmdable, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Limiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

// Blocked reports whether key has used up its failures
func (l *Limiter) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Get(ctx, keyPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "redis GET")
	}
	return n >= l.limit, nil
}

// RecordFailure counts one failed attempt for key
func (l *Limiter) RecordFailure(ctx context.Context, key string) error {
	k := keyPrefix + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return errors.Wrap(err, "redis INCR")
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return errors.Wrap(err, "redis EXPIRE")
		}
	}
	return nil
}

// Reset forgets the failures counted for key
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "redis DEL")
	}
	return nil
}

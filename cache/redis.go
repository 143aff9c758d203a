package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisPrefix namespaces every key written by this package
	DefaultRedisPrefix = "hotlist:"
	// DefaultRedisTimeout bounds a single secondary round trip
	DefaultRedisTimeout = 500 * time.Millisecond
)

// Redis is the remote secondary tier. Expiry is delegated to Redis itself.
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	clock   Clock
}

// RedisOption configures a Redis tier
type RedisOption func(*Redis)

// WithPrefix replaces the key prefix
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithTimeout bounds every Redis call; 0 relies on the client's own timeouts
func WithTimeout(d time.Duration) RedisOption {
	return func(r *Redis) { r.timeout = d }
}

// WithRedisClock replaces the clock used to stamp InsertedAt
func WithRedisClock(c Clock) RedisOption {
	return func(r *Redis) { r.clock = c }
}

// NewRedis wraps an existing client
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client:  client,
		prefix:  DefaultRedisPrefix,
		timeout: DefaultRedisTimeout,
		clock:   SystemClock,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Name implements Tier
func (r *Redis) Name() string { return "redis" }

// Get implements Tier. Connectivity problems are reported as Unavailable.
func (r *Redis) Get(ctx context.Context, key Key) Lookup {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	b, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Miss()
	}
	if err != nil {
		return Unavailable(fmt.Errorf("%w: redis get: %w", ErrSecondaryUnavailable, err))
	}

	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		// Unreadable envelopes behave like absent keys; the next Set overwrites them.
		return Miss()
	}
	return Hit(&e)
}

// Set implements Tier
func (r *Redis) Set(ctx context.Context, key Key, entry Entry) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	entry.InsertedAt = r.clock.Now()
	b, err := json.Marshal(&entry)
	if err != nil {
		return err
	}

	ttl := entry.TTL
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.redisKey(key), b, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %w", ErrSecondaryUnavailable, err)
	}
	return nil
}

// Invalidate implements Tier
func (r *Redis) Invalidate(ctx context.Context, key Key) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %w", ErrSecondaryUnavailable, err)
	}
	return nil
}

// Ping checks connectivity
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying client
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) redisKey(key Key) string {
	return r.prefix + string(key)
}

func (r *Redis) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

var _ Tier = (*Redis)(nil)

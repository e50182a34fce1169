// Package cache buffers listing view counts between database flushes.
//
// Views are counted on every listing detail read. Writing each one to the
// products table would turn reads into writes, so counts accumulate here and
// the view flush job drains them into the database on a schedule.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ViewCounter accumulates per-listing view counts
type ViewCounter interface {
	Incr(ctx context.Context, productID string) error
	// Drain returns and resets all pending counts
	Drain(ctx context.Context) (map[string]int64, error)
	Close() error
}

// =============================================================================
// Memory
// =============================================================================

// MemoryCounter is an in-process ViewCounter for single-instance deployments
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryCounter creates an empty counter
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64)}
}

// Incr implements ViewCounter
func (c *MemoryCounter) Incr(_ context.Context, productID string) error {
	c.mu.Lock()
	c.counts[productID]++
	c.mu.Unlock()
	return nil
}

// Drain implements ViewCounter
func (c *MemoryCounter) Drain(_ context.Context) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.counts
	c.counts = make(map[string]int64)
	return out, nil
}

// Close implements ViewCounter
func (c *MemoryCounter) Close() error { return nil }

// =============================================================================
// Redis
// =============================================================================

const (
	viewsKey    = "exitlane:listing_views"
	drainingKey = "exitlane:listing_views:draining"
)

// RedisConfig configures RedisCounter
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCounter keeps counts in a Redis hash so every API instance shares them
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter connects to Redis and verifies the connection
func NewRedisCounter(ctx context.Context, cfg RedisConfig) (*RedisCounter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCounter{client: client}, nil
}

// Incr implements ViewCounter
func (c *RedisCounter) Incr(ctx context.Context, productID string) error {
	if err := c.client.HIncrBy(ctx, viewsKey, productID, 1).Err(); err != nil {
		return fmt.Errorf("failed to count view: %w", err)
	}
	return nil
}

// Drain implements ViewCounter. The hash is renamed before reading so
// increments that race the drain land in a fresh hash.
func (c *RedisCounter) Drain(ctx context.Context) (map[string]int64, error) {
	if err := c.client.Rename(ctx, viewsKey, drainingKey).Err(); err != nil {
		if strings.Contains(err.Error(), "no such key") {
			return map[string]int64{}, nil
		}
		return nil, fmt.Errorf("failed to swap view counts: %w", err)
	}

	var raw *redis.StringStringMapCmd
	if _, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		raw = pipe.HGetAll(ctx, drainingKey)
		pipe.Del(ctx, drainingKey)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to read view counts: %w", err)
	}

	out := make(map[string]int64, len(raw.Val()))
	for id, v := range raw.Val() {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

// Close implements ViewCounter
func (c *RedisCounter) Close() error {
	return c.client.Close()
}

package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown suppresses repeat records for the same employee.
type Cooldown interface {
	// Reserve atomically claims the window for id starting at now. It
	// reports false when the window is already held.
	Reserve(ctx context.Context, id string, now time.Time) (bool, error)
	// Release gives back a reservation whose write failed.
	Release(ctx context.Context, id string) error
}

// MemoryCooldown tracks last-write times in process memory.
type MemoryCooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

// NewMemoryCooldown creates a cooldown. A zero window disables suppression.
func NewMemoryCooldown(window time.Duration) *MemoryCooldown {
	return &MemoryCooldown{window: window, last: make(map[string]time.Time)}
}

// Reserve implements Cooldown.
func (c *MemoryCooldown) Reserve(_ context.Context, id string, now time.Time) (bool, error) {
	if c.window <= 0 {
		return true, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.last[id]; ok && now.Sub(last) < c.window {
		return false, nil
	}
	c.last[id] = now
	return true, nil
}

// Release implements Cooldown.
func (c *MemoryCooldown) Release(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, id)
	return nil
}

// RedisCooldown shares the window across kiosks through expiring keys.
type RedisCooldown struct {
	client *redis.Client
	window time.Duration
	prefix string
}

// NewRedisCooldown connects with short timeouts.
func NewRedisCooldown(addr string, window time.Duration) *RedisCooldown {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &RedisCooldown{client: client, window: window, prefix: "facekiosk:cooldown:"}
}

// Healthy verifies redis connectivity.
func (c *RedisCooldown) Healthy(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}

// Reserve implements Cooldown with SET NX PX, so only one kiosk wins the
// window.
func (c *RedisCooldown) Reserve(ctx context.Context, id string, now time.Time) (bool, error) {
	if c.window <= 0 {
		return true, nil
	}
	ok, err := c.client.SetNX(ctx, c.prefix+id, now.Unix(), c.window).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}

// Release implements Cooldown.
func (c *RedisCooldown) Release(ctx context.Context, id string) error {
	if c.window <= 0 {
		return nil
	}
	return c.client.Del(ctx, c.prefix+id).Err()
}

// Close releases the client.
func (c *RedisCooldown) Close() error {
	return c.client.Close()
}

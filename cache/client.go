package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"oneworld-backend/config"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis connection used for settings snapshots and admin
// sessions. When Redis is unreachable at startup the client degrades to an
// in-process map so the API keeps working; cached data is then per-instance.
type Client struct {
	rdb *redis.Client

	mu   sync.RWMutex
	mock map[string]mockEntry
}

type mockEntry struct {
	value     string
	expiresAt time.Time
}

// New connects to Redis using the environment configuration. Connection
// failures are logged, not fatal.
func New() *Client {
	c := &Client{mock: make(map[string]mockEntry)}

	if config.GetEnv("REDIS_MOCK", "") == "true" {
		log.Println("Redis mock mode forced, using in-process cache")
		return c
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.GetEnv("REDIS_ADDR", "127.0.0.1:6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetEnvInt("REDIS_DB", 0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis unavailable (%v), using in-process cache", err)
		_ = rdb.Close()
		return c
	}

	c.rdb = rdb
	log.Println("Redis connection established")
	return c
}

// Redis exposes the raw client, or nil in mock mode. Used to build the
// redsync pool.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// GetJSON loads a cached JSON value into out. The second return is false on
// a miss.
func (c *Client) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, ok, err := c.get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON stores a JSON-encoded value with a TTL.
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if c.rdb != nil {
		return c.rdb.Set(ctx, key, string(raw), ttl).Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mock[key] = mockEntry{value: string(raw), expiresAt: time.Now().Add(ttl)}
	return nil
}

// Del removes keys from the cache. Errors are logged only; cache deletion is
// never allowed to fail a request.
func (c *Client) Del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	if c.rdb != nil {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			log.Printf("Failed to delete cache keys %v: %v", keys, err)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.mock, key)
	}
}

// DelPrefix removes every mock-mode key with the given prefix. With a real
// Redis the caller is expected to delete known keys instead of scanning.
func (c *Client) DelPrefix(ctx context.Context, prefix string) {
	if c.rdb != nil {
		iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			c.Del(ctx, iter.Val())
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.mock {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.mock, key)
		}
	}
}

// Close shuts down the Redis connection if one was established.
func (c *Client) Close() {
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			log.Printf("Failed to close Redis connection: %v", err)
		}
	}
}

func (c *Client) get(ctx context.Context, key string) (string, bool, error) {
	if c.rdb != nil {
		val, err := c.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return val, true, nil
	}

	c.mu.RLock()
	entry, ok := c.mock[key]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.mock, key)
		c.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key written by the CRM.
const DefaultNamespace = "leadcrm:"

// Client wraps a Redis connection and scopes keys to a namespace.
type Client struct {
	Redis     *redis.Client
	namespace string
}

// Option configures a Client.
type Option func(*redis.Options, *Client)

// WithNamespace replaces DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(_ *redis.Options, c *Client) { c.namespace = ns }
}

// WithTimeouts sets dial and read/write timeouts.
func WithTimeouts(dial, rw time.Duration) Option {
	return func(o *redis.Options, _ *Client) {
		o.DialTimeout = dial
		o.ReadTimeout = rw
		o.WriteTimeout = rw
	}
}

// NewClient connects to redisURL and verifies the connection with a ping.
func NewClient(redisURL string, opts ...Option) (*Client, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed parsing redis URL: %w", err)
	}

	c := &Client{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(ropts, c)
	}
	c.Redis = redis.NewClient(ropts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Redis.Ping(ctx).Err(); err != nil {
		c.Redis.Close()
		return nil, fmt.Errorf("failed connecting to redis: %w", err)
	}

	log.Println("✅ Redis connected")
	return c, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.Redis.Close()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.Redis.Ping(ctx).Err()
}

// Key returns key with the client's namespace applied.
func (c *Client) Key(key string) string {
	return c.namespace + key
}

// Mark stores a marker for key that disappears after ttl. A non-positive ttl
// is a no-op since the marker would already be expired.
func (c *Client) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.Redis.Set(ctx, c.Key(key), 1, ttl).Err()
}

// Marked reports whether a marker for key is still live.
func (c *Client) Marked(ctx context.Context, key string) (bool, error) {
	n, err := c.Redis.Exists(ctx, c.Key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed checking %s: %w", key, err)
	}
	return n > 0, nil
}

// TTL returns the remaining lifetime of key's marker.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.Redis.TTL(ctx, c.Key(key)).Result()
}

package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// RedisConfig configures the shared Redis tier.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisBackend is the shared (distributed) cache tier backed by Redis.
// All errors are swallowed: an unreachable Redis makes every Get a miss
// and every Set a no-op, which the tiered read path treats as "tier
// skipped", never a failure.
type RedisBackend struct {
	client *goredis.Client
}

// NewRedisBackend creates the backend and pings the server.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[cache] redis connected to %s", cfg.Addr)
	return &RedisBackend{client: client}, nil
}

// NewRedisBackendFromClient wraps an existing client (shared with the
// breadth reader and the gateway hub).
func NewRedisBackendFromClient(client *goredis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Client exposes the underlying client for PubSub consumers.
func (r *RedisBackend) Client() *goredis.Client { return r.client }

// Get returns the cached bytes, or a miss on any error including goredis.Nil.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil && ctx.Err() == nil {
			log.Printf("[cache] redis get %s: %v", key, err)
		}
		return nil, false
	}
	return data, true
}

// Set stores val with the given TTL. Best-effort.
func (r *RedisBackend) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, key, val, ttl).Err(); err != nil && ctx.Err() == nil {
		log.Printf("[cache] redis set %s: %v", key, err)
	}
}

// Close closes the Redis client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

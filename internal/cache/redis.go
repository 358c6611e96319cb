package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client for the fire ledger and the scan lock.
// Redis is optional: an empty URL returns nil and callers fall back to
// in-process guards. A configured but unreachable server is fatal.
func NewRedisClient(redisURL string) *redis.Client {
	if redisURL == "" {
		log.Println("⚠️ REDIS_URL is not set, scan guards are process-local")
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("❌ Could not parse Redis URL: %v", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Fatalf("❌ Could not connect to Redis: %v", err)
	}

	log.Println("✅ Successfully connected to Redis")
	return client
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the Redis compatible cache server.
// A failed ping is logged, not fatal: every cache consumer degrades.
func SetupCache(host string, port int, password string) *redis.Client {
	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       0, // use default DB
	})

	// Test the connection
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	pong, err := client.Ping(pingCtx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to cache at %s:%d: %v", host, port, err)
	} else {
		log.Infof("[Cache] Connected to cache: %s", pong)
	}
	return client
}

// GetClient returns the Redis client instance, nil before SetupCache.
func GetClient() *redis.Client {
	return client
}

// config/redis.go
package config

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

var redisClient *redis.Client

// ConnectRedis connects to the Redis instance backing the per-agent locks.
// Redis is optional: when the connection fails the caller gets nil and the
// lock layer falls back to in-process mutexes, which is only safe with a
// single instance of the service.
func ConnectRedis() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			log.Printf("Warning: invalid REDIS_DB %q, using database 0", raw)
		} else {
			db = parsed
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		// Lock acquisition polls in short intervals; keep the timeouts tight
		// so a dead Redis degrades fast instead of stalling withdrawals.
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MaxRetries:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis connection to %s failed: %v", addr, err)
		log.Println("Per-agent locking will fall back to in-process locks")
		return nil
	}

	log.Printf("Connected to Redis at %s", addr)
	redisClient = client
	return client
}

// GetRedisClient returns the connected client, or nil when Redis is down.
func GetRedisClient() *redis.Client {
	return redisClient
}

// CloseRedis closes the Redis connection on shutdown.
func CloseRedis() {
	if redisClient != nil {
		redisClient.Close()
	}
}

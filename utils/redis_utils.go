package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// GetRedisClient builds a client against the cache store specified by env.
// Read/write timeouts are set client-wide so no cache call can block a feed
// read indefinitely.
func GetRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password:     os.Getenv("REDIS_PASSWD"),
		DB:           0, // use default DB
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

package database

import (
	"context"
	"fmt"

	"marketplace-core/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis connects to Redis
// addr: "localhost:6379"
func ConnectRedis(addr string, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	logger.Info("Redis connected")
	return rdb, nil
}

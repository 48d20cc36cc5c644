package database

import (
	"context"
	"fmt"
	"log"

	"lms_backend/internal/config"

	"github.com/go-redis/redis/v8"
)

// InitRedis connects the client backing the test-view cache and fails fast
// when the server is unreachable.
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     50,
		MinIdleConns: 5,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}

	log.Println("Redis connection established")
	return rdb, nil
}

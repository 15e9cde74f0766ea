package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"llm-chat-go/pkg/log"
)

// NewRedis 创建 Redis 客户端并做一次连通性检查。
func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("Redis client connected successfully")
	return rdb, nil
}

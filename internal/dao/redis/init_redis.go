// Package redis 提供 Redis 缓存操作的封装
// 本文件仅包含 Redis 连接初始化逻辑
package redis

import (
	"context"
	"strconv"
	"time"

	"realtime_chat_server/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Init 根据配置创建 Redis 客户端与缓存服务
// 未启用 Redis 时返回 nil，调用方按无缓存处理
func Init(conf *config.RedisConfig) *RedisCache {
	if !conf.Enabled {
		zap.L().Info("Redis disabled, presence cache and rate limit are off")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         conf.Host + ":" + strconv.Itoa(conf.Port),
		Password:     conf.Password,
		DB:           conf.Db,
		PoolSize:     50, // 最大连接数
		MinIdleConns: 15, // 最小空闲连接，与 Worker 数量匹配
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		zap.L().Fatal("redis ping failed", zap.Error(err))
	}

	return NewRedisCache(client, 15, 3000)
}

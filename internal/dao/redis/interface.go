// Package redis 定义缓存服务接口
// Service 层依赖此接口而非具体 Redis 实现，未启用 Redis 时传 nil
package redis

import (
	"context"
	"strings"
	"time"
)

// CacheService 缓存服务接口
type CacheService interface {
	// Set 设置键值对并指定过期时间
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Get 获取键对应的值（键不存在返回空字符串和 nil）
	Get(ctx context.Context, key string) (string, error)
	// MGet 批量获取，结果与 keys 一一对应，不存在的键为空字符串
	MGet(ctx context.Context, keys ...string) ([]string, error)
	// Delete 删除键（如果存在）
	Delete(ctx context.Context, key string) error
	// SetIfNewer 仅当缓存中没有更新的版本时写入，值以 "<version>|<value>" 保存
	// 乱序到达的旧写入会被丢弃，返回是否写入
	SetIfNewer(ctx context.Context, key string, version int64, value string, ttl time.Duration) (bool, error)
}

// AsyncCacheService 异步缓存服务接口
// 提供异步任务提交能力，用于非阻塞缓存更新
type AsyncCacheService interface {
	CacheService
	// SubmitTask 提交异步缓存任务
	SubmitTask(action func())
}

// RateLimiter 固定窗口计数限流
type RateLimiter interface {
	// Allow 在窗口内计数加一，超过 limit 返回 false
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SplitVersioned 去掉 SetIfNewer 写入的版本前缀
func SplitVersioned(raw string) (string, bool) {
	_, value, ok := strings.Cut(raw, "|")
	return value, ok
}

// Package redis 提供 CacheService 接口的 Redis 实现
package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"realtime_chat_server/pkg/errorx"
)

// RedisCache Redis 缓存实现
// 同时实现 CacheService、AsyncCacheService 和 RateLimiter，
// 各模块按需声明依赖最小的接口
type RedisCache struct {
	client    *redis.Client
	taskChan  chan func()
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRedisCache 创建 Redis 缓存实例并启动 workerNum 个异步任务 Worker
func NewRedisCache(client *redis.Client, workerNum, taskChanSize int) *RedisCache {
	rc := &RedisCache{
		client:   client,
		taskChan: make(chan func(), taskChanSize),
	}
	for i := 0; i < workerNum; i++ {
		rc.wg.Add(1)
		go func() {
			defer rc.wg.Done()
			rc.startWorker()
		}()
	}
	zap.L().Info("Redis Cache Workers started", zap.Int("workers", workerNum), zap.Int("buffer", taskChanSize))
	return rc
}

// startWorker 单个 Worker 消费循环，任务 panic 不影响后续任务
func (r *RedisCache) startWorker() {
	for task := range r.taskChan {
		r.runTask(task)
	}
}

func (r *RedisCache) runTask(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("Redis Worker panic", zap.Any("recover", rec))
		}
	}()
	if task != nil {
		task()
	}
}

// Set 设置键值对并指定过期时间
func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "redis set key %s", key)
	}
	return nil
}

// Get 获取键对应的值（键不存在返回空字符串和 nil）
func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", errorx.Wrapf(err, errorx.CodeCacheError, "redis get key %s", key)
	}
	return value, nil
}

// MGet 批量获取
func (r *RedisCache) MGet(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeCacheError, "redis mget %d keys", len(keys))
	}
	out := make([]string, len(values))
	for i, v := range values {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out, nil
}

// Delete 删除键（如果存在）
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Unlink(ctx, key).Err(); err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "redis unlink key %s", key)
	}
	return nil
}

// setIfNewerScript 比较版本后写入，KEYS[1]=key ARGV=version, value, ttl(ms)
var setIfNewerScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local v = tonumber(string.match(cur, '^(%-?%d+)|'))
	if v and v > tonumber(ARGV[1]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1] .. '|' .. ARGV[2], 'PX', ARGV[3])
return 1
`)

// SetIfNewer 版本号不小于缓存中的版本时写入
func (r *RedisCache) SetIfNewer(ctx context.Context, key string, version int64, value string, ttl time.Duration) (bool, error) {
	n, err := setIfNewerScript.Run(ctx, r.client, []string{key}, version, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, errorx.Wrapf(err, errorx.CodeCacheError, "redis set-if-newer key %s", key)
	}
	return n == 1, nil
}

// Allow 固定窗口限流：INCR 计数，首次计数时设置过期
func (r *RedisCache) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, errorx.Wrapf(err, errorx.CodeCacheError, "redis incr key %s", key)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, errorx.Wrapf(err, errorx.CodeCacheError, "redis expire key %s", key)
		}
	}
	return count <= int64(limit), nil
}

// SubmitTask 提交异步缓存任务，队列满时降级为同步执行
func (r *RedisCache) SubmitTask(action func()) {
	select {
	case r.taskChan <- action:
	default:
		zap.L().Warn("Redis cache task channel full, executing synchronously")
		r.runTask(action)
	}
}

// Close 停止接收任务，等待已提交的任务执行完毕后关闭连接
func (r *RedisCache) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.taskChan)
		r.wg.Wait()
		err = r.client.Close()
	})
	return err
}

var (
	_ AsyncCacheService = (*RedisCache)(nil)
	_ RateLimiter       = (*RedisCache)(nil)
)

// Package presence 维护用户在线状态
// 数据库是状态的唯一来源，Redis 只做读缓存，状态变化后异步写回
package presence

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"realtime_chat_server/internal/config"
	"realtime_chat_server/internal/dao/mysql/repository"
	myredis "realtime_chat_server/internal/dao/redis"
	"realtime_chat_server/internal/dto/respond"
	"realtime_chat_server/internal/model"
	"realtime_chat_server/pkg/constants"
	"realtime_chat_server/pkg/errorx"

	"go.uber.org/zap"
)

// Broadcaster 推送到所有在线连接
type Broadcaster interface {
	ToAll(ctx context.Context, event string, payload any) error
}

// Options 在线状态参数
type Options struct {
	StaleAfter    time.Duration
	SweepInterval time.Duration
	// TouchInterval 活跃刷新的最小间隔
	TouchInterval time.Duration
	// Cache 为 nil 时只读写数据库
	Cache myredis.AsyncCacheService
}

// OptionsFromConfig 从全局配置构造参数
func OptionsFromConfig(conf *config.Config) Options {
	return Options{
		StaleAfter:    conf.StaleAfter,
		SweepInterval: conf.SweepInterval,
		TouchInterval: constants.PRESENCE_TOUCH,
	}
}

// Tracker 在线状态机：connect → online，显式修改只在非离线时生效，
// 断开连接或超时扫描 → offline
type Tracker struct {
	repo repository.PresenceRepository
	bus  Broadcaster
	opts Options

	mu      sync.Mutex
	touched map[string]time.Time

	now func() time.Time
}

// NewTracker 创建在线状态实例
func NewTracker(repo repository.PresenceRepository, bus Broadcaster, opts Options) *Tracker {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 5 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.TouchInterval <= 0 {
		opts.TouchInterval = constants.PRESENCE_TOUCH
	}
	return &Tracker{
		repo:    repo,
		bus:     bus,
		opts:    opts,
		touched: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (t *Tracker) clock() time.Time {
	return t.now().UTC().Truncate(time.Millisecond)
}

// Connect 新连接建立，无论之前是什么状态都置为 online
func (t *Tracker) Connect(ctx context.Context, userId, connectionId, device string) (*respond.PresenceRespond, error) {
	now := t.clock()
	record := &model.PresenceRecord{
		UserId:       userId,
		Status:       model.StatusOnline,
		LastSeenAt:   nullTime(now),
		ConnectionId: connectionId,
		Device:       device,
		UpdatedAt:    now,
	}
	if err := t.repo.Upsert(ctx, record); err != nil {
		zap.L().Error("presence connect failed", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}
	t.markTouched(userId, now)
	return t.changed(ctx, userId, model.StatusOnline, now), nil
}

// UpdateStatus 客户端显式切换 online/away/busy，离线用户不允许切换
func (t *Tracker) UpdateStatus(ctx context.Context, userId, status string) (*respond.PresenceRespond, error) {
	if status == model.StatusOffline || !model.ValidStatus(status) {
		return nil, errorx.Validation("不支持的在线状态: %s", status)
	}
	now := t.clock()
	n, err := t.repo.UpdateStatusIfOnline(ctx, userId, status, now)
	if err != nil {
		zap.L().Error("presence update failed", zap.String("user_id", userId), zap.String("status", status), zap.Error(err))
		return nil, err
	}
	if n == 0 {
		return nil, errorx.Validation("离线状态下不能修改在线状态")
	}
	t.markTouched(userId, now)
	return t.changed(ctx, userId, status, now), nil
}

// Disconnect 置为离线，已经离线时不广播
func (t *Tracker) Disconnect(ctx context.Context, userId string) error {
	t.mu.Lock()
	delete(t.touched, userId)
	t.mu.Unlock()

	now := t.clock()
	n, err := t.repo.SetOffline(ctx, userId, now)
	if err != nil {
		zap.L().Error("presence disconnect failed", zap.String("user_id", userId), zap.Error(err))
		return err
	}
	if n > 0 {
		t.changed(ctx, userId, model.StatusOffline, now)
	}
	return nil
}

// Touch 收到客户端活动时刷新 lastSeenAt，不改变状态也不广播
// 同一用户在 TouchInterval 内只写一次数据库
func (t *Tracker) Touch(ctx context.Context, userId string) {
	now := t.clock()
	t.mu.Lock()
	last, ok := t.touched[userId]
	if ok && now.Sub(last) < t.opts.TouchInterval {
		t.mu.Unlock()
		return
	}
	t.touched[userId] = now
	t.mu.Unlock()

	if err := t.repo.Touch(ctx, userId, now); err != nil {
		zap.L().Warn("presence touch failed", zap.String("user_id", userId), zap.Error(err))
	}
}

func (t *Tracker) markTouched(userId string, at time.Time) {
	t.mu.Lock()
	t.touched[userId] = at
	t.mu.Unlock()
}

// GetPresence 每个请求的用户返回一条，没有记录的用户视为离线
func (t *Tracker) GetPresence(ctx context.Context, userIds []string) ([]respond.PresenceRespond, error) {
	out := make([]respond.PresenceRespond, len(userIds))
	found := make(map[string]respond.PresenceRespond, len(userIds))
	missing := t.fromCache(ctx, userIds, found)

	if len(missing) > 0 {
		records, err := t.repo.FindByUserIds(ctx, missing)
		if err != nil {
			zap.L().Error("load presence failed", zap.Int("count", len(missing)), zap.Error(err))
			return nil, err
		}
		for _, r := range records {
			p := toRespond(r)
			found[r.UserId] = p
			t.cacheAsync(p)
		}
	}

	for i, id := range userIds {
		if p, ok := found[id]; ok {
			out[i] = p
			continue
		}
		out[i] = respond.PresenceRespond{UserId: id, Status: model.StatusOffline}
	}
	return out, nil
}

// fromCache 读缓存命中的写入 found，返回未命中的用户
func (t *Tracker) fromCache(ctx context.Context, userIds []string, found map[string]respond.PresenceRespond) []string {
	if t.opts.Cache == nil || len(userIds) == 0 {
		return uniq(userIds)
	}
	keys := make([]string, len(userIds))
	for i, id := range userIds {
		keys[i] = constants.PresenceCacheKey(id)
	}
	values, err := t.opts.Cache.MGet(ctx, keys...)
	if err != nil {
		zap.L().Warn("presence cache unavailable", zap.Error(err))
		return uniq(userIds)
	}
	var missing []string
	for i, id := range userIds {
		if _, ok := found[id]; ok {
			continue
		}
		if i < len(values) {
			if raw, ok := myredis.SplitVersioned(values[i]); ok {
				var p respond.PresenceRespond
				if err := json.Unmarshal([]byte(raw), &p); err == nil {
					found[id] = p
					continue
				}
			}
		}
		missing = append(missing, id)
	}
	return uniq(missing)
}

// Sweep 把超过 StaleAfter 没有活动的用户置为离线，返回处理的人数
// 置离线是带条件的更新，期间重新连接或有活动的用户不受影响
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	now := t.clock()
	cutoff := now.Add(-t.opts.StaleAfter)
	stale, err := t.repo.FindStale(ctx, cutoff)
	if err != nil {
		zap.L().Error("find stale presence failed", zap.Error(err))
		return 0, err
	}
	swept := 0
	for _, r := range stale {
		n, err := t.repo.SetOfflineIfStale(ctx, r.UserId, cutoff, now)
		if err != nil {
			zap.L().Error("sweep presence failed", zap.String("user_id", r.UserId), zap.Error(err))
			continue
		}
		if n == 0 {
			continue
		}
		swept++
		t.mu.Lock()
		delete(t.touched, r.UserId)
		t.mu.Unlock()
		t.changed(ctx, r.UserId, model.StatusOffline, now)
	}
	if swept > 0 {
		zap.L().Info("presence sweep", zap.Int("offline", swept))
	}
	return swept, nil
}

// Run 按 SweepInterval 定时扫描，ctx 取消后退出
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = t.Sweep(ctx)
		}
	}
}

// changed 状态变化后写缓存并全局广播
func (t *Tracker) changed(ctx context.Context, userId, status string, at time.Time) *respond.PresenceRespond {
	seen := at
	p := &respond.PresenceRespond{UserId: userId, Status: status, LastSeenAt: &seen}
	t.cacheAsync(*p)
	if t.bus != nil {
		if err := t.bus.ToAll(context.WithoutCancel(ctx), constants.EVENT_PRESENCE_UPDATE, p); err != nil {
			zap.L().Error("broadcast presence failed", zap.String("user_id", userId), zap.Error(err))
		}
	}
	return p
}

// cacheAsync 异步写回缓存，以 lastSeenAt 作为版本，乱序写入不会覆盖更新的状态
func (t *Tracker) cacheAsync(p respond.PresenceRespond) {
	if t.opts.Cache == nil {
		return
	}
	var version int64
	if p.LastSeenAt != nil {
		version = p.LastSeenAt.UnixMilli()
	}
	cache := t.opts.Cache
	cache.SubmitTask(func() {
		data, err := json.Marshal(p)
		if err != nil {
			zap.L().Error("json marshal error", zap.Error(err))
			return
		}
		if _, err := cache.SetIfNewer(context.Background(), constants.PresenceCacheKey(p.UserId), version, string(data), constants.PRESENCE_TTL); err != nil {
			zap.L().Warn("presence cache set failed", zap.String("user_id", p.UserId), zap.Error(err))
		}
	})
}

func toRespond(r model.PresenceRecord) respond.PresenceRespond {
	p := respond.PresenceRespond{UserId: r.UserId, Status: r.Status}
	if r.LastSeenAt.Valid {
		v := r.LastSeenAt.Time.UTC()
		p.LastSeenAt = &v
	}
	return p
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

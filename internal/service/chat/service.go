// Package chat 实现会话与消息的核心业务
// 所有写操作先经过 access.Guard，多记录写入放在同一事务中，
// 事务提交之后才通过 Broadcaster 推送事件，存储失败时不会产生任何推送
package chat

import (
	"context"
	"time"

	"realtime_chat_server/internal/config"
	"realtime_chat_server/internal/dao/mysql/repository"
	myredis "realtime_chat_server/internal/dao/redis"
	"realtime_chat_server/internal/model"
	"realtime_chat_server/internal/service/access"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Broadcaster 推送事件到广播分组
// 由 websocket.Dispatcher 实现，测试中可替换为记录器
type Broadcaster interface {
	// ToGroup 推送到分组内所有连接，excludeUserId 非空时跳过该用户的连接
	ToGroup(ctx context.Context, group, event string, payload any, excludeUserId string) error
	// Evict 把用户的所有连接移出分组（退出或被移出会话后不再接收该会话的事件）
	Evict(ctx context.Context, group, userId string) error
}

// Options 业务参数
type Options struct {
	ReadOnFetch         bool
	DefaultPageSize     int
	MaxPageSize         int
	MaxContentLength    int
	MaxSearchResults    int
	StagedAttachmentTTL time.Duration
	MessageRateLimit    int
	MessageRateWindow   time.Duration
	MaxFileSize         int64

	// Limiter 为 nil 时不限流
	Limiter myredis.RateLimiter
	// Stash 为 nil 时不支持本地上传，只能登记外部存储的附件
	Stash FileStash
}

// OptionsFromConfig 从全局配置构造业务参数
func OptionsFromConfig(conf *config.Config) Options {
	return Options{
		ReadOnFetch:         !conf.DisableReadOnFetch,
		DefaultPageSize:     conf.DefaultPageSize,
		MaxPageSize:         conf.MaxPageSize,
		MaxContentLength:    conf.MaxContentLength,
		MaxSearchResults:    conf.MaxSearchResults,
		StagedAttachmentTTL: conf.StagedAttachmentTTL,
		MessageRateLimit:    conf.MessageRateLimit,
		MessageRateWindow:   conf.MessageRateWindow,
		MaxFileSize:         conf.FileMaxSize,
	}
}

// Service 会话与消息业务
type Service struct {
	repos *repository.Repositories
	guard *access.Guard
	bus   Broadcaster
	opts  Options

	// direct 同一对用户的并发 CreateDirect 在进程内合并为一次
	direct singleflight.Group

	now func() time.Time
}

// NewService 创建会话与消息业务实例
func NewService(repos *repository.Repositories, guard *access.Guard, bus Broadcaster, opts Options) *Service {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 50
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = 4000
	}
	if opts.MaxSearchResults <= 0 {
		opts.MaxSearchResults = 50
	}
	return &Service{
		repos: repos,
		guard: guard,
		bus:   bus,
		opts:  opts,
		now:   time.Now,
	}
}

// clock 统一使用 UTC 毫秒精度，MySQL datetime(3) 与内存中的值一致
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// publish 事务提交后推送，推送失败只记录日志
// 调用方连接断开不应影响已经落库的事件
func (s *Service) publish(ctx context.Context, group, event string, payload any, excludeUserId string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.ToGroup(context.WithoutCancel(ctx), group, event, payload, excludeUserId); err != nil {
		zap.L().Error("broadcast failed",
			zap.String("group", group),
			zap.String("event", event),
			zap.Error(err))
	}
}

func (s *Service) evict(ctx context.Context, group, userId string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Evict(context.WithoutCancel(ctx), group, userId); err != nil {
		zap.L().Error("evict from group failed",
			zap.String("group", group),
			zap.String("user_id", userId),
			zap.Error(err))
	}
}

// newParticipant 构造激活成员记录
func newParticipant(conversationId, userId, role string, at time.Time) model.ConversationParticipant {
	return model.ConversationParticipant{
		ConversationId: conversationId,
		UserId:         userId,
		Role:           role,
		ActiveKey:      nullString(model.ActiveKeyOf(conversationId, userId)),
		JoinedAt:       at,
	}
}

// dedup 去重并去掉空串和 skip，保持原有顺序
func dedup(ids []string, skip string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == skip {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// pageSize 把请求的条数限制在 [1, max] 内，未传时用默认值
func pageSize(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}

// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"context"
	"time"

	"realtime_chat_server/internal/dao/mysql/repository"
	"realtime_chat_server/internal/service/access"
	"realtime_chat_server/internal/service/chat"
	"realtime_chat_server/internal/service/presence"
	"realtime_chat_server/internal/service/typing"

	"go.uber.org/zap"
)

// Broadcaster 业务层需要的全部推送能力，由 websocket.Dispatcher 实现
type Broadcaster interface {
	chat.Broadcaster
	presence.Broadcaster
	typing.Broadcaster
}

// Deps 创建 Services 所需的依赖
type Deps struct {
	Repos         *repository.Repositories
	Bus           Broadcaster
	Chat          chat.Options
	Presence      presence.Options
	TypingTimeout time.Duration
	// ReclaimInterval 暂存附件回收间隔，0 表示不回收
	ReclaimInterval time.Duration
}

// Services 聚合所有 Service 实例
// Handler 层和网关通过接口字段访问，后台任务由 Run 启动
type Services struct {
	Access       AccessService
	Conversation ConversationService
	Message      MessageService
	Presence     PresenceService
	Typing       TypingService

	chat            *chat.Service
	tracker         *presence.Tracker
	typing          *typing.Coordinator
	reclaimInterval time.Duration
}

// NewServices 创建并注入所有 Service 实例
func NewServices(deps Deps) *Services {
	guard := access.NewGuard(deps.Repos.Participant)
	chatSvc := chat.NewService(deps.Repos, guard, deps.Bus, deps.Chat)
	tracker := presence.NewTracker(deps.Repos.Presence, deps.Bus, deps.Presence)
	coordinator := typing.NewCoordinator(deps.Bus, deps.TypingTimeout)

	return &Services{
		Access:          guard,
		Conversation:    chatSvc,
		Message:         chatSvc,
		Presence:        tracker,
		Typing:          coordinator,
		chat:            chatSvc,
		tracker:         tracker,
		typing:          coordinator,
		reclaimInterval: deps.ReclaimInterval,
	}
}

// Run 运行后台任务：在线状态过期扫描和暂存附件回收，ctx 取消后返回
func (s *Services) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.tracker.Run(ctx)
	}()

	if s.reclaimInterval > 0 {
		ticker := time.NewTicker(s.reclaimInterval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				n, err := s.chat.ReclaimStagedAttachments(ctx)
				if err != nil {
					zap.L().Error("reclaim staged attachments failed", zap.Error(err))
					continue
				}
				if n > 0 {
					zap.L().Info("reclaimed staged attachments", zap.Int("count", n))
				}
			}
		}
	}
	<-done
}

// Close 停止进程内的输入状态计时器
func (s *Services) Close() {
	s.typing.Close()
}

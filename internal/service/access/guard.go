// Package access 实现会话访问控制
// 所有会话内的读写操作都先经过 Guard，检查失败时不产生任何副作用
package access

import (
	"context"

	"realtime_chat_server/internal/dao/mysql/repository"
	"realtime_chat_server/internal/model"
	"realtime_chat_server/pkg/errorx"

	"go.uber.org/zap"
)

// Guard 基于成员表判断访问权限
type Guard struct {
	participants repository.ParticipantRepository
}

// NewGuard 创建访问控制实例
func NewGuard(participants repository.ParticipantRepository) *Guard {
	return &Guard{participants: participants}
}

// membership 查找激活成员记录，不是成员时返回 nil, nil
func (g *Guard) membership(ctx context.Context, userId, conversationId string) (*model.ConversationParticipant, error) {
	if userId == "" || conversationId == "" {
		return nil, nil
	}
	p, err := g.participants.FindActive(ctx, conversationId, userId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, nil
		}
		zap.L().Error("access check failed",
			zap.String("user_id", userId),
			zap.String("conversation_id", conversationId),
			zap.Error(err))
		return nil, err
	}
	return p, nil
}

// CanAccess 用户是否为会话的激活成员
func (g *Guard) CanAccess(ctx context.Context, userId, conversationId string) (bool, error) {
	p, err := g.membership(ctx, userId, conversationId)
	return p != nil, err
}

// IsAdmin 用户是否为会话的激活管理员
func (g *Guard) IsAdmin(ctx context.Context, userId, conversationId string) (bool, error) {
	p, err := g.membership(ctx, userId, conversationId)
	return p != nil && p.Role == model.RoleAdmin, err
}

// RequireAccess 要求用户为激活成员，否则返回 CodeAccessDenied
// 通过时返回成员记录，调用方可直接使用 LastReadAt 等字段
func (g *Guard) RequireAccess(ctx context.Context, userId, conversationId string) (*model.ConversationParticipant, error) {
	p, err := g.membership(ctx, userId, conversationId)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errorx.ErrAccessDenied
	}
	return p, nil
}

// RequireAdmin 要求用户为激活管理员，否则返回 CodeAccessDenied
func (g *Guard) RequireAdmin(ctx context.Context, userId, conversationId string) (*model.ConversationParticipant, error) {
	p, err := g.RequireAccess(ctx, userId, conversationId)
	if err != nil {
		return nil, err
	}
	if p.Role != model.RoleAdmin {
		return nil, errorx.ErrAccessDenied
	}
	return p, nil
}

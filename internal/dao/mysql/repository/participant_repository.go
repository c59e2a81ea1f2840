// Package repository 提供数据访问层的具体实现
// 本文件实现 ParticipantRepository 接口
package repository

import (
	"context"
	"time"

	"realtime_chat_server/internal/model"

	"gorm.io/gorm"
)

type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository 创建 ParticipantRepository 实例
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) CreateBatch(ctx context.Context, participants []model.ConversationParticipant) error {
	if len(participants) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&participants).Error; err != nil {
		return wrapDBErrorf(err, "添加会话成员 conversation=%s", participants[0].ConversationId)
	}
	return nil
}

func (r *participantRepository) FindActive(ctx context.Context, conversationId, userId string) (*model.ConversationParticipant, error) {
	var p model.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ? AND left_at IS NULL", conversationId, userId).
		First(&p).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询会话成员 conversation=%s user=%s", conversationId, userId)
	}
	return &p, nil
}

func (r *participantRepository) FindActiveByConversation(ctx context.Context, conversationId string) ([]model.ConversationParticipant, error) {
	var ps []model.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND left_at IS NULL", conversationId).
		Order("joined_at ASC").Order("id ASC").
		Find(&ps).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询会话成员列表 conversation=%s", conversationId)
	}
	return ps, nil
}

func (r *participantRepository) FindActiveByUser(ctx context.Context, userId string) ([]model.ConversationParticipant, error) {
	var ps []model.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND left_at IS NULL", userId).
		Find(&ps).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询用户所在会话 user=%s", userId)
	}
	return ps, nil
}

func (r *participantRepository) CountActive(ctx context.Context, conversationId string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND left_at IS NULL", conversationId).
		Count(&count).Error
	if err != nil {
		return 0, wrapDBErrorf(err, "统计会话成员 conversation=%s", conversationId)
	}
	return count, nil
}

func (r *participantRepository) MarkLeft(ctx context.Context, conversationId, userId string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ? AND left_at IS NULL", conversationId, userId).
		Updates(map[string]any{"left_at": at, "active_key": nil})
	if res.Error != nil {
		return 0, wrapDBErrorf(res.Error, "退出会话 conversation=%s user=%s", conversationId, userId)
	}
	return res.RowsAffected, nil
}

func (r *participantRepository) UpdateRole(ctx context.Context, id uint, role string) error {
	err := r.db.WithContext(ctx).Model(&model.ConversationParticipant{}).
		Where("id = ?", id).
		Update("role", role).Error
	return wrapDBErrorf(err, "修改成员角色 id=%d", id)
}

func (r *participantRepository) AdvanceLastRead(ctx context.Context, conversationId, userId string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ? AND left_at IS NULL", conversationId, userId).
		Where("last_read_at IS NULL OR last_read_at < ?", at).
		Update("last_read_at", at).Error
	return wrapDBErrorf(err, "推进已读位置 conversation=%s user=%s", conversationId, userId)
}

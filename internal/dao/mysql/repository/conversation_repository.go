// Package repository 提供数据访问层的具体实现
// 本文件实现 ConversationRepository 接口
package repository

import (
	"context"
	"time"

	"realtime_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建 ConversationRepository 实例
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create 创建会话，单聊去重键冲突时错误可用 IsDuplicateKey 识别
func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return wrapDBErrorf(err, "创建会话 uuid=%s", conv.Uuid)
	}
	return nil
}

func (r *conversationRepository) FindByUuid(ctx context.Context, uuid string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&conv).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 uuid=%s", uuid)
	}
	return &conv, nil
}

func (r *conversationRepository) LockByUuid(ctx context.Context, uuid string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uuid = ?", uuid).
		First(&conv).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "锁定会话 uuid=%s", uuid)
	}
	return &conv, nil
}

func (r *conversationRepository) FindByUuids(ctx context.Context, uuids []string) ([]model.Conversation, error) {
	var convs []model.Conversation
	if len(uuids) == 0 {
		return convs, nil
	}
	if err := r.db.WithContext(ctx).Where("uuid IN ?", uuids).Find(&convs).Error; err != nil {
		return nil, wrapDBError(err, "批量查询会话")
	}
	return convs, nil
}

func (r *conversationRepository) FindActiveDirect(ctx context.Context, directKey string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where("direct_key = ? AND is_active = ?", directKey, true).
		First(&conv).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询单聊 direct_key=%s", directKey)
	}
	return &conv, nil
}

func (r *conversationRepository) TouchLastMessageAt(ctx context.Context, uuid string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("uuid = ? AND (last_message_at IS NULL OR last_message_at < ?)", uuid, at).
		Update("last_message_at", at).Error
	return wrapDBErrorf(err, "更新最后消息时间 uuid=%s", uuid)
}

func (r *conversationRepository) UpdateInfo(ctx context.Context, uuid string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&model.Conversation{}).Where("uuid = ?", uuid).Updates(updates).Error
	return wrapDBErrorf(err, "更新会话信息 uuid=%s", uuid)
}

func (r *conversationRepository) Deactivate(ctx context.Context, uuid string) error {
	err := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("uuid = ?", uuid).
		Updates(map[string]any{"is_active": false, "direct_key": nil}).Error
	return wrapDBErrorf(err, "停用会话 uuid=%s", uuid)
}

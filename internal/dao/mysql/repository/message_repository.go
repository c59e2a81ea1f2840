// Package repository 提供数据访问层的具体实现
// 本文件实现 MessageRepository 接口
package repository

import (
	"context"
	"time"

	"realtime_chat_server/internal/model"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建 MessageRepository 实例
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return wrapDBErrorf(err, "保存消息 conversation=%s", msg.ConversationId)
	}
	return nil
}

func (r *messageRepository) FindByUuid(ctx context.Context, uuid string) (*model.Message, error) {
	var msg model.Message
	if err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&msg).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 uuid=%s", uuid)
	}
	return &msg, nil
}

func (r *messageRepository) FindByUuids(ctx context.Context, uuids []string) ([]model.Message, error) {
	var msgs []model.Message
	if len(uuids) == 0 {
		return msgs, nil
	}
	if err := r.db.WithContext(ctx).Where("uuid IN ?", uuids).Find(&msgs).Error; err != nil {
		return nil, wrapDBError(err, "批量查询消息")
	}
	return msgs, nil
}

// FindPage 以 (created_at, uuid) 为游标倒序翻页
func (r *messageRepository) FindPage(ctx context.Context, conversationId string, before *model.Message, limit int) ([]model.Message, error) {
	var msgs []model.Message
	query := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = ?", conversationId, false)
	if before != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND uuid < ?)",
			before.CreatedAt, before.CreatedAt, before.Uuid)
	}
	err := query.Order("created_at DESC").Order("uuid DESC").Limit(limit).Find(&msgs).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询历史消息 conversation=%s", conversationId)
	}
	return msgs, nil
}

func (r *messageRepository) Search(ctx context.Context, userId, keyword string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("message.*").
		Joins("JOIN conversation_participant AS p ON p.conversation_id = message.conversation_id AND p.user_id = ? AND p.left_at IS NULL", userId).
		Where("message.is_deleted = ?", false).
		Where("LOWER(message.content) LIKE ? ESCAPE '!'", likePattern(keyword)).
		Order("message.created_at DESC").Order("message.uuid DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "搜索消息 user=%s", userId)
	}
	return msgs, nil
}

func (r *messageRepository) UpdateContent(ctx context.Context, uuid, content string, editedAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("uuid = ?", uuid).
		Updates(map[string]any{"content": content, "is_edited": true, "edited_at": editedAt}).Error
	return wrapDBErrorf(err, "编辑消息 uuid=%s", uuid)
}

func (r *messageRepository) SoftDelete(ctx context.Context, uuid string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("uuid = ? AND is_deleted = ?", uuid, false).
		Updates(map[string]any{"is_deleted": true, "deleted_at": at}).Error
	return wrapDBErrorf(err, "删除消息 uuid=%s", uuid)
}

// CountUnread 未读 = 他人发送、未删除、且晚于成员已读位置（未读过则从头算）
func (r *messageRepository) CountUnread(ctx context.Context, userId string) ([]UnreadCount, error) {
	var rows []UnreadCount
	err := r.db.WithContext(ctx).Table("message AS m").
		Select("m.conversation_id AS conversation_id, COUNT(*) AS unread").
		Joins("JOIN conversation_participant AS p ON p.conversation_id = m.conversation_id").
		Where("p.user_id = ? AND p.left_at IS NULL", userId).
		Where("m.sender_id <> ? AND m.is_deleted = ?", userId, false).
		Where("(p.last_read_at IS NULL OR m.created_at > p.last_read_at)").
		Group("m.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "统计未读 user=%s", userId)
	}
	return rows, nil
}

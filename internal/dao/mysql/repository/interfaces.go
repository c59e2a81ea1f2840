// Package repository 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
// 所有 Repository 接口在此文件定义，具体实现在各自的文件中
package repository

import (
	"context"
	"time"

	"realtime_chat_server/internal/model"

	"gorm.io/gorm"
)

// ConversationRepository 会话数据访问接口
type ConversationRepository interface {
	// Create 创建会话
	Create(ctx context.Context, conv *model.Conversation) error
	// FindByUuid 根据 uuid 查找会话（包括已停用的）
	FindByUuid(ctx context.Context, uuid string) (*model.Conversation, error)
	// LockByUuid 在事务内读取会话并加行锁，同一会话的成员变更串行执行
	LockByUuid(ctx context.Context, uuid string) (*model.Conversation, error)
	// FindByUuids 批量查找会话
	FindByUuids(ctx context.Context, uuids []string) ([]model.Conversation, error)
	// FindActiveDirect 根据单聊去重键查找激活中的单聊
	FindActiveDirect(ctx context.Context, directKey string) (*model.Conversation, error)
	// TouchLastMessageAt 推进最后消息时间，只前进不后退
	TouchLastMessageAt(ctx context.Context, uuid string, at time.Time) error
	// UpdateInfo 更新群名称/描述
	UpdateInfo(ctx context.Context, uuid string, updates map[string]any) error
	// Deactivate 软停用会话并释放单聊去重键
	Deactivate(ctx context.Context, uuid string) error
}

// ParticipantRepository 会话成员数据访问接口
type ParticipantRepository interface {
	// CreateBatch 批量添加成员
	CreateBatch(ctx context.Context, participants []model.ConversationParticipant) error
	// FindActive 查找用户在会话中的激活成员记录，不存在返回 CodeNotFound
	FindActive(ctx context.Context, conversationId, userId string) (*model.ConversationParticipant, error)
	// FindActiveByConversation 查找会话的全部激活成员，按加入时间排序
	FindActiveByConversation(ctx context.Context, conversationId string) ([]model.ConversationParticipant, error)
	// FindActiveByUser 查找用户所有激活的成员记录
	FindActiveByUser(ctx context.Context, userId string) ([]model.ConversationParticipant, error)
	// CountActive 统计会话激活成员数
	CountActive(ctx context.Context, conversationId string) (int64, error)
	// MarkLeft 标记退出，返回受影响行数（0 表示本来就不在会话中）
	MarkLeft(ctx context.Context, conversationId, userId string, at time.Time) (int64, error)
	// UpdateRole 修改成员角色
	UpdateRole(ctx context.Context, id uint, role string) error
	// AdvanceLastRead 推进已读位置，只前进不后退
	AdvanceLastRead(ctx context.Context, conversationId, userId string, at time.Time) error
}

// UnreadCount 单个会话的未读数
type UnreadCount struct {
	ConversationId string `gorm:"column:conversation_id"`
	Unread         int64  `gorm:"column:unread"`
}

// MessageRepository 消息数据访问接口
type MessageRepository interface {
	// Create 保存消息
	Create(ctx context.Context, msg *model.Message) error
	// FindByUuid 根据 uuid 查找消息（包括已删除的）
	FindByUuid(ctx context.Context, uuid string) (*model.Message, error)
	// FindByUuids 批量查找消息（包括已删除的）
	FindByUuids(ctx context.Context, uuids []string) ([]model.Message, error)
	// FindPage 按时间倒序取未删除消息，before 非空时只取严格早于它的消息
	FindPage(ctx context.Context, conversationId string, before *model.Message, limit int) ([]model.Message, error)
	// Search 在用户的激活会话中做不区分大小写的子串搜索
	Search(ctx context.Context, userId, keyword string, limit int) ([]model.Message, error)
	// UpdateContent 修改消息内容并标记已编辑
	UpdateContent(ctx context.Context, uuid, content string, editedAt time.Time) error
	// SoftDelete 软删除消息
	SoftDelete(ctx context.Context, uuid string, at time.Time) error
	// CountUnread 统计用户各激活会话的未读数（只返回未读数大于 0 的会话）
	CountUnread(ctx context.Context, userId string) ([]UnreadCount, error)
}

// AttachmentRepository 附件数据访问接口
type AttachmentRepository interface {
	// CreateStaged 保存暂存附件
	CreateStaged(ctx context.Context, staged *model.StagedAttachment) error
	// FindStagedByUuids 批量查找暂存附件
	FindStagedByUuids(ctx context.Context, uuids []string) ([]model.StagedAttachment, error)
	// FindStagedBefore 查找早于 cutoff 的暂存附件
	FindStagedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.StagedAttachment, error)
	// DeleteStaged 删除暂存附件
	DeleteStaged(ctx context.Context, uuids []string) (int64, error)
	// CreateBatch 批量保存已绑定附件
	CreateBatch(ctx context.Context, attachments []model.Attachment) error
	// FindByMessageIds 批量查找消息的附件
	FindByMessageIds(ctx context.Context, messageIds []string) ([]model.Attachment, error)
}

// ReadReceiptRepository 已读回执数据访问接口
type ReadReceiptRepository interface {
	// CreateIgnoreConflict 批量写入回执，已存在的 (message, user) 跳过
	CreateIgnoreConflict(ctx context.Context, receipts []model.ReadReceipt) error
}

// PresenceRepository 在线状态数据访问接口
type PresenceRepository interface {
	// Upsert 写入或覆盖用户的在线状态
	Upsert(ctx context.Context, record *model.PresenceRecord) error
	// FindByUserIds 批量查询在线状态
	FindByUserIds(ctx context.Context, userIds []string) ([]model.PresenceRecord, error)
	// UpdateStatusIfOnline 仅在当前不是离线时修改状态，返回受影响行数
	UpdateStatusIfOnline(ctx context.Context, userId, status string, at time.Time) (int64, error)
	// SetOffline 置为离线并清空连接 id，返回受影响行数（本来就离线时为 0）
	SetOffline(ctx context.Context, userId string, at time.Time) (int64, error)
	// Touch 刷新非离线用户的最后活跃时间
	Touch(ctx context.Context, userId string, at time.Time) error
	// FindStale 查找最后活跃时间早于 cutoff 的非离线用户
	FindStale(ctx context.Context, cutoff time.Time) ([]model.PresenceRecord, error)
	// SetOfflineIfStale 条件置离线，期间有新活跃则不生效
	SetOfflineIfStale(ctx context.Context, userId string, cutoff, at time.Time) (int64, error)
}

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db           *gorm.DB
	Conversation ConversationRepository
	Participant  ParticipantRepository
	Message      MessageRepository
	Attachment   AttachmentRepository
	ReadReceipt  ReadReceiptRepository
	Presence     PresenceRepository
}

// NewRepositories 基于同一个 *gorm.DB 创建所有 Repository
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		Conversation: NewConversationRepository(db),
		Participant:  NewParticipantRepository(db),
		Message:      NewMessageRepository(db),
		Attachment:   NewAttachmentRepository(db),
		ReadReceipt:  NewReadReceiptRepository(db),
		Presence:     NewPresenceRepository(db),
	}
}

// Transaction 在数据库事务中执行函数
// 事务内必须使用 txRepos，fn 返回错误时整体回滚
func (r *Repositories) Transaction(ctx context.Context, fn func(txRepos *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

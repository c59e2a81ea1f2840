// Package repository 提供数据访问层的具体实现
// 本文件实现 AttachmentRepository 和 ReadReceiptRepository 接口
package repository

import (
	"context"
	"time"

	"realtime_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository 创建 AttachmentRepository 实例
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) CreateStaged(ctx context.Context, staged *model.StagedAttachment) error {
	if err := r.db.WithContext(ctx).Create(staged).Error; err != nil {
		return wrapDBErrorf(err, "保存暂存附件 uploader=%s", staged.UploaderId)
	}
	return nil
}

func (r *attachmentRepository) FindStagedByUuids(ctx context.Context, uuids []string) ([]model.StagedAttachment, error) {
	var staged []model.StagedAttachment
	if len(uuids) == 0 {
		return staged, nil
	}
	if err := r.db.WithContext(ctx).Where("uuid IN ?", uuids).Find(&staged).Error; err != nil {
		return nil, wrapDBError(err, "查询暂存附件")
	}
	return staged, nil
}

func (r *attachmentRepository) FindStagedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.StagedAttachment, error) {
	var staged []model.StagedAttachment
	err := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&staged).Error
	if err != nil {
		return nil, wrapDBError(err, "查询过期暂存附件")
	}
	return staged, nil
}

func (r *attachmentRepository) DeleteStaged(ctx context.Context, uuids []string) (int64, error) {
	if len(uuids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("uuid IN ?", uuids).Delete(&model.StagedAttachment{})
	if res.Error != nil {
		return 0, wrapDBError(res.Error, "删除暂存附件")
	}
	return res.RowsAffected, nil
}

func (r *attachmentRepository) CreateBatch(ctx context.Context, attachments []model.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&attachments).Error; err != nil {
		return wrapDBErrorf(err, "绑定附件 message=%s", attachments[0].MessageId)
	}
	return nil
}

func (r *attachmentRepository) FindByMessageIds(ctx context.Context, messageIds []string) ([]model.Attachment, error) {
	var attachments []model.Attachment
	if len(messageIds) == 0 {
		return attachments, nil
	}
	err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIds).
		Order("created_at ASC").Order("uuid ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, wrapDBError(err, "查询消息附件")
	}
	return attachments, nil
}

type readReceiptRepository struct {
	db *gorm.DB
}

// NewReadReceiptRepository 创建 ReadReceiptRepository 实例
func NewReadReceiptRepository(db *gorm.DB) ReadReceiptRepository {
	return &readReceiptRepository{db: db}
}

func (r *readReceiptRepository) CreateIgnoreConflict(ctx context.Context, receipts []model.ReadReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&receipts).Error
	return wrapDBErrorf(err, "写入已读回执 user=%s", receipts[0].UserId)
}

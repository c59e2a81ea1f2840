// Package repository 提供数据访问层的具体实现
// 本文件实现 PresenceRepository 接口
package repository

import (
	"context"
	"time"

	"realtime_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type presenceRepository struct {
	db *gorm.DB
}

// NewPresenceRepository 创建 PresenceRepository 实例
func NewPresenceRepository(db *gorm.DB) PresenceRepository {
	return &presenceRepository{db: db}
}

func (r *presenceRepository) Upsert(ctx context.Context, record *model.PresenceRecord) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "last_seen_at", "connection_id", "device", "updated_at"}),
		}).
		Create(record).Error
	return wrapDBErrorf(err, "写入在线状态 user=%s", record.UserId)
}

func (r *presenceRepository) FindByUserIds(ctx context.Context, userIds []string) ([]model.PresenceRecord, error) {
	var records []model.PresenceRecord
	if len(userIds) == 0 {
		return records, nil
	}
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIds).Find(&records).Error; err != nil {
		return nil, wrapDBError(err, "查询在线状态")
	}
	return records, nil
}

func (r *presenceRepository) UpdateStatusIfOnline(ctx context.Context, userId, status string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.PresenceRecord{}).
		Where("user_id = ? AND status <> ?", userId, model.StatusOffline).
		Updates(map[string]any{"status": status, "last_seen_at": at})
	if res.Error != nil {
		return 0, wrapDBErrorf(res.Error, "修改在线状态 user=%s", userId)
	}
	return res.RowsAffected, nil
}

func (r *presenceRepository) SetOffline(ctx context.Context, userId string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.PresenceRecord{}).
		Where("user_id = ? AND status <> ?", userId, model.StatusOffline).
		Updates(map[string]any{"status": model.StatusOffline, "last_seen_at": at, "connection_id": ""})
	if res.Error != nil {
		return 0, wrapDBErrorf(res.Error, "置为离线 user=%s", userId)
	}
	return res.RowsAffected, nil
}

func (r *presenceRepository) Touch(ctx context.Context, userId string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.PresenceRecord{}).
		Where("user_id = ? AND status <> ?", userId, model.StatusOffline).
		Update("last_seen_at", at).Error
	return wrapDBErrorf(err, "刷新活跃时间 user=%s", userId)
}

func (r *presenceRepository) FindStale(ctx context.Context, cutoff time.Time) ([]model.PresenceRecord, error) {
	var records []model.PresenceRecord
	err := r.db.WithContext(ctx).
		Where("status <> ?", model.StatusOffline).
		Where("last_seen_at IS NULL OR last_seen_at < ?", cutoff).
		Find(&records).Error
	if err != nil {
		return nil, wrapDBError(err, "查询过期在线状态")
	}
	return records, nil
}

func (r *presenceRepository) SetOfflineIfStale(ctx context.Context, userId string, cutoff, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.PresenceRecord{}).
		Where("user_id = ? AND status <> ?", userId, model.StatusOffline).
		Where("last_seen_at IS NULL OR last_seen_at < ?", cutoff).
		Updates(map[string]any{"status": model.StatusOffline, "last_seen_at": at, "connection_id": ""})
	if res.Error != nil {
		return 0, wrapDBErrorf(res.Error, "过期置离线 user=%s", userId)
	}
	return res.RowsAffected, nil
}

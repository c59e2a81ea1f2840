// Package mysql 负责建立 MySQL 连接、自动迁移表结构并构造 Repository 层
package mysql

import (
	"fmt"

	"realtime_chat_server/internal/config"
	"realtime_chat_server/internal/dao/mysql/repository"
	"realtime_chat_server/internal/model"

	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Init 连接数据库、迁移表结构并返回 Repository 聚合
// 失败时直接 Fatal，服务没有数据库无法工作
func Init(conf *config.MysqlConfig) (*gorm.DB, *repository.Repositories) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		conf.User,
		conf.Password,
		conf.Host,
		conf.Port,
		conf.DatabaseName,
	)

	db, err := gorm.Open(mysqldriver.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		zap.L().Fatal("open mysql failed", zap.Error(err))
	}

	if err := Migrate(db); err != nil {
		zap.L().Fatal("auto migrate failed", zap.Error(err))
	}

	return db, repository.NewRepositories(db)
}

// Migrate 自动迁移表结构，只增不删
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Conversation{},            // 会话表
		&model.ConversationParticipant{}, // 会话成员表
		&model.Message{},                 // 消息表
		&model.StagedAttachment{},        // 暂存附件表
		&model.Attachment{},              // 消息附件表
		&model.ReadReceipt{},             // 已读回执表
		&model.PresenceRecord{},          // 在线状态表
	)
}

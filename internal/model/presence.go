// Package model 定义数据库实体模型
// 本文件定义在线状态模型
package model

import (
	"database/sql"
	"time"
)

// 在线状态
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusBusy    = "busy"
	StatusOffline = "offline"
)

// PresenceRecord 在线状态模型
// 对应数据库 presence 表，每个用户一行，从未连接过的用户没有记录（视为离线）
type PresenceRecord struct {
	UserId       string       `gorm:"column:user_id;primaryKey;type:varchar(64);comment:用户id"`
	Status       string       `gorm:"column:status;type:varchar(10);not null;index;comment:在线状态"`
	LastSeenAt   sql.NullTime `gorm:"column:last_seen_at;index;comment:最后活跃时间"`
	ConnectionId string       `gorm:"column:connection_id;type:varchar(64);comment:最近一次连接id，离线时清空"`
	Device       string       `gorm:"column:device;type:varchar(64);comment:设备信息"`
	UpdatedAt    time.Time    `gorm:"column:updated_at;comment:更新时间"`
}

// TableName 指定表名
func (PresenceRecord) TableName() string {
	return "presence"
}

// ValidStatus 是否为合法的在线状态
func ValidStatus(status string) bool {
	switch status {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

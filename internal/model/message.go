// Package model 定义数据库实体模型
// 本文件定义消息、附件和已读回执模型
package model

import (
	"database/sql"
	"time"
)

// 消息类型
const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageFile   = "file"
	MessageAudio  = "audio"
	MessageVideo  = "video"
	MessageSystem = "system"
)

// Message 消息模型
// 对应数据库 message 表
// 删除为软删除：内容保留，但常规读取（历史、搜索、未读）都会过滤
type Message struct {
	// Uuid 消息唯一标识，"M" + 雪花 ID，同一时间戳下作为排序的第二关键字
	Uuid string `gorm:"column:uuid;primaryKey;type:char(20);comment:消息uuid"`

	ConversationId string `gorm:"column:conversation_id;type:char(20);not null;index:idx_message_conv_created,priority:1;comment:会话uuid"`

	SenderId string `gorm:"column:sender_id;type:varchar(64);not null;index;comment:发送者id"`

	// SenderName 发送者昵称
	// 冗余存储，身份由外部系统提供，这里不维护用户表
	SenderName string `gorm:"column:sender_name;type:varchar(64);comment:发送者昵称"`

	Content     string `gorm:"column:content;type:TEXT;comment:消息内容"`
	MessageType string `gorm:"column:message_type;type:varchar(20);not null;default:text;comment:消息类型"`

	// ReplyToId 被回复消息的 uuid，必须属于同一会话，创建后不可修改
	ReplyToId sql.NullString `gorm:"column:reply_to_id;type:char(20);index;comment:回复的消息uuid"`

	IsEdited bool         `gorm:"column:is_edited;not null;default:false;comment:是否编辑过"`
	EditedAt sql.NullTime `gorm:"column:edited_at;comment:编辑时间"`

	IsDeleted bool         `gorm:"column:is_deleted;not null;default:false;comment:是否删除"`
	DeletedAt sql.NullTime `gorm:"column:deleted_at;comment:删除时间"`

	// CreatedAt 由服务层写入，创建后不可修改，决定会话内消息顺序
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_message_conv_created,priority:2;comment:创建时间"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "message"
}

// StagedAttachment 已上传但尚未绑定到消息的附件
// 发送消息时在同一事务中转为 Attachment 并删除本记录
type StagedAttachment struct {
	Uuid         string    `gorm:"column:uuid;primaryKey;type:char(20);comment:附件uuid"`
	UploaderId   string    `gorm:"column:uploader_id;type:varchar(64);not null;index;comment:上传者id"`
	FileName     string    `gorm:"column:file_name;type:varchar(255);not null;comment:文件名"`
	FileUrl      string    `gorm:"column:file_url;type:varchar(512);not null;comment:文件地址"`
	FileType     string    `gorm:"column:file_type;type:varchar(100);comment:文件MIME类型"`
	FileSize     int64     `gorm:"column:file_size;comment:文件大小（字节）"`
	ThumbnailUrl string    `gorm:"column:thumbnail_url;type:varchar(512);comment:缩略图地址"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index;comment:上传时间"`
}

// TableName 指定表名
func (StagedAttachment) TableName() string {
	return "staged_attachment"
}

// Attachment 已绑定到消息的附件，uuid 沿用暂存时的 uuid
type Attachment struct {
	Uuid         string    `gorm:"column:uuid;primaryKey;type:char(20);comment:附件uuid"`
	MessageId    string    `gorm:"column:message_id;type:char(20);not null;index;comment:消息uuid"`
	FileName     string    `gorm:"column:file_name;type:varchar(255);not null;comment:文件名"`
	FileUrl      string    `gorm:"column:file_url;type:varchar(512);not null;comment:文件地址"`
	FileType     string    `gorm:"column:file_type;type:varchar(100);comment:文件MIME类型"`
	FileSize     int64     `gorm:"column:file_size;comment:文件大小（字节）"`
	ThumbnailUrl string    `gorm:"column:thumbnail_url;type:varchar(512);comment:缩略图地址"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;comment:创建时间"`
}

// TableName 指定表名
func (Attachment) TableName() string {
	return "attachment"
}

// ReadReceipt 已读回执，(message_id, user_id) 唯一，重复写入无副作用
type ReadReceipt struct {
	Id        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	MessageId string    `gorm:"column:message_id;type:char(20);not null;uniqueIndex:idx_receipt_msg_user,priority:1;comment:消息uuid"`
	UserId    string    `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:idx_receipt_msg_user,priority:2;comment:用户id"`
	ReadAt    time.Time `gorm:"column:read_at;not null;comment:已读时间"`
}

// TableName 指定表名
func (ReadReceipt) TableName() string {
	return "read_receipt"
}

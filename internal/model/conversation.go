// Package model 定义数据库实体模型
// 本文件定义会话与会话成员模型
package model

import (
	"database/sql"
	"time"
)

// 会话类型
const (
	ConversationDirect = "direct" // 单聊，固定两人
	ConversationGroup  = "group"  // 群聊
)

// 成员角色
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Conversation 会话模型
// 对应数据库 conversation 表
// 所有成员离开后只做软停用（IsActive=false），历史消息保留
type Conversation struct {
	// Uuid 会话唯一标识，"C" + 雪花 ID
	Uuid string `gorm:"column:uuid;primaryKey;type:char(20);comment:会话uuid"`

	// Type 会话类型，direct 或 group
	Type string `gorm:"column:type;type:varchar(10);not null;comment:会话类型"`

	// Name/Description 仅群聊使用
	Name        string `gorm:"column:name;type:varchar(64);comment:群名称"`
	Description string `gorm:"column:description;type:varchar(512);comment:群描述"`

	CreatorId string `gorm:"column:creator_id;type:varchar(64);not null;comment:创建者id"`

	// DirectKey 单聊去重键，两个用户 id 排序后以 "|" 拼接
	// 仅在单聊处于激活状态时有值，唯一索引保证同一对用户最多一个激活单聊
	DirectKey sql.NullString `gorm:"column:direct_key;type:varchar(160);uniqueIndex;comment:单聊去重键"`

	IsActive bool `gorm:"column:is_active;not null;default:true;comment:是否激活"`

	// LastMessageAt 最后一条消息时间，每次发送消息时推进
	LastMessageAt sql.NullTime `gorm:"column:last_message_at;index;comment:最后消息时间"`

	CreatedAt time.Time `gorm:"column:created_at;not null;comment:创建时间"`
	UpdatedAt time.Time `gorm:"column:updated_at;comment:更新时间"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversation"
}

// IsGroup 是否为群聊
func (c *Conversation) IsGroup() bool {
	return c.Type == ConversationGroup
}

// DirectKeyOf 计算两个用户的单聊去重键，与参数顺序无关
func DirectKeyOf(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

// ConversationParticipant 会话成员模型
// 对应数据库 conversation_participant 表
// 退出后保留记录（LeftAt 有值），重新加入时新建一行
type ConversationParticipant struct {
	Id             uint   `gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string `gorm:"column:conversation_id;type:char(20);not null;index:idx_participant_conv_user,priority:1;comment:会话uuid"`
	UserId         string `gorm:"column:user_id;type:varchar(64);not null;index:idx_participant_conv_user,priority:2;index;comment:用户id"`
	Role           string `gorm:"column:role;type:varchar(10);not null;default:member;comment:成员角色"`

	// ActiveKey 激活成员去重键 "conversationId|userId"，退出时置空
	// 唯一索引保证同一用户在同一会话中最多一条激活记录
	ActiveKey sql.NullString `gorm:"column:active_key;type:varchar(96);uniqueIndex;comment:激活成员去重键"`

	JoinedAt time.Time    `gorm:"column:joined_at;not null;comment:加入时间"`
	LeftAt   sql.NullTime `gorm:"column:left_at;comment:退出时间"`

	// LastReadAt 已读位置，只前进不后退
	LastReadAt sql.NullTime `gorm:"column:last_read_at;comment:最后已读时间"`
}

// TableName 指定表名
func (ConversationParticipant) TableName() string {
	return "conversation_participant"
}

// ActiveKeyOf 计算激活成员去重键
func ActiveKeyOf(conversationId, userId string) string {
	return conversationId + "|" + userId
}

// IsActive 成员是否仍在会话中
func (p *ConversationParticipant) IsActive() bool {
	return !p.LeftAt.Valid
}

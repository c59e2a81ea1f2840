// Package service 定义业务层接口
// 本文件定义所有 Service 接口，供 Handler 层和 WebSocket 网关调用
package service

import (
	"context"
	"io"

	"realtime_chat_server/internal/dto/request"
	"realtime_chat_server/internal/dto/respond"
	"realtime_chat_server/internal/service/chat"
	"realtime_chat_server/internal/service/presence"
	"realtime_chat_server/internal/service/typing"
)

// AccessService 会话访问控制
type AccessService interface {
	// CanAccess 用户是否为会话的激活成员
	CanAccess(ctx context.Context, userId, conversationId string) (bool, error)
}

// ConversationService 会话业务接口
// 处理单聊/群聊的创建、成员管理和查询
type ConversationService interface {
	// CreateDirect 创建或获取两人单聊，幂等
	CreateDirect(ctx context.Context, userId, peerId string) (*respond.ConversationRespond, error)
	// CreateGroup 创建群聊，创建者为管理员
	CreateGroup(ctx context.Context, creatorId string, req request.CreateGroupRequest) (*respond.ConversationRespond, error)
	// AddParticipants 管理员拉人入群
	AddParticipants(ctx context.Context, requesterId string, req request.AddParticipantsRequest) (*respond.ConversationRespond, error)
	// RemoveParticipant 管理员移出成员
	RemoveParticipant(ctx context.Context, requesterId string, req request.RemoveParticipantRequest) error
	// UpdateGroupInfo 修改群名称/描述
	UpdateGroupInfo(ctx context.Context, requesterId string, req request.UpdateGroupInfoRequest) (*respond.ConversationRespond, error)
	// Leave 退出会话，重复退出不报错
	Leave(ctx context.Context, conversationId, userId string) error
	// GetConversationById 会话详情
	GetConversationById(ctx context.Context, userId, conversationId string) (*respond.ConversationRespond, error)
	// ListConversations 用户参与的会话列表
	ListConversations(ctx context.Context, userId string) ([]respond.ConversationRespond, error)
}

// MessageService 消息业务接口
// 处理消息收发、已读、搜索和附件
type MessageService interface {
	// SendMessage 发送消息
	SendMessage(ctx context.Context, senderId, senderName string, req request.SendMessageRequest) (*respond.MessageRespond, error)
	// GetMessages 分页拉取历史消息
	GetMessages(ctx context.Context, userId string, req request.GetMessagesRequest) ([]respond.MessageRespond, error)
	// EditMessage 编辑自己的消息
	EditMessage(ctx context.Context, userId string, req request.EditMessageRequest) (*respond.MessageRespond, error)
	// DeleteMessage 删除自己的消息
	DeleteMessage(ctx context.Context, userId, messageId string) (*respond.MessageDeletedRespond, error)
	// MarkRead 批量标记已读
	MarkRead(ctx context.Context, userId string, req request.MarkReadRequest) (*respond.ReadReceiptRespond, error)
	// SearchMessages 搜索消息
	SearchMessages(ctx context.Context, userId string, req request.SearchMessagesRequest) ([]respond.MessageRespond, error)
	// UnreadCount 未读数
	UnreadCount(ctx context.Context, userId string) (*respond.UnreadCountRespond, error)
	// UploadAttachment 上传文件并登记为暂存附件
	UploadAttachment(ctx context.Context, uploaderId, fileName string, size int64, src io.Reader) (*respond.AttachmentRespond, error)
	// StageAttachment 登记外部存储的附件
	StageAttachment(ctx context.Context, uploaderId string, req request.StageAttachmentRequest) (*respond.AttachmentRespond, error)
}

// PresenceService 在线状态接口
type PresenceService interface {
	// Connect 连接建立，置为 online
	Connect(ctx context.Context, userId, connectionId, device string) (*respond.PresenceRespond, error)
	// UpdateStatus 显式切换状态
	UpdateStatus(ctx context.Context, userId, status string) (*respond.PresenceRespond, error)
	// Disconnect 置为 offline
	Disconnect(ctx context.Context, userId string) error
	// Touch 刷新活跃时间
	Touch(ctx context.Context, userId string)
	// GetPresence 批量查询
	GetPresence(ctx context.Context, userIds []string) ([]respond.PresenceRespond, error)
}

// TypingService 输入状态接口
type TypingService interface {
	// Start 开始输入
	Start(ctx context.Context, conversationId, userId string)
	// Stop 结束输入
	Stop(ctx context.Context, conversationId, userId string)
	// StopAllForUser 结束用户的全部输入状态
	StopAllForUser(ctx context.Context, userId string) int
}

var (
	_ ConversationService = (*chat.Service)(nil)
	_ MessageService      = (*chat.Service)(nil)
	_ PresenceService     = (*presence.Tracker)(nil)
	_ TypingService       = (*typing.Coordinator)(nil)
)

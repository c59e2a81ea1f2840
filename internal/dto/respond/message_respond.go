package respond

import "time"

// SenderRespond 发送者摘要
type SenderRespond struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// AttachmentRespond 附件信息
// 使用位置:
//   - MessageRespond.Attachments
//   - POST /attachment/upload、/attachment/stage 返回暂存附件
type AttachmentRespond struct {
	Id           string `json:"id"`
	FileName     string `json:"fileName"`
	FileUrl      string `json:"fileUrl"`
	FileType     string `json:"fileType"`
	FileSize     int64  `json:"fileSize"`
	ThumbnailUrl string `json:"thumbnailUrl,omitempty"`
}

// ReplyPreviewRespond 被回复消息的预览，原消息已删除时不带内容
type ReplyPreviewRespond struct {
	Id        string        `json:"id"`
	Sender    SenderRespond `json:"sender"`
	Content   string        `json:"content"`
	IsDeleted bool          `json:"isDeleted"`
}

// MessageRespond 完整消息
// 使用位置:
//   - chat:message:new / chat:message:edited 广播
//   - GET /message/list、/message/search
type MessageRespond struct {
	Id             string               `json:"id"`
	ConversationId string               `json:"conversationId"`
	Sender         SenderRespond        `json:"sender"`
	Content        string               `json:"content"`
	MessageType    string               `json:"messageType"`
	ReplyTo        *ReplyPreviewRespond `json:"replyTo,omitempty"`
	Attachments    []AttachmentRespond  `json:"attachments"`
	IsEdited       bool                 `json:"isEdited"`
	EditedAt       *time.Time           `json:"editedAt,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
}

// NotificationRespond 个人频道通知，覆盖当前没有打开该会话的成员
// 使用位置:
//   - chat:notification
type NotificationRespond struct {
	Type           string          `json:"type"`
	ConversationId string          `json:"conversationId"`
	Message        *MessageRespond `json:"message"`
}

// ReadReceiptRespond 已读回执广播
// 使用位置:
//   - chat:read:receipt
type ReadReceiptRespond struct {
	ConversationId string    `json:"conversationId"`
	UserId         string    `json:"userId"`
	MessageIds     []string  `json:"messageIds"`
	ReadAt         time.Time `json:"readAt"`
}

// MessageDeletedRespond 消息删除广播
// 使用位置:
//   - chat:message:deleted
type MessageDeletedRespond struct {
	MessageId      string `json:"messageId"`
	ConversationId string `json:"conversationId"`
}

// ConversationUnreadRespond 单个会话的未读数
type ConversationUnreadRespond struct {
	ConversationId string `json:"conversationId"`
	Unread         int64  `json:"unread"`
}

// UnreadCountRespond 未读数汇总
// 使用位置:
//   - GET /message/unreadCount
type UnreadCountRespond struct {
	Total         int64                       `json:"total"`
	Conversations []ConversationUnreadRespond `json:"conversations"`
}

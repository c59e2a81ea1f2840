package request

import "encoding/json"

// WebSocket 入站事件的请求体
// 客户端既可以发送对象形式 {"conversationId": "..."}，也可以直接发送裸值 "..."，
// 单字段请求通过 UnmarshalJSON 同时兼容两种写法
// 校验统一使用 binding tag，HTTP 与 WebSocket 共用一套规则

// ConversationIdRequest 只携带会话 id 的请求
// 使用位置:
//   - chat:join / chat:leave / typing:start / typing:stop
//   - POST /conversation/leave，GET /conversation/detail
type ConversationIdRequest struct {
	ConversationId string `json:"conversationId" form:"conversationId" binding:"required,max=64"`
}

func (r *ConversationIdRequest) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		r.ConversationId = id
		return nil
	}
	type plain ConversationIdRequest
	return json.Unmarshal(data, (*plain)(r))
}

// SendMessageRequest 发送消息请求
// 使用位置:
//   - chat:message
type SendMessageRequest struct {
	ConversationId string   `json:"conversationId" binding:"required,max=64"`
	Content        string   `json:"content"`
	MessageType    string   `json:"messageType" binding:"omitempty,oneof=text image file audio video"`
	ReplyToId      string   `json:"replyToId" binding:"omitempty,max=64"`
	AttachmentIds  []string `json:"attachmentIds" binding:"omitempty,max=10,dive,required,max=64"`
}

// MarkReadRequest 标记已读请求
// 使用位置:
//   - chat:read
//   - POST /message/markRead
type MarkReadRequest struct {
	ConversationId string   `json:"conversationId" binding:"required,max=64"`
	MessageIds     []string `json:"messageIds" binding:"required,min=1,max=200,dive,required,max=64"`
}

// EditMessageRequest 编辑消息请求
// 使用位置:
//   - chat:message:edit
type EditMessageRequest struct {
	MessageId string `json:"messageId" binding:"required,max=64"`
	Content   string `json:"content" binding:"required"`
}

// MessageIdRequest 只携带消息 id 的请求
// 使用位置:
//   - chat:message:delete
type MessageIdRequest struct {
	MessageId string `json:"messageId" binding:"required,max=64"`
}

func (r *MessageIdRequest) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		r.MessageId = id
		return nil
	}
	type plain MessageIdRequest
	return json.Unmarshal(data, (*plain)(r))
}

// PresenceStatusRequest 主动切换在线状态
// offline 只能由断线或超时触发，客户端不能直接设置
// 使用位置:
//   - presence:status
type PresenceStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=online away busy"`
}

func (r *PresenceStatusRequest) UnmarshalJSON(data []byte) error {
	var status string
	if err := json.Unmarshal(data, &status); err == nil {
		r.Status = status
		return nil
	}
	type plain PresenceStatusRequest
	return json.Unmarshal(data, (*plain)(r))
}

// PresenceGetRequest 批量查询在线状态
// 使用位置:
//   - presence:get
//   - GET /presence/get?userIds=a&userIds=b
type PresenceGetRequest struct {
	UserIds []string `json:"userIds" form:"userIds" binding:"required,min=1,max=200,dive,required,max=64"`
}

func (r *PresenceGetRequest) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		r.UserIds = ids
		return nil
	}
	type plain PresenceGetRequest
	return json.Unmarshal(data, (*plain)(r))
}

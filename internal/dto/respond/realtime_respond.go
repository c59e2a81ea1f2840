package respond

import "time"

// PresenceRespond 在线状态
// 从未连接过的用户 LastSeenAt 为 null
// 使用位置:
//   - presence:update 广播
//   - presence:snapshot、GET /presence/get
type PresenceRespond struct {
	UserId     string     `json:"userId"`
	Status     string     `json:"status"`
	LastSeenAt *time.Time `json:"lastSeenAt"`
}

// TypingRespond 输入状态
// 使用位置:
//   - typing:update
type TypingRespond struct {
	ConversationId string `json:"conversationId"`
	UserId         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

// ErrorRespond 错误事件，只发给触发它的连接
// 使用位置:
//   - chat:error / presence:error / typing:error
type ErrorRespond struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

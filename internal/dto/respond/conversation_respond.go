package respond

import "time"

// ParticipantRespond 会话成员
type ParticipantRespond struct {
	UserId     string     `json:"userId"`
	Role       string     `json:"role"`
	JoinedAt   time.Time  `json:"joinedAt"`
	LastReadAt *time.Time `json:"lastReadAt,omitempty"`
}

// ConversationRespond 会话信息
// 使用位置:
//   - POST /conversation/direct、/conversation/group
//   - GET /conversation/list（带未读数，不带成员）
//   - GET /conversation/detail（带成员）
type ConversationRespond struct {
	Id            string               `json:"id"`
	Type          string               `json:"type"`
	Name          string               `json:"name,omitempty"`
	Description   string               `json:"description,omitempty"`
	CreatorId     string               `json:"creatorId"`
	IsActive      bool                 `json:"isActive"`
	LastMessageAt *time.Time           `json:"lastMessageAt"`
	CreatedAt     time.Time            `json:"createdAt"`
	Participants  []ParticipantRespond `json:"participants,omitempty"`
	Unread        int64                `json:"unread"`
}

// JoinedRespond chat:join 成功回执
type JoinedRespond struct {
	ConversationId string `json:"conversationId"`
}

package constants

import "time"

const (
	CHANNEL_SIZE     = 100   // 通道大小
	FILE_MAX_SIZE    = 50000 // 文件最大大小（KB）
	REDIS_TIMEOUT    = 1     // redis timeout (分钟)
	SEND_BUFFER      = 256   // 单个连接的待写出帧缓冲
	TYPING_SHARDS    = 32    // 输入状态计时器分片数
	USER_LOCK_SHARDS = 64    // 网关按用户串行化上下线的锁分片数
	MAX_PAGE_LIMIT   = 100   // 历史消息单页上限
)

const (
	WS_WRITE_WAIT  = 10 * time.Second      // 单帧写超时
	WS_PONG_WAIT   = 60 * time.Second      // 等待 pong 的最长时间
	WS_PING_PERIOD = WS_PONG_WAIT * 9 / 10 // ping 间隔，必须小于 pong 等待
	WS_MAX_FRAME   = 64 * 1024             // 入站帧最大字节数
	PRESENCE_TOUCH = 30 * time.Second      // 活跃刷新 lastSeenAt 的节流间隔
	PRESENCE_TTL   = 10 * time.Minute      // 在线状态缓存有效期
)

// 广播分组前缀
const (
	GROUP_USER         = "user:"
	GROUP_CONVERSATION = "conversation:"
)

// UserGroup 用户个人频道，每个连接建立时自动加入
func UserGroup(userId string) string {
	return GROUP_USER + userId
}

// ConversationGroup 会话频道，chat:join 成功后加入
func ConversationGroup(conversationId string) string {
	return GROUP_CONVERSATION + conversationId
}

// PresenceCacheKey 在线状态缓存 key
func PresenceCacheKey(userId string) string {
	return "presence_" + userId
}

// MessageRateKey chat:message 限流计数 key
func MessageRateKey(userId string) string {
	return "rate_chat_message_" + userId
}

// WebSocket 入站事件
const (
	EVENT_CHAT_JOIN       = "chat:join"
	EVENT_CHAT_LEAVE      = "chat:leave"
	EVENT_CHAT_MESSAGE    = "chat:message"
	EVENT_CHAT_READ       = "chat:read"
	EVENT_CHAT_EDIT       = "chat:message:edit"
	EVENT_CHAT_DELETE     = "chat:message:delete"
	EVENT_PRESENCE_STATUS = "presence:status"
	EVENT_PRESENCE_GET    = "presence:get"
	EVENT_TYPING_START    = "typing:start"
	EVENT_TYPING_STOP     = "typing:stop"
)

// WebSocket 出站事件
const (
	EVENT_CHAT_JOINED       = "chat:joined"
	EVENT_MESSAGE_NEW       = "chat:message:new"
	EVENT_NOTIFICATION      = "chat:notification"
	EVENT_READ_RECEIPT      = "chat:read:receipt"
	EVENT_MESSAGE_EDITED    = "chat:message:edited"
	EVENT_MESSAGE_DELETED   = "chat:message:deleted"
	EVENT_PRESENCE_UPDATE   = "presence:update"
	EVENT_PRESENCE_SNAPSHOT = "presence:snapshot"
	EVENT_TYPING_UPDATE     = "typing:update"
)

// 个人频道通知类型
const (
	NOTIFY_NEW_MESSAGE = "new_message"
)

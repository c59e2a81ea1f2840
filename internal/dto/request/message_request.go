package request

// GetMessagesRequest 分页拉取历史消息
// Before 为游标消息 id，只返回严格早于它的消息
// 使用位置:
//   - GET /message/list
type GetMessagesRequest struct {
	ConversationId string `form:"conversationId" binding:"required,max=64"`
	Limit          int    `form:"limit" binding:"omitempty,min=1"`
	Before         string `form:"before" binding:"omitempty,max=64"`
}

// SearchMessagesRequest 在自己参与的会话中搜索消息
// 使用位置:
//   - GET /message/search
type SearchMessagesRequest struct {
	Query string `form:"q" binding:"required,max=100"`
	Limit int    `form:"limit" binding:"omitempty,min=1"`
}

// StageAttachmentRequest 登记由外部存储上传完成的附件
// 使用位置:
//   - POST /attachment/stage
type StageAttachmentRequest struct {
	FileName     string `json:"fileName" binding:"required,max=255"`
	FileUrl      string `json:"fileUrl" binding:"required,url,max=512"`
	FileType     string `json:"fileType" binding:"max=100"`
	FileSize     int64  `json:"fileSize" binding:"min=0"`
	ThumbnailUrl string `json:"thumbnailUrl" binding:"omitempty,url,max=512"`
}

package handler

import (
	"realtime_chat_server/internal/dto/request"
	"realtime_chat_server/internal/infrastructure/middleware"
	"realtime_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息请求处理器
// 发送、编辑、删除只走 WebSocket，这里提供查询类接口和已读
type MessageHandler struct {
	messageSvc service.MessageService
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(messageSvc service.MessageService) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc}
}

// List 分页拉取历史消息
// GET /message/list?conversationId=xxx&limit=50&before=<messageId>
// 响应: []respond.MessageRespond，按时间正序
func (h *MessageHandler) List(c *gin.Context) {
	var req request.GetMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.GetMessages(c.Request.Context(), c.GetString(middleware.CtxUserId), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Search 搜索消息
// GET /message/search?q=xxx&limit=20
// 响应: []respond.MessageRespond
func (h *MessageHandler) Search(c *gin.Context) {
	var req request.SearchMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.SearchMessages(c.Request.Context(), c.GetString(middleware.CtxUserId), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// UnreadCount 未读数
// GET /message/unreadCount
// 响应: respond.UnreadCountRespond
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	data, err := h.messageSvc.UnreadCount(c.Request.Context(), c.GetString(middleware.CtxUserId))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// MarkRead 批量标记已读
// POST /message/markRead
// 请求体: request.MarkReadRequest
// 响应: respond.ReadReceiptRespond
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req request.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.MarkRead(c.Request.Context(), c.GetString(middleware.CtxUserId), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Upload 上传附件，返回暂存记录，发送消息时通过 attachmentIds 绑定
// POST /attachment/upload  multipart/form-data, 字段 file
// 响应: respond.AttachmentRespond
func (h *MessageHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		HandleParamError(c, err)
		return
	}
	src, err := file.Open()
	if err != nil {
		HandleError(c, err)
		return
	}
	defer src.Close()

	data, err := h.messageSvc.UploadAttachment(c.Request.Context(), c.GetString(middleware.CtxUserId), file.Filename, file.Size, src)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Stage 登记外部存储上传完成的附件
// POST /attachment/stage
// 请求体: request.StageAttachmentRequest
// 响应: respond.AttachmentRespond
func (h *MessageHandler) Stage(c *gin.Context) {
	var req request.StageAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.StageAttachment(c.Request.Context(), c.GetString(middleware.CtxUserId), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

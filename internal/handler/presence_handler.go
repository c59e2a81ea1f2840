package handler

import (
	"realtime_chat_server/internal/dto/request"
	"realtime_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// PresenceHandler 在线状态请求处理器
type PresenceHandler struct {
	presenceSvc service.PresenceService
}

// NewPresenceHandler 创建在线状态处理器实例
func NewPresenceHandler(presenceSvc service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presenceSvc: presenceSvc}
}

// Get 批量查询在线状态
// GET /presence/get?userIds=a&userIds=b
// 响应: []respond.PresenceRespond，与请求顺序一致
func (h *PresenceHandler) Get(c *gin.Context) {
	var req request.PresenceGetRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.presenceSvc.GetPresence(c.Request.Context(), req.UserIds)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

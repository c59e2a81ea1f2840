// Package handler 提供 HTTP 请求处理器
// 本文件处理会话相关的 API 请求
package handler

import (
	"realtime_chat_server/internal/dto/request"
	"realtime_chat_server/internal/infrastructure/middleware"
	"realtime_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 会话请求处理器
type ConversationHandler struct {
	conversationSvc service.ConversationService
}

// NewConversationHandler 创建会话处理器实例
func NewConversationHandler(conversationSvc service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationSvc: conversationSvc}
}

// CreateDirect 创建或获取单聊
// POST /conversation/direct
// 请求体: request.CreateDirectRequest
// 响应: respond.ConversationRespond
func (h *ConversationHandler) CreateDirect(c *gin.Context) {
	var req request.CreateDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.conversationSvc.CreateDirect(c.Request.Context(), c.GetString(middleware.CtxUserId), req.PeerId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// CreateGroup 创建群聊
// POST /conversation/group
// 请求体: request.CreateGroupRequest
// 响应: respond.ConversationRespond
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	var req request.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.conversationSvc.CreateGroup(c.Request.Context(), c.GetString(middleware.CtxUserId), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// AddParticipants 管理员拉人入群
// POST /conversation/addParticipants
// 请求体: request.AddParticipantsRequest
// 响应: respond.ConversationRespond
func (h *ConversationHandler) AddParticipants(c *gin.Context) {
	var req request.AddParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.conversationSvc.AddParticipants(c.Request.Context(), c.GetString(middleware.CtxUserId), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// RemoveParticipant 管理员移除成员
// POST /conversation/removeParticipant
// 请求体: request.RemoveParticipantRequest
// 响应: nil
func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	var req request.RemoveParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.conversationSvc.RemoveParticipant(c.Request.Context(), c.GetString(middleware.CtxUserId), req); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}

// UpdateGroupInfo 修改群名称/描述
// POST /conversation/updateGroupInfo
// 请求体: request.UpdateGroupInfoRequest
// 响应: respond.ConversationRespond
func (h *ConversationHandler) UpdateGroupInfo(c *gin.Context) {
	var req request.UpdateGroupInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.conversationSvc.UpdateGroupInfo(c.Request.Context(), c.GetString(middleware.CtxUserId), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Leave 退出会话
// POST /conversation/leave
// 请求体: request.ConversationIdRequest
// 响应: nil
func (h *ConversationHandler) Leave(c *gin.Context) {
	var req request.ConversationIdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.conversationSvc.Leave(c.Request.Context(), req.ConversationId, c.GetString(middleware.CtxUserId)); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}

// List 我参与的会话
// GET /conversation/list
// 响应: []respond.ConversationRespond
func (h *ConversationHandler) List(c *gin.Context) {
	data, err := h.conversationSvc.ListConversations(c.Request.Context(), c.GetString(middleware.CtxUserId))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Detail 会话详情
// GET /conversation/detail?conversationId=xxx
// 响应: respond.ConversationRespond
func (h *ConversationHandler) Detail(c *gin.Context) {
	var req request.ConversationIdRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.conversationSvc.GetConversationById(c.Request.Context(), c.GetString(middleware.CtxUserId), req.ConversationId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 升级请求
package handler

import (
	"realtime_chat_server/internal/gateway/websocket"

	"github.com/gin-gonic/gin"
)

// WsHandler WebSocket 请求处理器
type WsHandler struct {
	gateway *websocket.Gateway
}

// NewWsHandler 创建 WebSocket 处理器实例
func NewWsHandler(gateway *websocket.Gateway) *WsHandler {
	return &WsHandler{gateway: gateway}
}

// Connect 升级为 WebSocket 连接，连接断开后返回
// GET /wss
// 鉴权: Authorization: Bearer <token>，或子协议 "bearer, <token>"，或 ?token=
// 鉴权失败在升级前返回 401
func (h *WsHandler) Connect(c *gin.Context) {
	h.gateway.ServeWS(c.Writer, c.Request)
}

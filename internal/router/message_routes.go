// Package router 提供 HTTP 路由注册
// 本文件定义消息与附件相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterMessageRoutes 注册消息相关路由（需要认证）
// 消息的发送、编辑、删除走 WebSocket，这里是查询、已读和附件上传
func (rt *Router) RegisterMessageRoutes(rg *gin.RouterGroup) {
	messageGroup := rg.Group("/message")
	{
		messageGroup.GET("/list", rt.can("message:read"), rt.handlers.Message.List)               // 分页拉取历史消息
		messageGroup.GET("/search", rt.can("message:read"), rt.handlers.Message.Search)           // 搜索消息
		messageGroup.GET("/unreadCount", rt.can("message:read"), rt.handlers.Message.UnreadCount) // 未读数
		messageGroup.POST("/markRead", rt.can("message:read"), rt.handlers.Message.MarkRead)      // 标记已读
	}

	attachmentGroup := rg.Group("/attachment")
	{
		attachmentGroup.POST("/upload", rt.can("attachment:upload"), rt.handlers.Message.Upload) // 上传附件到本地存储
		attachmentGroup.POST("/stage", rt.can("attachment:upload"), rt.handlers.Message.Stage)   // 登记外部存储的附件
	}
}

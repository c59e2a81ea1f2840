// Package router 提供 HTTP 路由注册
// 本文件定义会话相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterConversationRoutes 注册会话相关路由（需要认证）
func (rt *Router) RegisterConversationRoutes(rg *gin.RouterGroup) {
	conversationGroup := rg.Group("/conversation")
	{
		// ===== 创建 =====
		conversationGroup.POST("/direct", rt.can("conversation:create"), rt.handlers.Conversation.CreateDirect) // 创建或获取单聊
		conversationGroup.POST("/group", rt.can("conversation:create"), rt.handlers.Conversation.CreateGroup)   // 创建群聊

		// ===== 群成员与群信息（管理员） =====
		conversationGroup.POST("/addParticipants", rt.can("conversation:manage"), rt.handlers.Conversation.AddParticipants)     // 拉人入群
		conversationGroup.POST("/removeParticipant", rt.can("conversation:manage"), rt.handlers.Conversation.RemoveParticipant) // 移除成员
		conversationGroup.POST("/updateGroupInfo", rt.can("conversation:manage"), rt.handlers.Conversation.UpdateGroupInfo)     // 修改群信息

		conversationGroup.POST("/leave", rt.can("conversation:leave"), rt.handlers.Conversation.Leave) // 退出会话

		// ===== 查询 =====
		conversationGroup.GET("/list", rt.can("conversation:read"), rt.handlers.Conversation.List)     // 我参与的会话
		conversationGroup.GET("/detail", rt.can("conversation:read"), rt.handlers.Conversation.Detail) // 会话详情
	}
}

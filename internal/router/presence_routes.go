// Package router 提供 HTTP 路由注册
// 本文件定义在线状态相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterPresenceRoutes 注册在线状态路由（需要认证）
func (rt *Router) RegisterPresenceRoutes(rg *gin.RouterGroup) {
	presenceGroup := rg.Group("/presence")
	{
		presenceGroup.GET("/get", rt.can("presence:read"), rt.handlers.Presence.Get) // 批量查询在线状态
	}
}

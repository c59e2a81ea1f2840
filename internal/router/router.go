// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"realtime_chat_server/internal/handler"
	"realtime_chat_server/internal/infrastructure/auth"
	"realtime_chat_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// Router 路由管理器，持有 Handler 聚合和鉴权依赖
type Router struct {
	handlers *handler.Handlers
	resolver auth.IdentityResolver
	policy   auth.PermissionChecker
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers, resolver auth.IdentityResolver, policy auth.PermissionChecker) *Router {
	return &Router{handlers: handlers, resolver: resolver, policy: policy}
}

// RegisterRoutes 注册所有路由
// /wss 自己完成鉴权（浏览器无法设置请求头），其余接口统一经过 JWTAuth
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	rt.RegisterWebSocketRoutes(&r.RouterGroup)

	authed := r.Group("/", middleware.JWTAuth(rt.resolver))
	rt.RegisterConversationRoutes(authed) // 会话路由
	rt.RegisterMessageRoutes(authed)      // 消息与附件路由
	rt.RegisterPresenceRoutes(authed)     // 在线状态路由
}

// can 动作权限校验
func (rt *Router) can(action string) gin.HandlerFunc {
	return middleware.RequirePermission(rt.policy, action)
}

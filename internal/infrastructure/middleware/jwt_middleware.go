package middleware

import (
	"net/http"

	"realtime_chat_server/internal/infrastructure/auth"
	"realtime_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// 上下文中保存身份信息的 key
const (
	CtxUserId   = "user_id"
	CtxUserName = "user_name"
	CtxIdentity = "identity"
)

// JWTAuth 认证中间件
// 解析 Authorization: Bearer <token>，身份写入上下文供后续 Handler 使用
func JWTAuth(resolver auth.IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  "请使用 Bearer Token 访问此接口",
			})
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  "Token 已过期或无效",
			})
			return
		}

		c.Set(CtxUserId, identity.UserId)
		c.Set(CtxUserName, identity.Name)
		c.Set(CtxIdentity, identity)
		c.Next()
	}
}

// IdentityFrom 取出 JWTAuth 写入的身份，未认证时返回 nil
func IdentityFrom(c *gin.Context) *auth.Identity {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}

package middleware

import (
	"net/http"

	"realtime_chat_server/internal/infrastructure/auth"
	"realtime_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequirePermission 校验当前身份能否执行 action，需放在 JWTAuth 之后
func RequirePermission(checker auth.PermissionChecker, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if identity == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  errorx.ErrUnauthorized.Msg,
			})
			return
		}
		if !checker.Allow(identity, action) {
			zap.L().Info("permission denied",
				zap.String("user_id", identity.UserId),
				zap.String("role", identity.Role),
				zap.String("action", action))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": errorx.CodeAccessDenied,
				"msg":  "没有执行该操作的权限",
			})
			return
		}
		c.Next()
	}
}

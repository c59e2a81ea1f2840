// Package auth 对接外部身份与权限：凭证解析为身份，(角色, 动作) 判定是否放行
package auth

import (
	"context"
	"strings"

	"realtime_chat_server/pkg/errorx"
	"realtime_chat_server/pkg/util/jwt"

	"go.uber.org/zap"
)

// Identity 已验证的调用方身份
type Identity struct {
	UserId string
	Name   string
	Role   string
}

// IdentityResolver 将 bearer 凭证解析为身份，失败返回 CodeUnauthorized
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*Identity, error)
}

// JWTResolver 基于 HS256 JWT 的身份解析
type JWTResolver struct{}

// NewJWTResolver 创建 JWT 身份解析器，使用 jwt.Init 设置的密钥
func NewJWTResolver() *JWTResolver {
	return &JWTResolver{}
}

func (r *JWTResolver) Resolve(_ context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, errorx.ErrUnauthorized
	}
	claims, err := jwt.ParseToken(credential)
	if err != nil {
		zap.L().Debug("parse token failed", zap.Error(err))
		return nil, errorx.Wrap(err, errorx.CodeUnauthorized, "Token 已过期或无效")
	}
	name := claims.Name
	if name == "" {
		name = claims.UserID
	}
	return &Identity{UserId: claims.UserID, Name: name, Role: claims.Role}, nil
}

// BearerToken 从 "Bearer xxx" 中取出 token，格式不对返回空串
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

var _ IdentityResolver = (*JWTResolver)(nil)

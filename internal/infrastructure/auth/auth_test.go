package auth

import (
	"context"
	"testing"

	"realtime_chat_server/pkg/errorx"
	"realtime_chat_server/pkg/util/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTResolver(t *testing.T) {
	jwt.Init("auth-test-secret-0123456789abcdef", 5, "realtime_chat")
	token, err := jwt.GenerateAccessToken("u-1", "", "user")
	require.NoError(t, err)

	r := NewJWTResolver()
	id, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.UserId)
	// 未携带昵称时回退为用户 id
	assert.Equal(t, "u-1", id.Name)

	_, err = r.Resolve(context.Background(), "garbage")
	assert.True(t, errorx.Is(err, errorx.CodeUnauthorized))

	_, err = r.Resolve(context.Background(), " ")
	assert.True(t, errorx.Is(err, errorx.CodeUnauthorized))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken("abc"))
}

func TestRolePolicy(t *testing.T) {
	p := NewRolePolicy(map[string][]string{
		"admin": {"*"},
		"user":  {"conversation:*", "message:list"},
	}, "user")

	assert.True(t, p.Allow(&Identity{Role: "admin"}, "anything"))
	assert.True(t, p.Allow(&Identity{Role: "user"}, "conversation:create"))
	assert.True(t, p.Allow(&Identity{}, "message:list"))
	assert.False(t, p.Allow(&Identity{Role: "user"}, "message:search"))
	assert.False(t, p.Allow(&Identity{Role: "guest"}, "conversation:create"))
	assert.False(t, p.Allow(nil, "conversation:create"))
}

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"realtime_chat_server/internal/dto/request"
	"realtime_chat_server/internal/dto/respond"
	"realtime_chat_server/internal/gateway/websocket"
	"realtime_chat_server/internal/handler"
	"realtime_chat_server/internal/infrastructure/auth"
	"realtime_chat_server/internal/model"
	"realtime_chat_server/internal/router"
	"realtime_chat_server/internal/service"
	"realtime_chat_server/internal/service/chat"
	"realtime_chat_server/internal/testutil"
	"realtime_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenResolver token 即用户 id，guest- 前缀的用户使用 guest 角色
type tokenResolver struct{}

func (tokenResolver) Resolve(_ context.Context, credential string) (*auth.Identity, error) {
	if credential == "" {
		return nil, errorx.ErrUnauthorized
	}
	role := "user"
	if strings.HasPrefix(credential, "guest-") {
		role = "guest"
	}
	return &auth.Identity{UserId: credential, Name: credential, Role: role}, nil
}

type apiEnvelope struct {
	Code int             `json:"code"`
	Msg  any             `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type apiEnv struct {
	engine *gin.Engine
	svc    *service.Services
	bus    *testutil.Recorder
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, handler.InitTrans("zh"))

	_, repos := testutil.NewRepos(t)
	bus := &testutil.Recorder{}
	svc := service.NewServices(service.Deps{
		Repos: repos,
		Bus:   bus,
		Chat: chat.Options{
			ReadOnFetch:         true,
			DefaultPageSize:     50,
			MaxPageSize:         100,
			MaxContentLength:    500,
			MaxSearchResults:    20,
			StagedAttachmentTTL: time.Hour,
			MaxFileSize:         1024,
			Stash:               chat.NewLocalFileStash(t.TempDir(), "/static/files"),
		},
		TypingTimeout: time.Second,
	})
	t.Cleanup(svc.Close)

	hub := websocket.NewHub()
	t.Cleanup(hub.Close)
	gateway := websocket.NewGateway(hub, tokenResolver{}, svc, websocket.Options{Translator: handler.Trans})

	policy := auth.NewRolePolicy(map[string][]string{
		"user":  {"conversation:*", "message:*", "attachment:*", "presence:*"},
		"guest": {"presence:read"},
	}, "user")
	engine := gin.New()
	router.NewRouter(handler.NewHandlers(svc, gateway), tokenResolver{}, policy).RegisterRoutes(engine)
	return &apiEnv{engine: engine, svc: svc, bus: bus}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) (int, apiEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.serve(t, req)
}

func (e *apiEnv) serve(t *testing.T, req *http.Request) (int, apiEnvelope) {
	t.Helper()
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	var env apiEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestConversationLifecycle(t *testing.T) {
	env := newAPIEnv(t)

	status, resp := env.do(t, http.MethodPost, "/conversation/direct", "alice", request.CreateDirectRequest{PeerId: "bob"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)
	var direct respond.ConversationRespond
	require.NoError(t, json.Unmarshal(resp.Data, &direct))
	assert.Equal(t, model.ConversationDirect, direct.Type)

	// 重复创建返回同一个会话
	_, resp = env.do(t, http.MethodPost, "/conversation/direct", "bob", request.CreateDirectRequest{PeerId: "alice"})
	var again respond.ConversationRespond
	require.NoError(t, json.Unmarshal(resp.Data, &again))
	assert.Equal(t, direct.Id, again.Id)

	_, resp = env.do(t, http.MethodGet, "/conversation/list", "alice", nil)
	require.Equal(t, errorx.CodeSuccess, resp.Code)
	var list []respond.ConversationRespond
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, direct.Id, list[0].Id)

	_, resp = env.do(t, http.MethodGet, "/conversation/detail?conversationId="+direct.Id, "bob", nil)
	require.Equal(t, errorx.CodeSuccess, resp.Code)

	_, resp = env.do(t, http.MethodGet, "/conversation/detail?conversationId="+direct.Id, "carol", nil)
	assert.Equal(t, errorx.CodeAccessDenied, resp.Code)
	assert.Equal(t, errorx.ErrAccessDenied.Msg, resp.Msg)
}

func TestGroupManagement(t *testing.T) {
	env := newAPIEnv(t)

	_, resp := env.do(t, http.MethodPost, "/conversation/group", "alice", request.CreateGroupRequest{
		Name:           "team",
		ParticipantIds: []string{"bob"},
	})
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)
	var group respond.ConversationRespond
	require.NoError(t, json.Unmarshal(resp.Data, &group))

	// 非管理员不能拉人
	_, resp = env.do(t, http.MethodPost, "/conversation/addParticipants", "bob", request.AddParticipantsRequest{
		ConversationId: group.Id,
		UserIds:        []string{"carol"},
	})
	assert.Equal(t, errorx.CodeAccessDenied, resp.Code)

	_, resp = env.do(t, http.MethodPost, "/conversation/addParticipants", "alice", request.AddParticipantsRequest{
		ConversationId: group.Id,
		UserIds:        []string{"carol"},
	})
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)

	name := "renamed"
	_, resp = env.do(t, http.MethodPost, "/conversation/updateGroupInfo", "alice", request.UpdateGroupInfoRequest{
		ConversationId: group.Id,
		Name:           &name,
	})
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)
	var updated respond.ConversationRespond
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	assert.Equal(t, "renamed", updated.Name)

	_, resp = env.do(t, http.MethodPost, "/conversation/removeParticipant", "alice", request.RemoveParticipantRequest{
		ConversationId: group.Id,
		UserId:         "carol",
	})
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)

	_, resp = env.do(t, http.MethodPost, "/conversation/leave", "bob", map[string]string{"conversationId": group.Id})
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)

	_, resp = env.do(t, http.MethodGet, "/conversation/detail?conversationId="+group.Id, "bob", nil)
	assert.Equal(t, errorx.CodeAccessDenied, resp.Code)
}

func TestParamErrorIsTranslated(t *testing.T) {
	env := newAPIEnv(t)

	_, resp := env.do(t, http.MethodPost, "/conversation/direct", "alice", map[string]string{})
	assert.Equal(t, errorx.CodeInvalidParam, resp.Code)
	msg, ok := resp.Msg.(map[string]any)
	require.True(t, ok, "validation message should be a field map, got %v", resp.Msg)
	assert.Contains(t, msg, "peerId")

	req := httptest.NewRequest(http.MethodPost, "/conversation/direct", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer alice")
	_, resp = env.serve(t, req)
	assert.Equal(t, errorx.CodeInvalidParam, resp.Code)
	assert.Equal(t, errorx.ErrInvalidParam.Msg, resp.Msg)
}

func TestMessageQueriesAndMarkRead(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	conv, err := env.svc.Conversation.CreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)
	sent, err := env.svc.Message.SendMessage(ctx, "alice", "Alice", request.SendMessageRequest{
		ConversationId: conv.Id,
		Content:        "lunch at noon?",
	})
	require.NoError(t, err)

	_, resp := env.do(t, http.MethodGet, "/message/unreadCount", "bob", nil)
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)
	var unread respond.UnreadCountRespond
	require.NoError(t, json.Unmarshal(resp.Data, &unread))
	assert.Equal(t, int64(1), unread.Total)

	_, resp = env.do(t, http.MethodGet, "/message/search?q=lunch", "bob", nil)
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)
	var found []respond.MessageRespond
	require.NoError(t, json.Unmarshal(resp.Data, &found))
	require.Len(t, found, 1)
	assert.Equal(t, sent.Id, found[0].Id)

	_, resp = env.do(t, http.MethodPost, "/message/markRead", "bob", request.MarkReadRequest{
		ConversationId: conv.Id,
		MessageIds:     []string{sent.Id},
	})
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)
	var receipt respond.ReadReceiptRespond
	require.NoError(t, json.Unmarshal(resp.Data, &receipt))
	assert.Equal(t, []string{sent.Id}, receipt.MessageIds)

	_, resp = env.do(t, http.MethodGet, "/message/list?conversationId="+conv.Id, "bob", nil)
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)
	var history []respond.MessageRespond
	require.NoError(t, json.Unmarshal(resp.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "lunch at noon?", history[0].Content)

	_, resp = env.do(t, http.MethodGet, "/message/list?conversationId="+conv.Id, "carol", nil)
	assert.Equal(t, errorx.CodeAccessDenied, resp.Code)
}

func TestAttachmentUploadAndStage(t *testing.T) {
	env := newAPIEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/attachment/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer alice")
	_, resp := env.serve(t, req)
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)
	var uploaded respond.AttachmentRespond
	require.NoError(t, json.Unmarshal(resp.Data, &uploaded))
	assert.Equal(t, "notes.txt", uploaded.FileName)
	assert.Equal(t, int64(5), uploaded.FileSize)
	assert.True(t, strings.HasPrefix(uploaded.FileUrl, "/static/files/"))

	_, resp = env.do(t, http.MethodPost, "/attachment/stage", "alice", request.StageAttachmentRequest{
		FileName: "photo.png",
		FileUrl:  "https://cdn.example.com/photo.png",
		FileType: "image/png",
		FileSize: 2048,
	})
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)
	var staged respond.AttachmentRespond
	require.NoError(t, json.Unmarshal(resp.Data, &staged))
	assert.NotEmpty(t, staged.Id)
	assert.Equal(t, "https://cdn.example.com/photo.png", staged.FileUrl)
}

func TestPresenceGet(t *testing.T) {
	env := newAPIEnv(t)
	_, err := env.svc.Presence.Connect(context.Background(), "alice", "conn-1", "test")
	require.NoError(t, err)

	_, resp := env.do(t, http.MethodGet, "/presence/get?userIds=alice&userIds=nobody", "guest-1", nil)
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)
	var list []respond.PresenceRespond
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].UserId)
	assert.Equal(t, model.StatusOnline, list[0].Status)
	assert.Equal(t, model.StatusOffline, list[1].Status)
}

func TestAuthAndPermission(t *testing.T) {
	env := newAPIEnv(t)

	status, resp := env.do(t, http.MethodGet, "/conversation/list", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errorx.CodeUnauthorized, resp.Code)

	status, resp = env.do(t, http.MethodGet, "/conversation/list", "guest-1", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, errorx.CodeAccessDenied, resp.Code)
}

// Package websocket 实现连接网关：鉴权升级、事件路由、分组广播与断线清理
package websocket

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"

	"realtime_chat_server/internal/dto/request"
	"realtime_chat_server/internal/dto/respond"
	"realtime_chat_server/internal/infrastructure/auth"
	"realtime_chat_server/internal/service"
	"realtime_chat_server/pkg/constants"
	"realtime_chat_server/pkg/errorx"

	ut "github.com/go-playground/universal-translator"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const bearerProtocol = "bearer"

// Options 网关参数
type Options struct {
	// AllowedOrigins 为空时接受任意 Origin
	AllowedOrigins []string
	// Translator 校验错误的翻译器，为 nil 时使用英文原文
	Translator ut.Translator
}

// eventHandler 单个入站事件的处理函数
type eventHandler func(ctx context.Context, c *Client, data json.RawMessage) error

// Gateway 连接网关
type Gateway struct {
	hub      *Hub
	resolver auth.IdentityResolver
	svc      *service.Services
	trans    ut.Translator
	upgrader websocket.Upgrader
	handlers map[string]eventHandler

	// userLocks 按用户分片，串行化同一用户的上线登记与离线清理
	userLocks [constants.USER_LOCK_SHARDS]sync.Mutex
}

// NewGateway 创建连接网关
func NewGateway(hub *Hub, resolver auth.IdentityResolver, svc *service.Services, opts Options) *Gateway {
	g := &Gateway{
		hub:      hub,
		resolver: resolver,
		svc:      svc,
		trans:    opts.Translator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 2048,
			Subprotocols:    []string{bearerProtocol},
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
	g.handlers = map[string]eventHandler{
		constants.EVENT_CHAT_JOIN:       g.onJoin,
		constants.EVENT_CHAT_LEAVE:      g.onLeave,
		constants.EVENT_CHAT_MESSAGE:    g.onMessage,
		constants.EVENT_CHAT_READ:       g.onRead,
		constants.EVENT_CHAT_EDIT:       g.onEdit,
		constants.EVENT_CHAT_DELETE:     g.onDelete,
		constants.EVENT_PRESENCE_STATUS: g.onPresenceStatus,
		constants.EVENT_PRESENCE_GET:    g.onPresenceGet,
		constants.EVENT_TYPING_START:    g.onTypingStart,
		constants.EVENT_TYPING_STOP:     g.onTypingStop,
	}
	return g
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// credential 依次从 Authorization 头、Sec-WebSocket-Protocol、token 参数中取凭证
// 浏览器无法给 WebSocket 设置请求头，因此支持 "bearer, <token>" 子协议写法
func credential(r *http.Request) string {
	if token := auth.BearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	for _, header := range r.Header.Values("Sec-WebSocket-Protocol") {
		parts := strings.Split(header, ",")
		for i := 0; i+1 < len(parts); i++ {
			if strings.EqualFold(strings.TrimSpace(parts[i]), bearerProtocol) {
				return strings.TrimSpace(parts[i+1])
			}
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (g *Gateway) lockUser(userId string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userId))
	mu := &g.userLocks[h.Sum32()%uint32(len(g.userLocks))]
	mu.Lock()
	return mu.Unlock
}

// ServeWS 处理一次升级请求，连接结束后返回
// 鉴权在升级前完成，失败直接回 401
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := g.resolver.Resolve(r.Context(), credential(r))
	if err != nil {
		zap.L().Debug("ws auth failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		http.Error(w, errorx.ErrUnauthorized.Msg, http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		zap.L().Warn("ws upgrade failed", zap.String("user_id", identity.UserId), zap.Error(err))
		return
	}

	client := newClient(conn, identity.UserId, identity.Name)
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	// 登记与上线放在同一把用户锁内，旧连接的离线清理不会插在两者之间
	unlock := g.lockUser(client.UserId)
	if !g.hub.Register(client) {
		unlock()
		client.Close()
		return
	}
	if _, err := g.svc.Presence.Connect(ctx, client.UserId, client.Id, device(r)); err != nil {
		zap.L().Error("presence connect failed", zap.String("user_id", client.UserId), zap.Error(err))
	}
	unlock()

	zap.L().Info("ws connected",
		zap.String("user_id", client.UserId),
		zap.String("connection_id", client.Id))

	go client.writePump()
	client.readPump(func(raw []byte) {
		g.svc.Presence.Touch(ctx, client.UserId)
		g.dispatch(ctx, client, raw)
	}, func() {
		g.svc.Presence.Touch(ctx, client.UserId)
	})

	g.disconnect(ctx, client)
}

func device(r *http.Request) string {
	ua := r.UserAgent()
	if len(ua) > 128 {
		ua = ua[:128]
	}
	return ua
}

// disconnect 断线清理：离开分组、置为离线、结束输入状态
// 三步互不影响，任一步失败只记录日志
func (g *Gateway) disconnect(ctx context.Context, c *Client) {
	defer g.hub.Release()
	c.Close()

	unlock := g.lockUser(c.UserId)
	remaining := g.hub.Unregister(c)
	if remaining == 0 {
		if err := g.svc.Presence.Disconnect(ctx, c.UserId); err != nil {
			zap.L().Error("presence disconnect failed",
				zap.String("user_id", c.UserId),
				zap.String("connection_id", c.Id),
				zap.Error(err))
		}
	}
	unlock()

	g.svc.Typing.StopAllForUser(ctx, c.UserId)
	zap.L().Info("ws disconnected",
		zap.String("user_id", c.UserId),
		zap.String("connection_id", c.Id),
		zap.Int("remaining", remaining))
}

// dispatch 解析一帧并路由到对应事件处理
func (g *Gateway) dispatch(ctx context.Context, c *Client, raw []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		c.Enqueue(errorFrame(frame.Event, errorx.Validation("无法解析的消息帧")))
		return
	}
	handler, ok := g.handlers[frame.Event]
	if !ok {
		c.Enqueue(errorFrame(frame.Event, errorx.Validation("未知事件 %s", frame.Event)))
		return
	}
	if err := handler(ctx, c, frame.Data); err != nil {
		c.Enqueue(errorFrame(frame.Event, err))
	}
}

// reply 只发给当前连接
func (g *Gateway) reply(c *Client, event string, data any) error {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "编码响应失败")
	}
	c.Enqueue(frame)
	return nil
}

func (g *Gateway) onJoin(ctx context.Context, c *Client, data json.RawMessage) error {
	var req request.ConversationIdRequest
	if err := decodePayload(data, &req, g.trans); err != nil {
		return err
	}
	ok, err := g.svc.Access.CanAccess(ctx, c.UserId, req.ConversationId)
	if err != nil {
		return err
	}
	if !ok {
		return errorx.ErrAccessDenied
	}
	g.hub.Join(c, constants.ConversationGroup(req.ConversationId))
	return g.reply(c, constants.EVENT_CHAT_JOINED, req)
}

func (g *Gateway) onLeave(_ context.Context, c *Client, data json.RawMessage) error {
	var req request.ConversationIdRequest
	if err := decodePayload(data, &req, g.trans); err != nil {
		return err
	}
	g.hub.Leave(c, constants.ConversationGroup(req.ConversationId))
	return nil
}

func (g *Gateway) onMessage(ctx context.Context, c *Client, data json.RawMessage) error {
	var req request.SendMessageRequest
	if err := decodePayload(data, &req, g.trans); err != nil {
		return err
	}
	_, err := g.svc.Message.SendMessage(ctx, c.UserId, c.UserName, req)
	return err
}

func (g *Gateway) onRead(ctx context.Context, c *Client, data json.RawMessage) error {
	var req request.MarkReadRequest
	if err := decodePayload(data, &req, g.trans); err != nil {
		return err
	}
	_, err := g.svc.Message.MarkRead(ctx, c.UserId, req)
	return err
}

func (g *Gateway) onEdit(ctx context.Context, c *Client, data json.RawMessage) error {
	var req request.EditMessageRequest
	if err := decodePayload(data, &req, g.trans); err != nil {
		return err
	}
	_, err := g.svc.Message.EditMessage(ctx, c.UserId, req)
	return err
}

func (g *Gateway) onDelete(ctx context.Context, c *Client, data json.RawMessage) error {
	var req request.MessageIdRequest
	if err := decodePayload(data, &req, g.trans); err != nil {
		return err
	}
	_, err := g.svc.Message.DeleteMessage(ctx, c.UserId, req.MessageId)
	return err
}

func (g *Gateway) onPresenceStatus(ctx context.Context, c *Client, data json.RawMessage) error {
	var req request.PresenceStatusRequest
	if err := decodePayload(data, &req, g.trans); err != nil {
		return err
	}
	_, err := g.svc.Presence.UpdateStatus(ctx, c.UserId, req.Status)
	return err
}

func (g *Gateway) onPresenceGet(ctx context.Context, c *Client, data json.RawMessage) error {
	var req request.PresenceGetRequest
	if err := decodePayload(data, &req, g.trans); err != nil {
		return err
	}
	list, err := g.svc.Presence.GetPresence(ctx, req.UserIds)
	if err != nil {
		return err
	}
	if list == nil {
		list = []respond.PresenceRespond{}
	}
	return g.reply(c, constants.EVENT_PRESENCE_SNAPSHOT, list)
}

// typingTarget 输入状态只对已 join 的会话生效
func (g *Gateway) typingTarget(c *Client, data json.RawMessage) (string, error) {
	var req request.ConversationIdRequest
	if err := decodePayload(data, &req, g.trans); err != nil {
		return "", err
	}
	if !g.hub.InGroup(c, constants.ConversationGroup(req.ConversationId)) {
		return "", errorx.ErrAccessDenied
	}
	return req.ConversationId, nil
}

func (g *Gateway) onTypingStart(ctx context.Context, c *Client, data json.RawMessage) error {
	conversationId, err := g.typingTarget(c, data)
	if err != nil {
		return err
	}
	g.svc.Typing.Start(ctx, conversationId, c.UserId)
	return nil
}

func (g *Gateway) onTypingStop(ctx context.Context, c *Client, data json.RawMessage) error {
	conversationId, err := g.typingTarget(c, data)
	if err != nil {
		return err
	}
	g.svc.Typing.Stop(ctx, conversationId, c.UserId)
	return nil
}

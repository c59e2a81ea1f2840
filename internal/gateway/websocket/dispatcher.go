package websocket

import (
	"context"
	"encoding/json"

	"realtime_chat_server/pkg/errorx"

	"go.uber.org/zap"
)

// 广播信封类型
const (
	kindGroup = "group"
	kindAll   = "all"
	kindEvict = "evict"
)

// envelope 经广播总线传递的一条指令
type envelope struct {
	Kind    string          `json:"kind"`
	Group   string          `json:"group,omitempty"`
	Exclude string          `json:"exclude,omitempty"`
	UserId  string          `json:"userId,omitempty"`
	Frame   json.RawMessage `json:"frame,omitempty"`
}

// Dispatcher 广播分发器
// 业务层的推送先编码成帧写入总线，各节点消费后投递给本地 Hub
type Dispatcher struct {
	hub    *Hub
	broker MessageBroker
}

// NewDispatcher 创建广播分发器
func NewDispatcher(hub *Hub, broker MessageBroker) *Dispatcher {
	return &Dispatcher{hub: hub, broker: broker}
}

// ToGroup 推送到分组，excludeUserId 的连接不会收到
func (d *Dispatcher) ToGroup(ctx context.Context, group, event string, payload any, excludeUserId string) error {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "编码广播失败")
	}
	return d.publish(ctx, envelope{Kind: kindGroup, Group: group, Exclude: excludeUserId, Frame: frame})
}

// ToAll 推送到所有连接
func (d *Dispatcher) ToAll(ctx context.Context, event string, payload any) error {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "编码广播失败")
	}
	return d.publish(ctx, envelope{Kind: kindAll, Frame: frame})
}

// Evict 在所有节点上把用户的连接移出分组
func (d *Dispatcher) Evict(ctx context.Context, group, userId string) error {
	return d.publish(ctx, envelope{Kind: kindEvict, Group: group, UserId: userId})
}

func (d *Dispatcher) publish(ctx context.Context, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "编码广播失败")
	}
	if err := d.broker.Publish(ctx, data); err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "发布广播失败")
	}
	return nil
}

// Run 阻塞消费广播总线，总线关闭后返回
func (d *Dispatcher) Run() {
	d.broker.Start(d.handle)
}

func (d *Dispatcher) handle(msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		zap.L().Error("decode broadcast envelope failed", zap.Error(err))
		return
	}
	switch env.Kind {
	case kindGroup:
		d.hub.Deliver(env.Group, env.Frame, env.Exclude)
	case kindAll:
		d.hub.DeliverAll(env.Frame)
	case kindEvict:
		d.hub.Evict(env.Group, env.UserId)
	default:
		zap.L().Warn("unknown broadcast kind", zap.String("kind", env.Kind))
	}
}

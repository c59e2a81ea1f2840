package websocket

import (
	"context"
	"errors"
	"sync"

	"realtime_chat_server/pkg/constants"
)

// ErrBrokerClosed 代理已关闭
var ErrBrokerClosed = errors.New("broker closed")

// MessageBroker 广播总线
// 支持两种实现：ChannelBroker (单机)，mq.KafkaBroker (多节点)
// 每条广播都要到达所有节点，由各节点的 Dispatcher 投递给本地连接
type MessageBroker interface {
	// Publish 发布一条广播
	Publish(ctx context.Context, msg []byte) error
	// Start 阻塞消费广播并交给 handler，Close 后返回
	Start(handler func(msg []byte))
	// Close 关闭代理资源
	Close() error
}

// ChannelBroker 单机模式，广播经进程内通道转交
type ChannelBroker struct {
	transmit  chan []byte
	quit      chan struct{}
	closeOnce sync.Once
}

// NewChannelBroker 创建单机广播总线
func NewChannelBroker() *ChannelBroker {
	return &ChannelBroker{
		transmit: make(chan []byte, constants.CHANNEL_SIZE),
		quit:     make(chan struct{}),
	}
}

func (b *ChannelBroker) Publish(ctx context.Context, msg []byte) error {
	select {
	case <-b.quit:
		return ErrBrokerClosed
	default:
	}
	select {
	case b.transmit <- msg:
		return nil
	case <-b.quit:
		return ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *ChannelBroker) Start(handler func(msg []byte)) {
	for {
		select {
		case <-b.quit:
			return
		case msg := <-b.transmit:
			handler(msg)
		}
	}
}

func (b *ChannelBroker) Close() error {
	b.closeOnce.Do(func() { close(b.quit) })
	return nil
}

var _ MessageBroker = (*ChannelBroker)(nil)

// Package typing 维护“正在输入”状态，只存在于本进程内存中
package typing

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"realtime_chat_server/internal/dto/respond"
	"realtime_chat_server/pkg/constants"

	"go.uber.org/zap"
)

// Broadcaster 推送到会话分组
type Broadcaster interface {
	ToGroup(ctx context.Context, group, event string, payload any, excludeUserId string) error
}

type key struct {
	conversationId string
	userId         string
}

// entry 一次 start 对应的计时器，过期回调按指针比较，被替换的计时器不会误发
type entry struct {
	timer *time.Timer
}

type shard struct {
	mu     sync.Mutex
	timers map[key]*entry
}

// Coordinator 按会话 id 分片，每个分片一把锁
type Coordinator struct {
	bus     Broadcaster
	timeout time.Duration
	shards  [constants.TYPING_SHARDS]*shard
}

// NewCoordinator timeout 为未收到 stop 时自动结束的时长
func NewCoordinator(bus Broadcaster, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Coordinator{bus: bus, timeout: timeout}
	for i := range c.shards {
		c.shards[i] = &shard{timers: make(map[key]*entry)}
	}
	return c
}

func (c *Coordinator) shardOf(conversationId string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(conversationId))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Start 开始输入，已有计时器时取消并重新计时
func (c *Coordinator) Start(ctx context.Context, conversationId, userId string) {
	k := key{conversationId: conversationId, userId: userId}
	sh := c.shardOf(conversationId)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if old, ok := sh.timers[k]; ok {
		old.timer.Stop()
	}
	e := &entry{}
	e.timer = time.AfterFunc(c.timeout, func() { c.expire(sh, k, e) })
	sh.timers[k] = e
	c.notify(ctx, k, true)
}

// Stop 结束输入，没有进行中的计时器时什么也不发
func (c *Coordinator) Stop(ctx context.Context, conversationId, userId string) {
	k := key{conversationId: conversationId, userId: userId}
	sh := c.shardOf(conversationId)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.timers[k]; ok {
		e.timer.Stop()
		delete(sh.timers, k)
		c.notify(ctx, k, false)
	}
}

// StopAllForUser 连接断开时结束该用户在所有会话中的输入状态，返回结束的数量
func (c *Coordinator) StopAllForUser(ctx context.Context, userId string) int {
	stopped := 0
	for _, sh := range c.shards {
		sh.mu.Lock()
		for k, e := range sh.timers {
			if k.userId != userId {
				continue
			}
			e.timer.Stop()
			delete(sh.timers, k)
			c.notify(ctx, k, false)
			stopped++
		}
		sh.mu.Unlock()
	}
	return stopped
}

// Close 停止所有计时器，不再广播
func (c *Coordinator) Close() {
	for _, sh := range c.shards {
		sh.mu.Lock()
		for k, e := range sh.timers {
			e.timer.Stop()
			delete(sh.timers, k)
		}
		sh.mu.Unlock()
	}
}

func (c *Coordinator) expire(sh *shard, k key, e *entry) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.timers[k] != e {
		return
	}
	delete(sh.timers, k)
	c.notify(context.Background(), k, false)
}

// notify 必须在持有分片锁时调用，同一 key 的广播顺序与状态变更顺序一致
func (c *Coordinator) notify(ctx context.Context, k key, isTyping bool) {
	if c.bus == nil {
		return
	}
	payload := &respond.TypingRespond{
		ConversationId: k.conversationId,
		UserId:         k.userId,
		IsTyping:       isTyping,
	}
	err := c.bus.ToGroup(context.WithoutCancel(ctx), constants.ConversationGroup(k.conversationId),
		constants.EVENT_TYPING_UPDATE, payload, k.userId)
	if err != nil {
		zap.L().Error("broadcast typing failed",
			zap.String("conversation_id", k.conversationId),
			zap.String("user_id", k.userId),
			zap.Error(err))
	}
}

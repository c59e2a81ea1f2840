package websocket

import (
	"context"
	"sync"

	"realtime_chat_server/pkg/constants"
)

// Hub 本节点的连接注册表与广播分组
// 由 main 创建，关闭时断开全部连接
type Hub struct {
	mu      sync.RWMutex
	groups  map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}
	byUser  map[string]map[*Client]struct{}
	closing bool

	// active 已注册且尚未完成断线清理的连接
	active sync.WaitGroup
}

// NewHub 创建连接注册表
func NewHub() *Hub {
	return &Hub{
		groups: make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
		byUser: make(map[string]map[*Client]struct{}),
	}
}

// Register 登记连接并加入其个人频道
// Hub 已关闭时返回 false
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	if h.byUser[c.UserId] == nil {
		h.byUser[c.UserId] = make(map[*Client]struct{})
	}
	h.byUser[c.UserId][c] = struct{}{}
	h.joined[c] = make(map[string]struct{})
	h.joinLocked(c, constants.UserGroup(c.UserId))
	h.active.Add(1)
	return true
}

// Release 标记一个已注册连接的断线清理完成，与 Register 成对调用
func (h *Hub) Release() {
	h.active.Done()
}

// Wait 等待所有已注册连接完成清理，ctx 到期时提前返回
func (h *Hub) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister 移除连接及其全部分组，返回该用户在本节点剩余的连接数
func (h *Hub) Unregister(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	for group := range h.joined[c] {
		h.removeLocked(group, c)
	}
	delete(h.joined, c)
	conns := h.byUser[c.UserId]
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.byUser, c.UserId)
		return 0
	}
	return len(conns)
}

// Join 把连接加入分组，未登记的连接忽略
func (h *Hub) Join(c *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.joined[c]; !ok {
		return
	}
	h.joinLocked(c, group)
}

func (h *Hub) joinLocked(c *Client, group string) {
	if h.groups[group] == nil {
		h.groups[group] = make(map[*Client]struct{})
	}
	h.groups[group][c] = struct{}{}
	h.joined[c][group] = struct{}{}
}

// Leave 把连接移出分组
func (h *Hub) Leave(c *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if groups, ok := h.joined[c]; ok {
		delete(groups, group)
	}
	h.removeLocked(group, c)
}

func (h *Hub) removeLocked(group string, c *Client) {
	members := h.groups[group]
	delete(members, c)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// InGroup 连接是否在分组中
func (h *Hub) InGroup(c *Client, group string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.groups[group][c]
	return ok
}

// Evict 把用户在本节点的所有连接移出分组，返回移出的连接数
func (h *Hub) Evict(group, userId string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.byUser[userId] {
		if _, ok := h.groups[group][c]; !ok {
			continue
		}
		delete(h.joined[c], group)
		h.removeLocked(group, c)
		n++
	}
	return n
}

// Deliver 向分组内除 excludeUserId 外的连接投递一帧，返回投递数
func (h *Hub) Deliver(group string, frame []byte, excludeUserId string) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		if excludeUserId != "" && c.UserId == excludeUserId {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if c.Enqueue(frame) {
			n++
		}
	}
	return n
}

// DeliverAll 向本节点全部连接投递一帧
func (h *Hub) DeliverAll(frame []byte) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.joined))
	for c := range h.joined {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if c.Enqueue(frame) {
			n++
		}
	}
	return n
}

// UserConnections 用户在本节点的连接数
func (h *Hub) UserConnections(userId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userId])
}

// Count 本节点连接总数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.joined)
}

// Close 拒绝新连接并断开现有连接
// 各连接的断线清理仍由各自的 ServeWS 完成
func (h *Hub) Close() {
	h.mu.Lock()
	h.closing = true
	targets := make([]*Client, 0, len(h.joined))
	for c := range h.joined {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.Close()
	}
}

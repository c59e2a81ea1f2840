package testutil

import (
	"context"
	"sync"
)

// Broadcast 一次广播调用的记录
type Broadcast struct {
	Group   string // 为空表示全体广播
	Event   string
	Payload any
	Exclude string
}

// Eviction 一次移出分组的记录
type Eviction struct {
	Group  string
	UserId string
}

// Recorder 记录所有广播调用，实现各服务依赖的 Broadcaster 接口
type Recorder struct {
	mu        sync.Mutex
	events    []Broadcast
	evictions []Eviction
}

func (r *Recorder) ToGroup(_ context.Context, group, event string, payload any, excludeUserId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Broadcast{Group: group, Event: event, Payload: payload, Exclude: excludeUserId})
	return nil
}

func (r *Recorder) ToAll(_ context.Context, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Broadcast{Event: event, Payload: payload})
	return nil
}

func (r *Recorder) Evict(_ context.Context, group, userId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictions = append(r.evictions, Eviction{Group: group, UserId: userId})
	return nil
}

// Evictions 返回目前为止的移出记录副本
func (r *Recorder) Evictions() []Eviction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Eviction, len(r.evictions))
	copy(out, r.evictions)
	return out
}

// Events 返回目前为止的记录副本
func (r *Recorder) Events() []Broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Broadcast, len(r.events))
	copy(out, r.events)
	return out
}

// ByEvent 过滤指定事件名的记录
func (r *Recorder) ByEvent(event string) []Broadcast {
	var out []Broadcast
	for _, b := range r.Events() {
		if b.Event == event {
			out = append(out, b)
		}
	}
	return out
}

// Reset 清空记录
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.evictions = nil
}

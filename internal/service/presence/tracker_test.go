package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	myredis "realtime_chat_server/internal/dao/redis"
	"realtime_chat_server/internal/dto/respond"
	"realtime_chat_server/internal/model"
	"realtime_chat_server/internal/testutil"
	"realtime_chat_server/pkg/constants"
	"realtime_chat_server/pkg/errorx"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestTracker(t *testing.T, cache myredis.AsyncCacheService) (*Tracker, *testutil.Recorder, *manualClock) {
	t.Helper()
	_, repos := testutil.NewRepos(t)
	bus := &testutil.Recorder{}
	tracker := NewTracker(repos.Presence, bus, Options{
		StaleAfter:    5 * time.Minute,
		SweepInterval: time.Minute,
		TouchInterval: 30 * time.Second,
		Cache:         cache,
	})
	clock := &manualClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	tracker.now = clock.Now
	return tracker, bus, clock
}

func statusOf(t *testing.T, tracker *Tracker, userId string) respond.PresenceRespond {
	t.Helper()
	res, err := tracker.GetPresence(context.Background(), []string{userId})
	require.NoError(t, err)
	require.Len(t, res, 1)
	return res[0]
}

func TestPresenceTransitions(t *testing.T) {
	tracker, bus, clock := newTestTracker(t, nil)
	ctx := context.Background()

	_, err := tracker.UpdateStatus(ctx, "alice", model.StatusAway)
	assert.True(t, errorx.Is(err, errorx.CodeInvalidParam))

	p, err := tracker.Connect(ctx, "alice", "conn-1", "web")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnline, p.Status)
	require.NotNil(t, p.LastSeenAt)

	clock.Advance(time.Second)
	p, err = tracker.UpdateStatus(ctx, "alice", model.StatusBusy)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBusy, p.Status)
	assert.Equal(t, model.StatusBusy, statusOf(t, tracker, "alice").Status)

	_, err = tracker.UpdateStatus(ctx, "alice", model.StatusOffline)
	assert.True(t, errorx.Is(err, errorx.CodeInvalidParam))
	_, err = tracker.UpdateStatus(ctx, "alice", "dancing")
	assert.True(t, errorx.Is(err, errorx.CodeInvalidParam))

	// 重新连接总是回到 online
	p, err = tracker.Connect(ctx, "alice", "conn-2", "ios")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnline, p.Status)

	clock.Advance(time.Second)
	require.NoError(t, tracker.Disconnect(ctx, "alice"))
	require.NoError(t, tracker.Disconnect(ctx, "alice"))
	got := statusOf(t, tracker, "alice")
	assert.Equal(t, model.StatusOffline, got.Status)
	require.NotNil(t, got.LastSeenAt)
	assert.True(t, got.LastSeenAt.Equal(clock.Now()))

	updates := bus.ByEvent(constants.EVENT_PRESENCE_UPDATE)
	require.Len(t, updates, 4)
	for _, u := range updates {
		assert.Empty(t, u.Group)
	}
	last := updates[3].Payload.(*respond.PresenceRespond)
	assert.Equal(t, model.StatusOffline, last.Status)

	_, err = tracker.UpdateStatus(ctx, "alice", model.StatusOnline)
	assert.True(t, errorx.Is(err, errorx.CodeInvalidParam))
}

func TestGetPresenceDefaultsUnknownUsers(t *testing.T) {
	tracker, _, _ := newTestTracker(t, nil)
	ctx := context.Background()
	_, err := tracker.Connect(ctx, "bob", "c", "")
	require.NoError(t, err)

	res, err := tracker.GetPresence(ctx, []string{"ghost", "bob", "ghost"})
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, respond.PresenceRespond{UserId: "ghost", Status: model.StatusOffline}, res[0])
	assert.Equal(t, model.StatusOnline, res[1].Status)
	assert.Equal(t, res[0], res[2])
}

func TestSweepMarksStaleUsersOffline(t *testing.T) {
	tracker, bus, clock := newTestTracker(t, nil)
	ctx := context.Background()

	_, err := tracker.Connect(ctx, "alice", "a", "")
	require.NoError(t, err)
	_, err = tracker.Connect(ctx, "bob", "b", "")
	require.NoError(t, err)

	clock.Advance(4 * time.Minute)
	tracker.Touch(ctx, "bob")

	clock.Advance(2 * time.Minute)
	bus.Reset()
	n, err := tracker.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.StatusOffline, statusOf(t, tracker, "alice").Status)
	assert.Equal(t, model.StatusOnline, statusOf(t, tracker, "bob").Status)

	updates := bus.ByEvent(constants.EVENT_PRESENCE_UPDATE)
	require.Len(t, updates, 1)
	assert.Equal(t, "alice", updates[0].Payload.(*respond.PresenceRespond).UserId)

	n, err = tracker.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTouchIsThrottled(t *testing.T) {
	tracker, bus, clock := newTestTracker(t, nil)
	ctx := context.Background()
	_, err := tracker.Connect(ctx, "alice", "a", "")
	require.NoError(t, err)
	connectedAt := clock.Now()

	clock.Advance(10 * time.Second)
	tracker.Touch(ctx, "alice")
	assert.True(t, statusOf(t, tracker, "alice").LastSeenAt.Equal(connectedAt))

	clock.Advance(25 * time.Second)
	tracker.Touch(ctx, "alice")
	assert.True(t, statusOf(t, tracker, "alice").LastSeenAt.Equal(clock.Now()))

	// 活动刷新不广播
	assert.Len(t, bus.ByEvent(constants.EVENT_PRESENCE_UPDATE), 1)
}

func TestPresenceCacheWriteThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := myredis.NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 2, 16)
	t.Cleanup(func() { _ = cache.Close() })

	tracker, _, clock := newTestTracker(t, cache)
	ctx := context.Background()

	cachedStatus := func() string {
		raw, err := mr.Get(constants.PresenceCacheKey("alice"))
		if err != nil {
			return ""
		}
		value, ok := myredis.SplitVersioned(raw)
		if !ok {
			return ""
		}
		var p respond.PresenceRespond
		if json.Unmarshal([]byte(value), &p) != nil {
			return ""
		}
		return p.Status
	}

	_, err := tracker.Connect(ctx, "alice", "a", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return cachedStatus() == model.StatusOnline }, time.Second, 10*time.Millisecond)

	clock.Advance(time.Second)
	require.NoError(t, tracker.Disconnect(ctx, "alice"))
	require.Eventually(t, func() bool { return cachedStatus() == model.StatusOffline }, time.Second, 10*time.Millisecond)
	assert.Equal(t, model.StatusOffline, statusOf(t, tracker, "alice").Status)

	// 缓存未命中时回源数据库
	mr.Del(constants.PresenceCacheKey("alice"))
	assert.Equal(t, model.StatusOffline, statusOf(t, tracker, "alice").Status)
}

func TestRunStopsWithContext(t *testing.T) {
	tracker, _, _ := newTestTracker(t, nil)
	tracker.opts.SweepInterval = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tracker.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

package typing

import (
	"context"
	"testing"
	"time"

	"realtime_chat_server/internal/dto/respond"
	"realtime_chat_server/internal/testutil"
	"realtime_chat_server/pkg/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 100 * time.Millisecond

func updates(bus *testutil.Recorder) []*respond.TypingRespond {
	var out []*respond.TypingRespond
	for _, b := range bus.ByEvent(constants.EVENT_TYPING_UPDATE) {
		out = append(out, b.Payload.(*respond.TypingRespond))
	}
	return out
}

func countTyping(bus *testutil.Recorder, isTyping bool) int {
	n := 0
	for _, u := range updates(bus) {
		if u.IsTyping == isTyping {
			n++
		}
	}
	return n
}

func TestStartExpiresExactlyOnce(t *testing.T) {
	bus := &testutil.Recorder{}
	c := NewCoordinator(bus, testTimeout)
	ctx := context.Background()

	c.Start(ctx, "C1", "alice")
	events := bus.ByEvent(constants.EVENT_TYPING_UPDATE)
	require.Len(t, events, 1)
	assert.Equal(t, constants.ConversationGroup("C1"), events[0].Group)
	assert.Equal(t, "alice", events[0].Exclude)
	assert.True(t, events[0].Payload.(*respond.TypingRespond).IsTyping)

	require.Eventually(t, func() bool { return countTyping(bus, false) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * testTimeout)
	assert.Equal(t, 1, countTyping(bus, false))
}

func TestRestartReplacesTimer(t *testing.T) {
	bus := &testutil.Recorder{}
	c := NewCoordinator(bus, testTimeout)
	ctx := context.Background()

	c.Start(ctx, "C1", "alice")
	time.Sleep(testTimeout / 4)
	c.Start(ctx, "C1", "alice")
	time.Sleep(testTimeout / 4)
	c.Start(ctx, "C1", "alice")

	assert.Equal(t, 3, countTyping(bus, true))
	assert.Zero(t, countTyping(bus, false))

	require.Eventually(t, func() bool { return countTyping(bus, false) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * testTimeout)
	assert.Equal(t, 1, countTyping(bus, false))
}

func TestStopEmitsOnlyForLiveTimer(t *testing.T) {
	bus := &testutil.Recorder{}
	c := NewCoordinator(bus, testTimeout)
	ctx := context.Background()

	c.Stop(ctx, "C1", "alice")
	assert.Empty(t, bus.Events())

	c.Start(ctx, "C1", "alice")
	c.Stop(ctx, "C1", "alice")
	c.Stop(ctx, "C1", "alice")
	time.Sleep(2 * testTimeout)

	got := updates(bus)
	require.Len(t, got, 2)
	assert.True(t, got[0].IsTyping)
	assert.False(t, got[1].IsTyping)
}

func TestStopAllForUser(t *testing.T) {
	bus := &testutil.Recorder{}
	c := NewCoordinator(bus, time.Minute)
	t.Cleanup(c.Close)
	ctx := context.Background()

	c.Start(ctx, "C1", "alice")
	c.Start(ctx, "C2", "alice")
	c.Start(ctx, "C1", "bob")
	bus.Reset()

	assert.Equal(t, 2, c.StopAllForUser(ctx, "alice"))
	got := updates(bus)
	require.Len(t, got, 2)
	var convs []string
	for _, u := range got {
		assert.False(t, u.IsTyping)
		assert.Equal(t, "alice", u.UserId)
		convs = append(convs, u.ConversationId)
	}
	assert.ElementsMatch(t, []string{"C1", "C2"}, convs)

	assert.Zero(t, c.StopAllForUser(ctx, "alice"))
	bus.Reset()
	c.Stop(ctx, "C1", "bob")
	require.Len(t, updates(bus), 1)
}

// slowBroadcaster 推送 isTyping=true 前先停顿，放大并发 start/stop 的交错窗口
type slowBroadcaster struct {
	testutil.Recorder
	delay time.Duration
}

func (s *slowBroadcaster) ToGroup(ctx context.Context, group, event string, payload any, excludeUserId string) error {
	if p, ok := payload.(*respond.TypingRespond); ok && p.IsTyping {
		time.Sleep(s.delay)
	}
	return s.Recorder.ToGroup(ctx, group, event, payload, excludeUserId)
}

func liveTimers(c *Coordinator) int {
	n := 0
	for _, sh := range c.shards {
		sh.mu.Lock()
		n += len(sh.timers)
		sh.mu.Unlock()
	}
	return n
}

func TestLastBroadcastMatchesTimerState(t *testing.T) {
	for _, stop := range []string{"stop", "stopAll"} {
		t.Run(stop, func(t *testing.T) {
			bus := &slowBroadcaster{delay: 50 * time.Millisecond}
			c := NewCoordinator(bus, time.Minute)
			t.Cleanup(c.Close)
			ctx := context.Background()

			started := make(chan struct{})
			go func() {
				defer close(started)
				c.Start(ctx, "C1", "alice")
			}()
			time.Sleep(10 * time.Millisecond)
			if stop == "stop" {
				c.Stop(ctx, "C1", "alice")
			} else {
				c.StopAllForUser(ctx, "alice")
			}
			<-started

			got := updates(&bus.Recorder)
			require.NotEmpty(t, got)
			last := got[len(got)-1]
			assert.Equal(t, liveTimers(c) > 0, last.IsTyping, "last broadcast isTyping=%v with %d live timers", last.IsTyping, liveTimers(c))
		})
	}
}

func TestExpiryNeverOverridesNewerStart(t *testing.T) {
	bus := &slowBroadcaster{delay: 20 * time.Millisecond}
	c := NewCoordinator(bus, 5*time.Millisecond)
	t.Cleanup(c.Close)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Start(ctx, "C1", "alice")
	}
	time.Sleep(50 * time.Millisecond)
	c.Start(ctx, "C1", "alice")
	c.Stop(ctx, "C1", "alice")

	got := updates(&bus.Recorder)
	require.NotEmpty(t, got)
	assert.False(t, got[len(got)-1].IsTyping)
	assert.Zero(t, liveTimers(c))
}

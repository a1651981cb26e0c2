package queue

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"scholar-project-service/internal/events"
)

func TestProgressBusRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bus := NewProgressBus(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Event, 4)
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = bus.Subscribe(ctx, func(ev events.Event) { received <- ev })
	}()
	<-ready
	// Give the subscriber a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, bus.Publish(ctx, events.Status("job-1", "running", "parsing", 30)))
	require.NoError(t, bus.Publish(ctx, events.Complete("job-1", "completed")))

	ev := waitEvent(t, received)
	require.Equal(t, events.KindStatus, ev.Kind)
	require.Equal(t, "job-1", ev.JobID)
	require.Equal(t, 30, ev.ProgressPercent)

	ev = waitEvent(t, received)
	require.Equal(t, events.KindComplete, ev.Kind)
	require.Equal(t, 100, ev.ProgressPercent)
}

func TestProgressBusSkipsMalformedMessages(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bus := NewProgressBus(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Event, 1)
	go func() {
		_ = bus.Subscribe(ctx, func(ev events.Event) { received <- ev })
	}()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, client.Publish(ctx, "jobs:progress", "not json").Err())
	require.NoError(t, bus.Publish(ctx, events.Error("job-1", "boom")))

	// The garbage message is dropped; the real one still arrives.
	ev := waitEvent(t, received)
	require.Equal(t, events.KindError, ev.Kind)
	require.Equal(t, "boom", ev.Message)
}

func waitEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}

package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEvent(typ EventType, id string) TransferStateChangedEvent {
	return TransferStateChangedEvent{
		BaseEvent:  BaseEvent{EventType: typ, EventTime: time.Now()},
		TransferID: id,
	}
}

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	}()

	var mu sync.Mutex
	var got []string
	bus.SubscribeFunc(TransferStateChanged, func(ctx context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(TransferStateChangedEvent).TransferID)
		return nil
	})

	require.NoError(t, bus.Publish(newEvent(TransferStateChanged, "t1")))
	require.NoError(t, bus.Publish(newEvent(TransferStateChanged, "t2")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"t1", "t2"}, got)
	mu.Unlock()
}

func TestBusFiltersByEventType(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	}()

	var count int
	var mu sync.Mutex
	bus.SubscribeFunc(TransferFailed, func(ctx context.Context, e Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	require.NoError(t, bus.Publish(newEvent(TransferStateChanged, "t1")))
	require.NoError(t, bus.Publish(newEvent(TransferFailed, "t2")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)

	var mu sync.Mutex
	var got int
	sub := bus.SubscribeFunc(TransferStateChanged, func(ctx context.Context, e Event) error {
		mu.Lock()
		got++
		mu.Unlock()
		return nil
	})

	require.NoError(t, bus.Publish(newEvent(TransferStateChanged, "t1")))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got == 1
	}, time.Second, 5*time.Millisecond)

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(newEvent(TransferStateChanged, "t2")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	mu.Lock()
	assert.Equal(t, 1, got)
	mu.Unlock()
}

func TestBusRejectsPublishAfterShutdown(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	assert.Error(t, bus.Publish(newEvent(TransferStateChanged, "late")))
}

package agent

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Creates a standard EventBus instance for testing.
func setupEventBus(t *testing.T, bufferSize int) *EventBus {
	t.Helper()
	bus := NewEventBus(zaptest.NewLogger(t), bufferSize)
	t.Cleanup(bus.Shutdown)
	return bus
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := setupEventBus(t, 10)
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(Event{Type: EventProgress, TaskID: "t1", Message: "hello"})

	select {
	case ev := <-events:
		assert.Equal(t, EventProgress, ev.Type)
		assert.Equal(t, "hello", ev.Message)
		assert.NotEmpty(t, ev.ID, "bus should assign an ID")
		assert.False(t, ev.Timestamp.IsZero(), "bus should stamp the event")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event delivery")
	}
}

func TestEventBus_Filtering(t *testing.T) {
	bus := setupEventBus(t, 10)
	status, unsubStatus := bus.Subscribe(EventStatus)
	defer unsubStatus()
	progress, unsubProgress := bus.Subscribe(EventProgress)
	defer unsubProgress()

	bus.Publish(Event{Type: EventStatus, Running: true})
	bus.Publish(Event{Type: EventProgress, Message: "line"})

	require.Len(t, status, 1)
	require.Len(t, progress, 1)
	assert.True(t, (<-status).Running)
	assert.Equal(t, "line", (<-progress).Message)
}

func TestEventBus_PublishNeverBlocks(t *testing.T) {
	bus := setupEventBus(t, 2)
	events, unsubscribe := bus.Subscribe(EventProgress)
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			bus.Publish(Event{Type: EventProgress})
		}
	}()
	require.True(t, waitTimeout(&wg, time.Second), "publish blocked on a slow subscriber")
	assert.Len(t, events, 2, "overflow is dropped")
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := setupEventBus(t, 10)
	events, unsubscribe := bus.Subscribe(EventStatus, EventProgress)
	unsubscribe()
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok, "channel closed after unsubscribe")

	bus.Publish(Event{Type: EventStatus})
	assert.Empty(t, bus.subscribers[EventStatus])
	assert.Empty(t, bus.subscribers[EventProgress])
}

func TestEventBus_Shutdown(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t), 0)
	assert.Equal(t, 64, bus.bufferSize)

	a, unsubA := bus.Subscribe()
	b, _ := bus.Subscribe(EventProgress)
	bus.Shutdown()
	bus.Shutdown()
	unsubA()

	_, okA := <-a
	_, okB := <-b
	assert.False(t, okA)
	assert.False(t, okB)

	bus.Publish(Event{Type: EventProgress})

	late, _ := bus.Subscribe()
	_, ok := <-late
	assert.False(t, ok, "subscriptions after shutdown are closed immediately")
}

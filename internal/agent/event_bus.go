package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType distinguishes the two kinds of notifications a controller emits.
type EventType string

const (
	// EventStatus reports a change of the running flag.
	EventStatus EventType = "STATUS"
	// EventProgress carries a free-text progress line.
	EventProgress EventType = "PROGRESS"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	ID        string
	Timestamp time.Time
	Type      EventType
	TaskID    string
	Running   bool   // Set on EventStatus.
	Message   string // Set on EventProgress.
}

// EventBus fans controller events out to subscribers. Publishing never
// blocks: a subscriber that falls behind loses events rather than stalling
// the turn loop.
type EventBus struct {
	logger     *zap.Logger
	bufferSize int

	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	isShutdown  bool
}

// NewEventBus creates a bus whose subscriber channels hold bufferSize events.
func NewEventBus(logger *zap.Logger, bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &EventBus{
		logger:      logger.Named("event_bus"),
		bufferSize:  bufferSize,
		subscribers: make(map[EventType][]chan Event),
	}
}

// Publish delivers ev to every subscriber of its type.
func (b *EventBus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.isShutdown {
		return
	}
	for _, ch := range b.subscribers[ev.Type] {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("Subscriber buffer full, dropping event.",
				zap.String("type", string(ev.Type)), zap.String("event_id", ev.ID))
		}
	}
}

// Subscribe returns a channel receiving events of the given types (all types
// when none are named) and a function that unsubscribes and closes it.
func (b *EventBus) Subscribe(types ...EventType) (<-chan Event, func()) {
	if len(types) == 0 {
		types = []EventType{EventStatus, EventProgress}
	}
	ch := make(chan Event, b.bufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown {
		close(ch)
		return ch, func() {}
	}
	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], ch)
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.isShutdown {
				return
			}
			for _, t := range types {
				subs := b.subscribers[t]
				for i, sub := range subs {
					if sub == ch {
						b.subscribers[t] = append(subs[:i], subs[i+1:]...)
						break
					}
				}
			}
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Shutdown closes every subscriber channel. Later publishes are dropped.
func (b *EventBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown {
		return
	}
	b.isShutdown = true

	unique := make(map[chan Event]struct{})
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			unique[ch] = struct{}{}
		}
	}
	for ch := range unique {
		close(ch)
	}
	b.subscribers = make(map[EventType][]chan Event)
}

package services

import (
	"sync"
	"time"
)

// Event topics.
const (
	TopicCartChanged  = "cart.changed"
	TopicMenuReplaced = "menu.replaced"
	TopicOrderPlaced  = "order.placed"
	TopicOrderQueued  = "order.queued"
	TopicOrderSynced  = "order.synced"
)

// Event is emitted by a service command after its change is persisted.
type Event struct {
	Topic string    `json:"topic"`
	Data  any       `json:"data,omitempty"`
	Time  time.Time `json:"time"`
}

// EventBus delivers events synchronously to every subscriber.
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function removing it.
func (b *EventBus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish is a no-op on a nil bus.
func (b *EventBus) Publish(topic string, data any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	e := Event{Topic: topic, Data: data, Time: time.Now()}
	for _, fn := range subs {
		fn(e)
	}
}

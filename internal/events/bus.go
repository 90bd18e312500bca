package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// Bus fans events out to in-process subscribers and remembers the last
// event of every group. Publishing never blocks: events for a subscriber
// whose buffer is full are dropped and counted.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	last    map[int64]Event
	nextID  int
	buffer  int
	dropped atomic.Uint64
}

var (
	_ Sink           = (*Bus)(nil)
	_ LastEventStore = (*Bus)(nil)
)

// NewBus creates a bus whose subscriptions buffer up to buffer events
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{subs: make(map[int]chan Event), last: make(map[int64]Event), buffer: buffer}
}

// Subscribe returns a channel receiving every following event and a function
// that ends the subscription and closes the channel
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish implements Sink
func (b *Bus) Publish(_ context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last[event.GroupID] = event

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// LastEvent implements LastEventStore
func (b *Bus) LastEvent(_ context.Context, groupID int64) (Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	event, ok := b.last[groupID]
	if !ok {
		return Event{}, ErrNoEvent
	}
	return event, nil
}

// Dropped returns the number of events dropped for slow subscribers
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribers returns the number of active subscriptions
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

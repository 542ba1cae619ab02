// Package push implements the in-process fan-out for change notifications.
// Mutating endpoints publish small structured events scoped to an academic
// year; browser sessions subscribe per year over SSE. Delivery is best
// effort: a slow subscriber loses events rather than blocking the publisher.
package push

import (
	"sync"
)

// Event is a single change notification for one academic year.
type Event struct {
	Year    int         `json:"year"`
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

// Broker fans events out to per-year subscribers.
type Broker struct {
	mu         sync.RWMutex
	subs       map[int]map[chan Event]struct{}
	bufferSize int
}

// NewBroker creates a broker. bufferSize bounds each subscriber channel.
func NewBroker(bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Broker{
		subs:       make(map[int]map[chan Event]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a listener for the given year. The returned cancel
// function must be called exactly once; it closes the channel.
func (b *Broker) Subscribe(year int) (<-chan Event, func()) {
	ch := make(chan Event, b.bufferSize)

	b.mu.Lock()
	if b.subs[year] == nil {
		b.subs[year] = make(map[chan Event]struct{})
	}
	b.subs[year][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[year]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(b.subs, year)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of its year. Subscribers
// with a full buffer are skipped.
func (b *Broker) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[event.Year] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscribers for a year.
func (b *Broker) SubscriberCount(year int) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[year])
}

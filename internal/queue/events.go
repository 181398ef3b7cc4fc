package queue

import (
	"sync"
	"time"
)

type EventKind string

const (
	EventQueued    EventKind = "queued"
	EventActive    EventKind = "active"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventStalled   EventKind = "stalled"
	EventProgress  EventKind = "progress"
)

// Event is one job lifecycle transition.
type Event struct {
	Kind     EventKind
	Queue    string
	Name     string
	JobID    uint64
	Err      string
	Progress int
	At       time.Time
}

// Bus fans lifecycle events out to subscribers. Publish never blocks: a
// subscriber that stops draining loses events instead of stalling workers.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 256)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

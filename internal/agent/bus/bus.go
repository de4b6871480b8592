// Package bus carries drain announcements between sync engines so two
// drains never push the same queue concurrently.
package bus

import (
	"sync"
	"time"
)

type EventType string

const (
	EventDrainStarted  EventType = "drain-started"
	EventDrainFinished EventType = "drain-finished"
)

// Event is one announcement. SenderID identifies the announcing engine so
// listeners can ignore their own broadcasts.
type Event struct {
	Type     EventType
	SenderID string
	At       time.Time
}

type Bus interface {
	Announce(e Event)
	// Subscribe returns a channel of future events and a cancel func.
	Subscribe() (<-chan Event, func())
}

// Memory is an in-process bus. A slow subscriber drops events rather than
// blocking the announcer; drain coordination tolerates a missed event
// because the staleness cutoff bounds how long a stale claim can defer
// anyone.
type Memory struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[int]chan Event)}
}

func (b *Memory) Announce(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *Memory) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 16)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

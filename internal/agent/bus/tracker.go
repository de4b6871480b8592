package bus

import (
	"context"
	"sync"
	"time"

	"github.com/fieldsync/fieldsync/internal/clockx"
)

// StaleAfter bounds how long an unfinished drain claim defers peers. A
// crashed engine that never announced drain-finished must not wedge the
// queue forever.
const StaleAfter = 30 * time.Second

// Tracker listens to drain announcements and answers whether some other
// engine is currently draining.
type Tracker struct {
	self  string
	clock clockx.Clock

	mu    sync.Mutex
	peers map[string]time.Time
}

func NewTracker(self string, clock clockx.Clock) *Tracker {
	return &Tracker{self: self, clock: clock, peers: make(map[string]time.Time)}
}

// Observe folds one announcement into the tracker state.
func (t *Tracker) Observe(e Event) {
	if e.SenderID == t.self {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e.Type {
	case EventDrainStarted:
		t.peers[e.SenderID] = e.At
	case EventDrainFinished:
		delete(t.peers, e.SenderID)
	}
}

// PeerDraining reports whether a foreign drain claim is active and fresh.
func (t *Tracker) PeerDraining() bool {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, started := range t.peers {
		if now.Sub(started) > StaleAfter {
			delete(t.peers, id)
			continue
		}
		return true
	}
	return false
}

// Run consumes announcements from the bus until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, b Bus) {
	events, cancel := b.Subscribe()
	defer cancel()
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			t.Observe(e)
		case <-ctx.Done():
			return
		}
	}
}

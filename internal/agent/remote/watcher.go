package remote

import (
	"context"
	"sync"
	"time"

	"github.com/fieldsync/fieldsync/internal/clockx"
	"github.com/fieldsync/fieldsync/internal/logging"
)

// Pinger is the connectivity probe the watcher drives.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher polls the remote store and tracks whether the device is online.
// Transitions from offline to online fire the registered reconnect hooks in
// registration order, synchronously, so callers can sequence drain before
// pull.
type Watcher struct {
	pinger   Pinger
	clock    clockx.Clock
	logger   logging.Logger
	interval time.Duration

	mu          sync.Mutex
	online      bool
	checked     bool
	onReconnect []func(ctx context.Context)
	onOffline   []func(ctx context.Context)
}

func NewWatcher(pinger Pinger, clock clockx.Clock, logger logging.Logger, interval time.Duration) *Watcher {
	return &Watcher{
		pinger:   pinger,
		clock:    clock,
		logger:   logger.With("component", "connectivity"),
		interval: interval,
	}
}

func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// OnReconnect registers a hook fired on each offline-to-online transition.
// The first successful probe counts as a reconnect.
func (w *Watcher) OnReconnect(fn func(ctx context.Context)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReconnect = append(w.onReconnect, fn)
}

func (w *Watcher) OnOffline(fn func(ctx context.Context)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onOffline = append(w.onOffline, fn)
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		w.Check(ctx)
		if err := w.clock.Sleep(ctx, w.interval); err != nil {
			return err
		}
	}
}

// Check probes connectivity once and fires transition hooks.
func (w *Watcher) Check(ctx context.Context) {
	err := w.pinger.Ping(ctx)
	nowOnline := err == nil

	w.mu.Lock()
	wasOnline := w.online
	firstCheck := !w.checked
	w.online = nowOnline
	w.checked = true
	var hooks []func(ctx context.Context)
	if nowOnline && (firstCheck || !wasOnline) {
		hooks = append(hooks, w.onReconnect...)
	}
	if !nowOnline && wasOnline {
		hooks = append(hooks, w.onOffline...)
	}
	w.mu.Unlock()

	if nowOnline && (firstCheck || !wasOnline) {
		w.logger.Info(ctx, "connection established")
	}
	if !nowOnline && wasOnline {
		w.logger.Warn(ctx, "connection lost", "error", err)
	}
	for _, fn := range hooks {
		fn(ctx)
	}
}

package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/fieldsync/internal/clockx"
	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

func newWatcher(p Pinger) *Watcher {
	return NewWatcher(p, clockx.NewManual(time.UnixMilli(0)), logging.NewDiscard(), 30*time.Second)
}

func TestCheck_Transitions(t *testing.T) {
	p := &fakePinger{}
	w := newWatcher(p)
	ctx := context.Background()

	var reconnects, offlines int
	w.OnReconnect(func(context.Context) { reconnects++ })
	w.OnOffline(func(context.Context) { offlines++ })

	require.False(t, w.Online())

	// first successful probe counts as a reconnect
	w.Check(ctx)
	assert.True(t, w.Online())
	assert.Equal(t, 1, reconnects)

	// staying online fires nothing
	w.Check(ctx)
	assert.Equal(t, 1, reconnects)

	p.err = syncerr.ErrUnavailable
	w.Check(ctx)
	assert.False(t, w.Online())
	assert.Equal(t, 1, offlines)

	// staying offline fires nothing
	w.Check(ctx)
	assert.Equal(t, 1, offlines)

	p.err = nil
	w.Check(ctx)
	assert.True(t, w.Online())
	assert.Equal(t, 2, reconnects)
}

func TestCheck_StartsOffline(t *testing.T) {
	p := &fakePinger{err: syncerr.ErrUnavailable}
	w := newWatcher(p)

	var reconnects int
	w.OnReconnect(func(context.Context) { reconnects++ })

	w.Check(context.Background())
	assert.False(t, w.Online())
	assert.Equal(t, 0, reconnects, "a failed first probe is not a reconnect")
}

func TestRun_StopsOnCancel(t *testing.T) {
	w := newWatcher(&fakePinger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

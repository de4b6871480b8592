package clockx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_AdvanceMovesNow(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewManual(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
}

func TestManual_SleepAdvancesWithoutBlocking(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewManual(start)

	done := make(chan struct{})
	go func() {
		_ = c.Sleep(context.Background(), time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("manual sleep must not block")
	}
	assert.Equal(t, start.Add(time.Hour), c.Now())
}

func TestManual_SleepHonorsCancelledContext(t *testing.T) {
	c := NewManual(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, c.Sleep(ctx, time.Minute))
}

func TestReal_SleepInterruptible(t *testing.T) {
	c := NewReal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Sleep(ctx, 10 * time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

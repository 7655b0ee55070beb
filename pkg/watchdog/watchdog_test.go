package watchdog

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchdogDoesNotFireWhileTouched(t *testing.T) {
	var starved atomic.Int32
	w := New(func() { starved.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	defer func() { cancel(); w.Stop() }()

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		w.Touch()
		time.Sleep(20 * time.Millisecond)
	}

	require.Zero(t, starved.Load())
}

func TestWatchdogFiresOnceAfterStarvation(t *testing.T) {
	var starved atomic.Int32
	w := New(func() { starved.Add(1) })
	// Back-date the last touch past StarvationTimeout so the next poll
	// tick fires immediately instead of waiting the full real-time window.
	w.lastTouchNanos.Store(time.Now().Add(-2 * StarvationTimeout).UnixNano())

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	defer func() { cancel(); w.Stop() }()

	require.Eventually(t, func() bool {
		return starved.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// Still starved on the next several ticks; onStarved must not re-fire
	// until Touch resets the starved flag.
	time.Sleep(2 * checkInterval)
	require.Equal(t, int32(1), starved.Load())
}

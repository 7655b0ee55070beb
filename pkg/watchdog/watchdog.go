// Package watchdog implements the Watchdog & Device Monitor: starvation
// detection on the Chunker's frame output, and device-list re-enumeration
// to detect hot-plug/default changes, per §4.12.
package watchdog

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// StarvationTimeout is the fixed threshold named in §4.12: no frame emitted
// for this long triggers a capture restart request.
const StarvationTimeout = 5 * time.Second

// checkInterval is how often the Watchdog polls its last-touch timestamp.
// Smaller than StarvationTimeout so the 5s bound is honored with margin.
const checkInterval = 500 * time.Millisecond

// Watchdog observes Chunker frame emissions via Touch and requests a
// capture restart through onStarved if StarvationTimeout elapses with no
// touch.
type Watchdog struct {
	lastTouchNanos atomic.Int64
	onStarved      func()

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Watchdog that calls onStarved at most once per starvation
// episode; onStarved is expected to request a capture restart (e.g.
// audio.Handle.RequestRestart) and is called from the Watchdog's own
// goroutine, never from the audio callback.
func New(onStarved func()) *Watchdog {
	w := &Watchdog{onStarved: onStarved, done: make(chan struct{})}
	w.Touch()
	return w
}

// Touch records that a frame was just emitted. Call this once per canonical
// frame produced by the Chunker.
func (w *Watchdog) Touch() {
	w.lastTouchNanos.Store(time.Now().UnixNano())
}

// Start launches the polling goroutine. Stop cancels it.
func (w *Watchdog) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.run(ctx)
}

// Stop ends the polling goroutine and waits for it to exit.
func (w *Watchdog) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
}

func (w *Watchdog) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	starved := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, w.lastTouchNanos.Load())
			silent := time.Since(last)
			if silent >= StarvationTimeout {
				if !starved {
					log.Printf("[watchdog] no frame for %v, requesting capture restart", silent)
					starved = true
					if w.onStarved != nil {
						w.onStarved()
					}
				}
			} else {
				starved = false
			}
		}
	}
}

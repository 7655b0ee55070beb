package pipeline

import (
	"log"
	"sync"
)

// ClearableChan is a bounded, mutex-guarded channel that never blocks its
// sender: Send drops and logs when the buffer is full instead of stalling
// the caller. Clear drains any buffered values in one shot, used when a
// consumer resynchronises after falling behind (e.g. a Broadcast subscriber
// that just received a Lagged signal) and wants to discard stale backlog
// rather than catch up frame-by-frame.
type ClearableChan[T any] struct {
	mu sync.Mutex
	ch chan T
}

// NewClearableChan creates a ClearableChan with the given buffer size.
func NewClearableChan[T any](size int) *ClearableChan[T] {
	return &ClearableChan[T]{
		ch: make(chan T, size),
	}
}

// Send enqueues val, dropping it (and logging) if the buffer is full.
func (cc *ClearableChan[T]) Send(val T) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	select {
	case cc.ch <- val:
	default:
		log.Printf("[pipeline] channel full, dropping value: %+v", val)
	}
}

// Recv blocks until a value is available.
func (cc *ClearableChan[T]) Recv() T {
	return <-cc.ch
}

// Chan exposes the receive-only side for select statements.
func (cc *ClearableChan[T]) Chan() <-chan T {
	return cc.ch
}

// Clear discards any values currently buffered.
func (cc *ClearableChan[T]) Clear() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	for {
		select {
		case <-cc.ch:
		default:
			return
		}
	}
}

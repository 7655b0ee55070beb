package audio

import (
	"sync"
	"sync/atomic"
)

// Subscription is a single Broadcast consumer's view: a bounded channel of
// canonical frames plus a Lagged counter that increments every time this
// subscriber fell behind and had a frame dropped on its behalf.
type Subscription struct {
	ch     chan CanonicalFrame
	lagged atomic.Uint64
}

// Frames yields canonical frames in arrival order; a gap in delivery is
// reflected by an increase in Lagged.
func (s *Subscription) Frames() <-chan CanonicalFrame {
	return s.ch
}

// Lagged returns the number of frames dropped for this subscriber so far.
func (s *Subscription) Lagged() uint64 {
	return s.lagged.Load()
}

// Broadcast fans canonical frames out to multiple subscribers. Publish never
// blocks: a subscriber whose channel is full has its oldest buffered frame
// dropped to make room for the new one, and its Lagged counter is
// incremented — audio freshness outranks completeness for every downstream
// consumer, per §4.6.
type Broadcast struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	bufSize int
}

// NewBroadcast creates a Broadcast whose subscriber channels each buffer
// bufSize frames.
func NewBroadcast(bufSize int) *Broadcast {
	return &Broadcast{
		subs:    make(map[*Subscription]struct{}),
		bufSize: bufSize,
	}
}

// Subscribe registers a new consumer and returns its handle.
func (b *Broadcast) Subscribe() *Subscription {
	s := &Subscription{ch: make(chan CanonicalFrame, b.bufSize)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes sub. Safe to call once a consumer is done; further
// Publish calls simply skip it.
func (b *Broadcast) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Publish delivers f to every current subscriber without blocking.
func (b *Broadcast) Publish(f CanonicalFrame) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- f:
			continue
		default:
		}

		select {
		case <-sub.ch:
		default:
		}

		select {
		case sub.ch <- f:
		default:
		}
		sub.lagged.Add(1)
	}
}

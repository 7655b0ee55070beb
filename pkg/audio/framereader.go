package audio

import (
	"context"
	"time"
)

// FrameReader drains the Audio Ring and hands normalised, mono, 16-bit
// blocks to whatever consumes Out(). It runs in the cooperative runtime: a
// ring that is momentarily empty makes the reader suspend on a short timer
// rather than spin, per §4.4.
type FrameReader struct {
	ring     *Ring
	out      chan []int16
	pollIdle time.Duration
	batch    int
}

// NewFrameReader creates a FrameReader draining ring in batches of
// batchSamples, polling every pollIdle when the ring is empty.
func NewFrameReader(ring *Ring, batchSamples int, pollIdle time.Duration) *FrameReader {
	return &FrameReader{
		ring:     ring,
		out:      make(chan []int16, 4),
		pollIdle: pollIdle,
		batch:    batchSamples,
	}
}

// Out yields normalised sample blocks in arrival order.
func (f *FrameReader) Out() <-chan []int16 {
	return f.out
}

// Run drains the ring until ctx is cancelled, then closes Out.
func (f *FrameReader) Run(ctx context.Context) {
	defer close(f.out)
	buf := make([]int16, f.batch)

	timer := time.NewTimer(f.pollIdle)
	defer timer.Stop()

	for {
		n := f.ring.PopSlice(buf)
		if n == 0 {
			timer.Reset(f.pollIdle)
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				continue
			}
		}

		block := make([]int16, n)
		copy(block, buf[:n])

		select {
		case f.out <- block:
		case <-ctx.Done():
			return
		}
	}
}

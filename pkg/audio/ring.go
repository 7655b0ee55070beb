// Package audio implements the real-time capture-and-dispatch path:
// the lock-free Audio Ring, the Frame Reader, the Chunker/Resampler, and
// the Broadcast Bus that fans canonical frames out to subscribers.
package audio

import "sync/atomic"

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Ring is a fixed-capacity, single-producer/single-consumer lock-free ring
// of signed 16-bit samples. Exactly one goroutine (or OS thread) may call
// PushSlice; exactly one other may call PopSlice; crossing these roles is
// undefined, per the Audio Ring contract. Capacity is rounded up to a power
// of two so index wraparound is a mask instead of a modulo, the idiom used
// by rustyguts-bken's jitter buffer.
//
// The write and read cursors only ever increase; the buffer index for a
// cursor value v is v & mask. This avoids the ambiguity a bare [0,capacity)
// index pair has between "full" and "empty" without a sentinel.
type Ring struct {
	buf  []int16
	mask uint64

	writeCursor atomic.Uint64
	readCursor  atomic.Uint64

	overflow atomic.Uint64
}

// NewRing creates a Ring capable of holding at least minCapacity samples.
// minCapacity is rounded up to the next power of two.
func NewRing(minCapacity int) *Ring {
	cap := nextPow2(minCapacity)
	return &Ring{
		buf:  make([]int16, cap),
		mask: uint64(cap - 1),
	}
}

// Capacity returns the ring's usable capacity in samples.
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// OverflowCount returns the number of samples dropped because the ring was
// full at push time.
func (r *Ring) OverflowCount() uint64 {
	return r.overflow.Load()
}

// PushSlice writes as many samples from data as fit, starting from the
// front, and returns the count actually written. It never blocks. If data
// does not fully fit, the tail of data (the newest samples in this call) is
// dropped and the overflow counter is incremented by the shortfall: this is
// a short count at the ring boundary, drop-newest rather than the
// drop-oldest framing in §5's backpressure table. The ring never evicts
// samples it has already buffered to make room for new ones — doing so
// lock-free without racing the consumer's in-progress PopSlice is not
// possible — so the producer simply records the drop and does not retry.
func (r *Ring) PushSlice(data []int16) int {
	if len(data) == 0 {
		return 0
	}

	write := r.writeCursor.Load()
	read := r.readCursor.Load()
	free := int(r.mask+1) - int(write-read)
	if free < 0 {
		free = 0
	}

	n := len(data)
	if n > free {
		dropped := n - free
		r.overflow.Add(uint64(dropped))
		n = free
	}
	if n == 0 {
		return 0
	}

	for i := 0; i < n; i++ {
		idx := (write + uint64(i)) & r.mask
		r.buf[idx] = data[i]
	}
	r.writeCursor.Store(write + uint64(n))
	return n
}

// PopSlice reads as many samples as are available, up to len(out), and
// returns the count actually read. Partial transfers are legal; the caller
// should retry or wait (yield/short timer) if fewer samples than wanted
// came back. It never blocks.
func (r *Ring) PopSlice(out []int16) int {
	if len(out) == 0 {
		return 0
	}

	read := r.readCursor.Load()
	write := r.writeCursor.Load()
	available := int(write - read)
	if available <= 0 {
		return 0
	}

	n := len(out)
	if n > available {
		n = available
	}

	for i := 0; i < n; i++ {
		idx := (read + uint64(i)) & r.mask
		out[i] = r.buf[idx]
	}
	r.readCursor.Store(read + uint64(n))
	return n
}

// Available returns the number of samples currently buffered and ready to
// read. It is a snapshot; under concurrent use the true value may have
// already changed by the time the caller acts on it.
func (r *Ring) Available() int {
	return int(r.writeCursor.Load() - r.readCursor.Load())
}

package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingCapacityRoundsToPowerOfTwo(t *testing.T) {
	r := NewRing(100)
	assert.Equal(t, 128, r.Capacity())

	r2 := NewRing(128)
	assert.Equal(t, 128, r2.Capacity())
}

func TestRingPushPopRoundTrip(t *testing.T) {
	r := NewRing(16)
	in := []int16{1, 2, 3, 4, 5}

	n := r.PushSlice(in)
	require.Equal(t, len(in), n)

	out := make([]int16, 8)
	got := r.PopSlice(out)
	require.Equal(t, len(in), got)
	assert.Equal(t, in, out[:got])
}

func TestRingPartialTransferIsLegal(t *testing.T) {
	r := NewRing(4)
	in := []int16{1, 2, 3, 4, 5, 6}

	n := r.PushSlice(in)
	assert.Equal(t, 4, n)
	assert.Equal(t, uint64(2), r.OverflowCount())

	out := make([]int16, 2)
	got := r.PopSlice(out)
	assert.Equal(t, 2, got)
}

func TestRingOverflowNeverPanicsAndCounterStrictlyIncreases(t *testing.T) {
	r := NewRing(8)
	last := r.OverflowCount()

	for i := 0; i < 100; i++ {
		r.PushSlice([]int16{int16(i), int16(i + 1), int16(i + 2), int16(i + 3), int16(i + 4), int16(i + 5), int16(i + 6), int16(i + 7), int16(i + 8), int16(i + 9)})
		cur := r.OverflowCount()
		assert.Greater(t, cur, last)
		last = cur
	}
	assert.Positive(t, r.OverflowCount())
}

func TestRingPopOnEmptyReturnsZero(t *testing.T) {
	r := NewRing(8)
	out := make([]int16, 4)
	assert.Equal(t, 0, r.PopSlice(out))
}

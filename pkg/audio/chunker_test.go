package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkerBypassIdentityAtCanonicalRate(t *testing.T) {
	c, err := NewChunker(CanonicalSampleRate, QualityBalanced)
	require.NoError(t, err)
	defer c.Close()

	samples := make([]int16, FrameSamples)
	for i := range samples {
		samples[i] = int16(i)
	}

	frames, err := c.Feed(samples)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, samples, frames[0].Samples[:])
}

func TestChunkerRetainsResidualAcrossCalls(t *testing.T) {
	c, err := NewChunker(CanonicalSampleRate, QualityBalanced)
	require.NoError(t, err)
	defer c.Close()

	first, err := c.Feed(make([]int16, 300))
	require.NoError(t, err)
	require.Empty(t, first)

	second, err := c.Feed(make([]int16, 300))
	require.NoError(t, err)
	require.Len(t, second, 1)
}

func TestChunkerTimestampsAreMonotonicAndSpacedBy32ms(t *testing.T) {
	c, err := NewChunker(CanonicalSampleRate, QualityBalanced)
	require.NoError(t, err)
	defer c.Close()

	frames, err := c.Feed(make([]int16, FrameSamples*3))
	require.NoError(t, err)
	require.Len(t, frames, 3)

	for i := 1; i < len(frames); i++ {
		require.Equal(t, frames[i-1].TimestampMs+32, frames[i].TimestampMs)
	}
}

func TestChunkerResetClearsResidualAndTimestamp(t *testing.T) {
	c, err := NewChunker(CanonicalSampleRate, QualityBalanced)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Feed(make([]int16, FrameSamples+10))
	require.NoError(t, err)

	c.Reset()

	frames, err := c.Feed(make([]int16, FrameSamples))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, int64(0), frames[0].TimestampMs)
}

func TestPrefilterTapsScaleWithQuality(t *testing.T) {
	fast := &Chunker{quality: QualityFast}
	balanced := &Chunker{quality: QualityBalanced}
	quality := &Chunker{quality: QualityQuality}

	require.Equal(t, 0, fast.prefilterTaps())
	require.Equal(t, 1, balanced.prefilterTaps())
	require.Equal(t, 2, quality.prefilterTaps())
}

func TestPrefilterSmoothsSamplesWithoutChangingLength(t *testing.T) {
	samples := []int16{0, 1000, -1000, 500, -500, 0}

	require.Equal(t, samples, prefilter(samples, 0))

	smoothed := prefilter(samples, 1)
	require.Len(t, smoothed, len(samples))
	require.NotEqual(t, samples, smoothed)
}

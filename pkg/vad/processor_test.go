package vad

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loudWindow(n int) []int16 {
	w := make([]int16, n)
	for i := range w {
		w[i] = 5000
	}
	return w
}

func TestProcessorDebounceBoundaryJustBelowMinDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSpeechDurationMs = 100
	cfg.EnergyGateThreshold = 0.001
	p := NewProcessor(NewMockDetectorWithProb(0.9), cfg)

	const windowMs = 1
	const samplesPerMs = 16000 / 1000

	var lastEvt *Event
	for i := 0; i < 99; i++ {
		evt, err := p.ProcessWindow(loudWindow(samplesPerMs*windowMs), int64(i))
		require.NoError(t, err)
		if evt != nil {
			lastEvt = evt
		}
	}

	assert.Nil(t, lastEvt, "99ms of qualifying speech should not yet cross a 100ms debounce")
	assert.Equal(t, StateSilent, p.State())
}

func TestProcessorDebounceBoundaryAtMinDurationFiresExactlyOnePair(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSpeechDurationMs = 100
	cfg.MinSilenceDurationMs = 50
	cfg.EnergyGateThreshold = 0.001
	p := NewProcessor(NewMockDetectorWithProb(0.9), cfg)

	const samplesPerMs = 16000 / 1000

	var starts, ends int
	for i := 0; i < 100; i++ {
		evt, err := p.ProcessWindow(loudWindow(samplesPerMs), int64(i))
		require.NoError(t, err)
		if evt != nil {
			require.Equal(t, SpeechStart, evt.Kind)
			starts++
		}
	}
	require.Equal(t, 1, starts)
	require.Equal(t, StateActive, p.State())

	silence := make([]int16, samplesPerMs)
	for i := 0; i < 60; i++ {
		evt, err := p.ProcessWindow(silence, int64(100+i))
		require.NoError(t, err)
		if evt != nil {
			require.Equal(t, SpeechEnd, evt.Kind)
			ends++
		}
	}

	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, ends)
}

func TestProcessorSilentFastEnergyGateStillCountsTowardSilenceHeld(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSpeechDurationMs = 10
	cfg.MinSilenceDurationMs = 50
	cfg.EnergyGateThreshold = 0.05
	detector := NewMockDetectorWithProb(0.9)
	p := NewProcessor(detector, cfg)

	const samplesPerMs = 16000 / 1000

	for i := 0; i < 10; i++ {
		p.ProcessWindow(loudWindow(samplesPerMs), int64(i))
	}
	require.Equal(t, StateActive, p.State())

	quiet := make([]int16, samplesPerMs)
	var endEvt *Event
	for i := 0; i < 50; i++ {
		evt, err := p.ProcessWindow(quiet, int64(10+i))
		require.NoError(t, err)
		if evt != nil {
			endEvt = evt
		}
	}

	require.NotNil(t, endEvt, "silent-fast windows below the energy gate must still be able to close a segment")
	assert.Equal(t, SpeechEnd, endEvt.Kind)
}

func TestProcessorDetectorErrorIsTreatedAsSilentFastNotPanic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnergyGateThreshold = 0.001
	failing := &MockDetector{
		InferFunc: func(samples []float32) (float32, error) {
			return 0, errors.New("mock detector failure")
		},
	}
	p := NewProcessor(failing, cfg)

	assert.NotPanics(t, func() {
		_, err := p.ProcessWindow(loudWindow(16), 0)
		require.NoError(t, err)
	})
	assert.Equal(t, StateSilent, p.State())
}

package stt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldvox/coldvox/pkg/audio"
	"github.com/coldvox/coldvox/pkg/vad"
)

func frameAt(tsMs int64) audio.CanonicalFrame {
	return audio.CanonicalFrame{TimestampMs: tsMs}
}

func TestSegmenterForceClosesAtMaxDuration(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.Register(NewMockProvider("mock", "text"))
	m.Select("mock", nil, SelectionPolicy{})

	var mu sync.Mutex
	var events []TranscriptEvent
	done := make(chan struct{}, 1)
	sg := NewSegmenter(m, 100, func(evt TranscriptEvent) {
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
		done <- struct{}{}
	})

	ctx := context.Background()
	sg.OnVADEvent(ctx, vad.Event{Kind: vad.SpeechStart, TimestampMs: 0})
	sg.OnFrame(ctx, frameAt(50))
	sg.OnFrame(ctx, frameAt(150)) // exceeds the 100ms cap, force-closes

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forced segment close")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	require.NotNil(t, events[0].EndEvent)
	assert.True(t, events[0].EndEvent.ForcedByCap)
}

func TestSegmenterDropsSpeechStartWhilePriorSegmentStillStreaming(t *testing.T) {
	m := NewManager(DefaultConfig())
	block := make(chan struct{})
	slow := &MockProvider{
		NameValue:  "slow",
		LocalValue: true,
		MemoryMB:   1,
		RecognizeFunc: func(samples []int16) (*TranscriptionResult, error) {
			<-block
			return &TranscriptionResult{Text: "slow-done"}, nil
		},
	}
	m.Register(slow)
	m.Select("slow", nil, SelectionPolicy{})

	var mu sync.Mutex
	var events []TranscriptEvent
	sg := NewSegmenter(m, 0, func(evt TranscriptEvent) {
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
	})

	ctx := context.Background()
	sg.OnVADEvent(ctx, vad.Event{Kind: vad.SpeechStart, TimestampMs: 0})
	sg.OnVADEvent(ctx, vad.Event{Kind: vad.SpeechEnd, TimestampMs: 100})

	// While the first segment's plugin call is still blocked, a second
	// SpeechStart must be dropped rather than opening a concurrent segment.
	time.Sleep(20 * time.Millisecond)
	sg.OnVADEvent(ctx, vad.Event{Kind: vad.SpeechStart, TimestampMs: 200})

	mu.Lock()
	noEventsYet := len(events) == 0
	mu.Unlock()
	assert.True(t, noEventsYet)

	close(block)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, "slow-done", events[0].Result.Text)
}

package hotkey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coldvox/coldvox/pkg/vad"
)

func TestHandleSetModeForwardsWithoutBlocking(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	h := &Handle{
		events: make(chan vad.Event, 1),
		modeCh: make(chan Mode, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	close(h.done)

	h.SetMode(ModeHotkey)
	assert.Equal(t, ModeHotkey, <-h.modeCh)

	// A second SetMode while the channel is still full must not block.
	h.SetMode(ModeVAD)
	h.SetMode(ModeHotkey)
}

func TestHandleStopWaitsForDone(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h := &Handle{
		events: make(chan vad.Event),
		modeCh: make(chan Mode, 1),
		cancel: cancel,
		done:   done,
	}
	close(done)
	h.Stop()
}

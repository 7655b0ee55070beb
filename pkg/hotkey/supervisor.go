// Package hotkey implements the Hotkey/Activation Supervisor: in Hotkey
// activation mode it listens for a global key press/release and synthesizes
// VAD-shaped SpeechStart/SpeechEnd events onto the same event path the VAD
// Processor uses.
package hotkey

import (
	"context"
	"errors"

	"github.com/coldvox/coldvox/pkg/vad"
)

// ErrUnsupportedPlatform is returned by Spawn on platforms without a
// concrete key-listening backend.
var ErrUnsupportedPlatform = errors.New("hotkey: unsupported platform")

// Mode selects whether the Supervisor is actively listening. In ModeVAD the
// supervisor is idle, per §4.10.
type Mode int

const (
	ModeVAD Mode = iota
	ModeHotkey
)

// Config names the key to listen for and, optionally, a specific input
// device path; an empty DevicePath triggers auto-discovery of the first
// keyboard-capable device.
type Config struct {
	DevicePath string
	KeyName    string // e.g. "KEY_RIGHTCTRL"
}

// Handle controls a running Supervisor.
type Handle struct {
	events chan vad.Event
	modeCh chan Mode
	cancel context.CancelFunc
	done   chan struct{}
}

// Events yields synthesized SpeechStart/SpeechEnd events while in Hotkey
// mode.
func (h *Handle) Events() <-chan vad.Event { return h.events }

// SetMode reconfigures the Supervisor's subscription without restarting
// capture, per §4.10.
func (h *Handle) SetMode(mode Mode) {
	select {
	case h.modeCh <- mode:
	default:
	}
}

// Stop ends the listener goroutine.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

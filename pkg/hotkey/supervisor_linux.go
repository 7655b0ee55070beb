//go:build linux

package hotkey

import (
	"context"
	"log"

	"github.com/gvalkov/golang-evdev"

	"github.com/coldvox/coldvox/pkg/vad"
)

// Spawn opens cfg.DevicePath (or auto-discovers the first device exposing
// EV_KEY capabilities) and starts a listener goroutine synthesizing
// SpeechStart on key-down and SpeechEnd on key-up for cfg.KeyName, while in
// ModeHotkey. initialMode selects the Supervisor's starting subscription.
func Spawn(cfg Config, initialMode Mode) (*Handle, error) {
	dev, err := openDevice(cfg.DevicePath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		events: make(chan vad.Event, 8),
		modeCh: make(chan Mode, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go listen(ctx, dev, cfg.KeyName, initialMode, h)
	return h, nil
}

func openDevice(path string) (*evdev.InputDevice, error) {
	if path != "" {
		return evdev.Open(path)
	}
	devices, err := evdev.ListInputDevices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if _, ok := d.Capabilities[evdev.EV_KEY]; ok {
			return d, nil
		}
	}
	return nil, ErrUnsupportedPlatform
}

func listen(ctx context.Context, dev *evdev.InputDevice, keyName string, mode Mode, h *Handle) {
	defer close(h.done)
	defer dev.File.Close()

	keyCode, ok := evdev.KEY[keyName]
	if !ok {
		log.Printf("[hotkey] unknown key name %q, supervisor idle", keyName)
		<-ctx.Done()
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case mode = <-h.modeCh:
		default:
		}

		evt, err := dev.ReadOne()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.Printf("[hotkey] read error: %v", err)
			continue
		}

		if mode != ModeHotkey || evt.Type != evdev.EV_KEY || int(evt.Code) != keyCode {
			continue
		}

		switch evt.Value {
		case 1: // key down
			select {
			case h.events <- vad.Event{Kind: vad.SpeechStart}:
			default:
			}
		case 0: // key up
			select {
			case h.events <- vad.Event{Kind: vad.SpeechEnd}:
			default:
			}
		}
	}
}

package audio

import (
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// CaptureConfig tunes the Capture Thread's preflight check and restart
// backoff.
type CaptureConfig struct {
	SampleRate int
	Channels   int

	PreflightTimeout time.Duration // 3-5s per §4.2

	RestartInitialDelay time.Duration
	RestartFactor        float64
	RestartMaxDelay       time.Duration
}

// DefaultCaptureConfig returns the defaults named in SPEC_FULL.md/spec.md.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:           16000,
		Channels:             1,
		PreflightTimeout:     4 * time.Second,
		RestartInitialDelay:  200 * time.Millisecond,
		RestartFactor:        2.0,
		RestartMaxDelay:      5 * time.Second,
	}
}

// DeviceChanged is delivered on a Handle's notification channel whenever the
// Capture Thread opens a new device, including the initial open and any
// restart.
type DeviceChanged struct {
	Descriptor DeviceDescriptor
	Err        error
}

// Handle is returned by Spawn: a stop token plus a channel of device
// lifecycle notifications.
type Handle struct {
	stop    chan struct{}
	done    chan struct{}
	changed chan DeviceChanged

	restartRequest chan struct{}
	framesSeen     atomic.Int64
}

// Changed yields a DeviceChanged notification every time the Capture Thread
// opens or reopens a device.
func (h *Handle) Changed() <-chan DeviceChanged {
	return h.changed
}

// RequestRestart asks the Capture Thread to tear down and reopen its
// device, e.g. in response to a Watchdog starvation signal or a Device
// Monitor hot-plug notification. Non-blocking; a restart already in flight
// absorbs redundant requests.
func (h *Handle) RequestRestart() {
	select {
	case h.restartRequest <- struct{}{}:
	default:
	}
}

// FramesSeen returns the running count of callback invocations that
// delivered at least one sample, used by the preflight check and available
// to the Watchdog for diagnostics.
func (h *Handle) FramesSeen() int64 {
	return h.framesSeen.Load()
}

// Stop signals the Capture Thread to stop and waits up to timeout for it to
// drain and join. If the timeout elapses the goroutine is abandoned with a
// logged warning rather than blocking shutdown indefinitely.
func (h *Handle) Stop(timeout time.Duration) {
	close(h.stop)
	select {
	case <-h.done:
	case <-time.After(timeout):
		log.Printf("[capture] stop timed out after %v, abandoning capture goroutine", timeout)
	}
}

// Spawn starts the Capture Thread on a dedicated OS thread. The callback
// that miniaudio invokes converts native samples to signed 16-bit mono and
// pushes them into ring with a non-blocking write; it never logs or locks
// anything shared with a consumer. Its scratch buffer is allocated on the
// first callback after each device open and reallocated whenever a larger
// block arrives; apart from that the callback does not allocate.
func Spawn(mgr *Manager, ring *Ring, pref DevicePreference, cfg CaptureConfig) *Handle {
	h := &Handle{
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
		changed:        make(chan DeviceChanged, 4),
		restartRequest: make(chan struct{}, 1),
	}

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(h.done)
		captureLoop(mgr, ring, pref, cfg, h)
	}()

	return h
}

func captureLoop(mgr *Manager, ring *Ring, pref DevicePreference, cfg CaptureConfig, h *Handle) {
	delay := cfg.RestartInitialDelay

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		desc, err := mgr.Pick(pref)
		if err != nil {
			h.changed <- DeviceChanged{Err: err}
			if !sleepOrStop(delay, h.stop) {
				return
			}
			delay = nextBackoff(delay, cfg)
			continue
		}

		deviceCfg, _, _ := mgr.Open(desc, cfg.SampleRate, cfg.Channels)

		channels := cfg.Channels
		h.framesSeen.Store(0)

		var scratch []int16
		dev, err := malgo.InitDevice(mgr.Context().Context, deviceCfg, malgo.DeviceCallbacks{
			Data: func(outputSamples, inputSamples []byte, framecount uint32) {
				n := len(inputSamples) / 2
				if n == 0 {
					return
				}
				if cap(scratch) < n {
					scratch = make([]int16, n)
				}
				scratch = scratch[:n]
				for i := 0; i < n; i++ {
					scratch[i] = int16(inputSamples[i*2]) | int16(inputSamples[i*2+1])<<8
				}

				if channels > 1 {
					mono := scratch[: n/channels]
					for i := range mono {
						var sum int32
						for c := 0; c < channels; c++ {
							sum += int32(scratch[i*channels+c])
						}
						mono[i] = int16(sum / int32(channels))
					}
					ring.PushSlice(mono)
				} else {
					ring.PushSlice(scratch)
				}
				h.framesSeen.Add(1)
			},
		})
		if err != nil {
			h.changed <- DeviceChanged{Descriptor: desc, Err: newError(ErrCaptureFatal, "failed to init capture device", err)}
			if !sleepOrStop(delay, h.stop) {
				return
			}
			delay = nextBackoff(delay, cfg)
			continue
		}

		if err := dev.Start(); err != nil {
			dev.Uninit()
			h.changed <- DeviceChanged{Descriptor: desc, Err: newError(ErrCaptureFatal, "failed to start capture device", err)}
			if !sleepOrStop(delay, h.stop) {
				return
			}
			delay = nextBackoff(delay, cfg)
			continue
		}

		h.changed <- DeviceChanged{Descriptor: desc}

		if !preflight(h, cfg.PreflightTimeout) {
			dev.Stop()
			dev.Uninit()
			h.changed <- DeviceChanged{Descriptor: desc, Err: newError(ErrDeviceUnavailable, "preflight check found no frames", nil)}
			if !sleepOrStop(delay, h.stop) {
				return
			}
			delay = nextBackoff(delay, cfg)
			continue
		}

		delay = cfg.RestartInitialDelay

		select {
		case <-h.stop:
			dev.Stop()
			dev.Uninit()
			return
		case <-h.restartRequest:
			dev.Stop()
			dev.Uninit()
			continue
		}
	}
}

func preflight(h *Handle, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if h.FramesSeen() > 0 {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return h.FramesSeen() > 0
}

func sleepOrStop(d time.Duration, stop <-chan struct{}) bool {
	select {
	case <-stop:
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(d time.Duration, cfg CaptureConfig) time.Duration {
	next := time.Duration(float64(d) * cfg.RestartFactor)
	if next > cfg.RestartMaxDelay {
		next = cfg.RestartMaxDelay
	}
	return next
}

package vad

import (
	"log"
	"math"
)

// State is the VAD Processor's two-state machine, per §4.7.
type State int

const (
	StateSilent State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "Active"
	}
	return "Silent"
}

// EventKind distinguishes a SpeechStart from a SpeechEnd.
type EventKind int

const (
	SpeechStart EventKind = iota
	SpeechEnd
)

// Event is a VAD state transition. A SpeechStart carries the timestamp of
// the first window of the qualifying speech run; a SpeechEnd carries the
// timestamp of the last window classified as speech. ForcedByCap is set by the Segment Buffer (not by
// the Processor itself) when a SpeechEnd is synthesized because a segment
// hit its maximum duration cap.
type Event struct {
	Kind        EventKind
	TimestampMs int64
	ForcedByCap bool
}

// Config tunes the debounce/hysteresis state machine.
type Config struct {
	SpeechOn  float32
	SpeechOff float32

	MinSpeechDurationMs  int64
	MinSilenceDurationMs int64

	// EnergyGateThreshold is the RMS (in normalised [-1,1] units) below which
	// a window is classified "silent-fast" without invoking the detector.
	EnergyGateThreshold float32
}

// DefaultConfig returns the defaults named in spec.md §4.7/§6.
func DefaultConfig() Config {
	speechOn := float32(0.1)
	return Config{
		SpeechOn:             speechOn,
		SpeechOff:            speechOn * 0.5,
		MinSpeechDurationMs:  100,
		MinSilenceDurationMs: 500,
		EnergyGateThreshold:  0.01,
	}
}

// Processor takes one window at a time (cmd/coldvoxd feeds it 512-sample
// canonical frames) and runs cfg's hysteresis and debounce rules against the pluggable detector, emitting SpeechStart and
// SpeechEnd events. Detector errors are logged and the window is treated as
// silent-fast; the Processor never panics, per §4.7's failure note.
type Processor struct {
	cfg      Config
	detector DetectorInterface

	state              State
	contiguousSpeechMs int64
	contiguousSilenceMs int64
	pendingStartTs     int64
	lastActiveTs       int64
}

// NewProcessor creates a Processor backed by detector, which must satisfy
// DetectorInterface — it may be a MockDetector in tests or a real model
// wrapper built with the vad build tag.
func NewProcessor(detector DetectorInterface, cfg Config) *Processor {
	return &Processor{
		cfg:      cfg,
		detector: detector,
		state:    StateSilent,
	}
}

// Reset returns the Processor to its initial Silent state and resets the
// detector, used across a capture session boundary.
func (p *Processor) Reset() {
	p.state = StateSilent
	p.contiguousSpeechMs = 0
	p.contiguousSilenceMs = 0
	if p.detector != nil {
		if err := p.detector.Reset(); err != nil {
			log.Printf("[vad] detector reset failed: %v", err)
		}
	}
}

// State returns the Processor's current state.
func (p *Processor) State() State {
	return p.state
}

// ProcessWindow feeds one window of int16 mono samples at 16kHz, timestamped
// tsMs, and returns zero or one Event produced by this window.
func (p *Processor) ProcessWindow(samples []int16, tsMs int64) (*Event, error) {
	durationMs := int64(len(samples)) * 1000 / 16000

	prob, silentFast := p.classify(samples)

	switch p.state {
	case StateSilent:
		if !silentFast && prob >= p.cfg.SpeechOn {
			if p.contiguousSpeechMs == 0 {
				p.pendingStartTs = tsMs
			}
			p.contiguousSpeechMs += durationMs
			if p.contiguousSpeechMs >= p.cfg.MinSpeechDurationMs {
				p.state = StateActive
				p.contiguousSpeechMs = 0
				p.contiguousSilenceMs = 0
				p.lastActiveTs = tsMs
				return &Event{Kind: SpeechStart, TimestampMs: p.pendingStartTs}, nil
			}
		} else {
			p.contiguousSpeechMs = 0
		}

	case StateActive:
		// A silent-fast window counts toward the silence-held debounce even
		// though the detector was never invoked, so it can never cause a
		// missed SpeechEnd.
		if silentFast || prob < p.cfg.SpeechOff {
			p.contiguousSilenceMs += durationMs
			if p.contiguousSilenceMs >= p.cfg.MinSilenceDurationMs {
				endTs := p.lastActiveTs
				p.state = StateSilent
				p.contiguousSilenceMs = 0
				p.contiguousSpeechMs = 0
				return &Event{Kind: SpeechEnd, TimestampMs: endTs}, nil
			}
		} else {
			p.contiguousSilenceMs = 0
			p.lastActiveTs = tsMs
		}
	}

	return nil, nil
}

// classify applies the pre-detector RMS energy gate and, if the window
// isn't gated out, the pluggable detector. It returns the speech
// probability (0 when gated or on detector error) and whether the window
// was classified silent-fast.
func (p *Processor) classify(samples []int16) (prob float32, silentFast bool) {
	rms := rmsEnergy(samples)
	if rms < p.cfg.EnergyGateThreshold {
		return 0, true
	}

	if p.detector == nil {
		return 0, true
	}

	floatSamples := make([]float32, len(samples))
	for i, s := range samples {
		floatSamples[i] = float32(s) / 32768.0
	}

	out, err := p.detector.Infer(floatSamples)
	if err != nil {
		log.Printf("[vad] detector inference failed, treating window as silent-fast: %v", err)
		return 0, true
	}
	return out, false
}

func rmsEnergy(samples []int16) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sumSq += v * v
	}
	return float32(math.Sqrt(sumSq / float64(len(samples))))
}

package pipeline

import (
	"context"
	"log"
	"sync"
	"time"
)

// EventType identifies the kind of Event flowing across the Bus.
type EventType int

const (
	// EventVADSpeechStart fires when the VAD Processor transitions Silent -> Active.
	EventVADSpeechStart EventType = iota
	// EventVADSpeechEnd fires when the VAD Processor transitions Active -> Silent.
	// A segment force-closed by the maximum duration cap does not publish it;
	// that synthetic end is carried on the segment's transcript event instead.
	EventVADSpeechEnd
	// EventSttPartial carries an interim transcription for the active segment.
	EventSttPartial
	// EventSttFinal carries the terminal transcription for a segment.
	EventSttFinal
	// EventSttError carries a terminal recognition failure for a segment.
	EventSttError
	// EventPluginStateChanged fires whenever a plugin record's state machine
	// transitions (Unloaded/Loading/Ready/Failed).
	EventPluginStateChanged
	// EventInjectionSuccess fires when the Injection Strategy Manager
	// successfully delivers text to the focused application.
	EventInjectionSuccess
	// EventInjectionFailure fires when every candidate backend has failed for
	// a given injection attempt.
	EventInjectionFailure
	// EventCaptureRestart fires when the Capture Thread is restarting a stream,
	// either due to a fatal error or a Watchdog/Device Monitor request.
	EventCaptureRestart
	// EventDeviceChanged fires when the Device Monitor observes the selected
	// device disappearing or the platform default changing.
	EventDeviceChanged
	// EventRingOverflow fires (at a throttled rate) when the Audio Ring drops
	// samples; the counter itself lives in pkg/metrics, this is a diagnostic.
	EventRingOverflow
	// EventBroadcastLagged fires when a Broadcast subscriber falls behind and
	// has frames dropped on its behalf.
	EventBroadcastLagged
	// EventError is a generic diagnostic for conditions with no dedicated type.
	EventError
	// EventWarning is a generic non-fatal diagnostic.
	EventWarning
)

// Event is a single notification published on the Bus.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   interface{}
}

// Bus is a typed publish/subscribe fan-out used to decouple pipeline
// components from one another. Unlike the Broadcast Bus (pkg/audio), this
// bus carries control/diagnostic events, not canonical audio frames.
type Bus interface {
	Subscribe(t EventType, ch chan Event)
	Unsubscribe(t EventType, ch chan Event)
	Publish(evt Event) bool
	Start(ctx context.Context) error
	Stop()
}

// EventBus is the default in-process Bus implementation. Publish delivers
// synchronously to every current subscriber with a non-blocking send; a
// subscriber with a full channel misses the event rather than stalling the
// publisher, mirroring the never-block-the-producer policy used throughout
// the audio path.
type EventBus struct {
	mu   sync.RWMutex
	subs map[EventType][]chan Event

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
}

// NewEventBus creates an empty, ready-to-use EventBus. Start/Stop are
// optional lifecycle hooks for components that want to tie the bus's
// lifetime to their own context; Publish/Subscribe work regardless.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[EventType][]chan Event),
	}
}

// Subscribe registers ch to receive events of type t. ch should be buffered;
// an unbuffered channel will usually miss events under Publish's
// never-block policy.
func (b *EventBus) Subscribe(t EventType, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], ch)
}

// Unsubscribe removes ch from type t's subscriber list. It is a no-op if ch
// was never subscribed.
func (b *EventBus) Unsubscribe(t EventType, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chans := b.subs[t]
	for i, c := range chans {
		if c == ch {
			b.subs[t] = append(chans[:i], chans[i+1:]...)
			return
		}
	}
}

// Publish delivers evt to every subscriber of evt.Type. It returns true only
// if every current subscriber accepted the event; a full subscriber channel
// drops the event for that subscriber and is logged, but Publish never
// blocks waiting for a slow consumer.
func (b *EventBus) Publish(evt Event) bool {
	b.mu.RLock()
	subs := append([]chan Event(nil), b.subs[evt.Type]...)
	b.mu.RUnlock()

	if len(subs) == 0 {
		return false
	}

	delivered := true
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
			log.Printf("[bus] subscriber channel full, dropping event type=%d", evt.Type)
			delivered = false
		}
	}
	return delivered
}

// Start marks the bus as active. It is idempotent and safe to call again
// after Stop. Publish and Subscribe work whether or not Start has been
// called; Start exists so components that own the bus can tie cancellation
// to a context.
func (b *EventBus) Start(ctx context.Context) error {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()
	if b.started {
		return nil
	}
	_, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.started = true
	return nil
}

// Stop marks the bus as inactive. Safe to call multiple times, and safe to
// call even if Start was never called.
func (b *EventBus) Stop() {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()
	if !b.started {
		return
	}
	if b.cancel != nil {
		b.cancel()
	}
	b.started = false
}

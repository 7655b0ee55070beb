package stt

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/coldvox/coldvox/pkg/audio"
	"github.com/coldvox/coldvox/pkg/vad"
)

// DefaultMaxSegmentDurationMs is the force-close cap when no override is
// configured, per the binding Open Question decision on max segment
// duration.
const DefaultMaxSegmentDurationMs = 30000

// Segment accumulates canonical frames between a SpeechStart and its
// matching SpeechEnd.
type Segment struct {
	ID         string
	StartMs    int64
	samples    []int16
	forcedByCap bool
}

func newSegment(startMs int64) *Segment {
	return &Segment{ID: uuid.New().String(), StartMs: startMs}
}

func (s *Segment) append(frame audio.CanonicalFrame) {
	s.samples = append(s.samples, frame.Samples[:]...)
}

// Samples returns the segment's accumulated audio.
func (s *Segment) Samples() []int16 { return s.samples }

// Segmenter turns a stream of VAD events and canonical frames into closed
// Segments and drives them through the Manager, publishing Partial/Final
// events in strict segment order per §4.8.
type Segmenter struct {
	mu                   sync.Mutex
	manager              *Manager
	maxDurationMs        int64
	current              *Segment
	currentBusy          bool
	onEvent              func(TranscriptEvent)
}

// TranscriptEvent is a Segmenter output: a Partial/Final/Error tied to a
// specific segment ID.
type TranscriptEvent struct {
	SegmentID string
	Result    *TranscriptionResult
	Err       error
	EndEvent  *vad.Event
}

// NewSegmenter creates a Segmenter backed by manager, force-closing segments
// after maxDurationMs (0 selects DefaultMaxSegmentDurationMs).
func NewSegmenter(manager *Manager, maxDurationMs int64, onEvent func(TranscriptEvent)) *Segmenter {
	if maxDurationMs <= 0 {
		maxDurationMs = DefaultMaxSegmentDurationMs
	}
	return &Segmenter{manager: manager, maxDurationMs: maxDurationMs, onEvent: onEvent}
}

// OnFrame appends a canonical frame to the in-flight segment, if any, and
// force-closes it when it has grown past maxDurationMs.
func (sg *Segmenter) OnFrame(ctx context.Context, frame audio.CanonicalFrame) {
	sg.mu.Lock()
	cur := sg.current
	if cur == nil {
		sg.mu.Unlock()
		return
	}
	cur.append(frame)
	elapsed := frame.TimestampMs - cur.StartMs
	sg.mu.Unlock()

	if elapsed >= sg.maxDurationMs {
		sg.closeSegment(ctx, &vad.Event{Kind: vad.SpeechEnd, TimestampMs: frame.TimestampMs, ForcedByCap: true})
	}
}

// OnVADEvent drives the Segmenter's lifecycle from VAD Processor output. A
// SpeechStart arriving while the prior segment's plugin call is still
// streaming is dropped (and logged), per the binding Open Question
// decision: no new segment is opened until the prior call has returned and
// its terminal event has been delivered. There is no timeout on that wait.
func (sg *Segmenter) OnVADEvent(ctx context.Context, evt vad.Event) {
	switch evt.Kind {
	case vad.SpeechStart:
		sg.mu.Lock()
		if sg.currentBusy {
			log.Printf("[stt] dropping SpeechStart: prior segment still streaming a terminal result")
			sg.mu.Unlock()
			return
		}
		sg.current = newSegment(evt.TimestampMs)
		sg.mu.Unlock()

	case vad.SpeechEnd:
		sg.closeSegment(ctx, &evt)
	}
}

func (sg *Segmenter) closeSegment(ctx context.Context, end *vad.Event) {
	sg.mu.Lock()
	seg := sg.current
	if seg == nil {
		sg.mu.Unlock()
		return
	}
	seg.forcedByCap = end.ForcedByCap
	sg.current = nil
	sg.currentBusy = true
	sg.mu.Unlock()

	go sg.transcribe(ctx, seg, end)
}

func (sg *Segmenter) transcribe(ctx context.Context, seg *Segment, end *vad.Event) {
	defer func() {
		sg.mu.Lock()
		sg.currentBusy = false
		sg.mu.Unlock()
	}()

	DumpSegmentWAV(os.Getenv("COLDVOX_DEBUG_DUMP_SEGMENTS"), seg.ID, seg.Samples())

	result, err := sg.manager.Transcribe(ctx, seg.ID, seg.Samples())
	if err != nil {
		sg.onEvent(TranscriptEvent{SegmentID: seg.ID, Err: err, EndEvent: end})
		return
	}
	sg.onEvent(TranscriptEvent{SegmentID: seg.ID, Result: result, EndEvent: end})
}

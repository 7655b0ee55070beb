package stt

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DumpSegmentWAV writes samples as a 16kHz mono WAV file named after
// segmentID into dir, for offline triage when COLDVOX_DEBUG_DUMP_SEGMENTS
// is set. Failures are logged, not returned, since this is an optional
// diagnostic side effect with no behavior change to the pipeline.
func DumpSegmentWAV(dir, segmentID string, samples []int16) {
	if dir == "" {
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("segment-%s.wav", segmentID))
	f, err := os.Create(path)
	if err != nil {
		log.Printf("[stt] debug dump: creating %s: %v", path, err)
		return
	}
	defer f.Close()

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{SampleRate: 16000, NumChannels: 1},
		Data:   ints,
	}
	if err := enc.Write(buf); err != nil {
		log.Printf("[stt] debug dump: writing %s: %v", path, err)
		return
	}
	if err := enc.Close(); err != nil {
		log.Printf("[stt] debug dump: closing %s: %v", path, err)
	}
}

package audio

import (
	"sync"

	"github.com/asticode/go-astiav"
)

// FrameSamples is the fixed canonical frame length: 512 samples, 32ms at
// 16kHz.
const FrameSamples = 512

// CanonicalSampleRate is the Chunker's fixed output rate.
const CanonicalSampleRate = 16000

// frameDurationMs is the timestamp increment between consecutive canonical
// frames within a session.
const frameDurationMs = int64(FrameSamples * 1000 / CanonicalSampleRate)

// ResamplerQuality selects the Chunker's CPU/quality tradeoff.
type ResamplerQuality int

const (
	QualityFast ResamplerQuality = iota
	QualityBalanced
	QualityQuality
)

// CanonicalFrame is exactly 512 signed-16-bit samples at 16kHz mono, with a
// monotonically increasing millisecond timestamp within a capture session.
type CanonicalFrame struct {
	Samples     [FrameSamples]int16
	TimestampMs int64
}

// Chunker accepts native-rate mono int16 blocks (as produced by FrameReader)
// and produces canonical frames. Input already at 16kHz mono bypasses the
// resampler entirely, satisfying the identity round-trip property in §8.
// Residual samples smaller than one output frame are retained across calls.
type Chunker struct {
	mu sync.Mutex

	inRate   int
	quality  ResamplerQuality
	resample *Resample

	residual     []int16
	nextTsMs     int64
}

// NewChunker creates a Chunker converting from inRate to the canonical
// 16kHz mono format. quality only affects CPU/aliasing tradeoff when
// resampling is actually needed (inRate != 16000); a bypass chunker ignores
// it entirely.
func NewChunker(inRate int, quality ResamplerQuality) (*Chunker, error) {
	c := &Chunker{inRate: inRate, quality: quality}
	if inRate != CanonicalSampleRate {
		r, err := NewResample(inRate, CanonicalSampleRate, astiav.ChannelLayoutMono, astiav.ChannelLayoutMono)
		if err != nil {
			return nil, err
		}
		c.resample = r
	}
	return c, nil
}

// prefilterTaps returns the half-width of the moving-average anti-aliasing
// filter applied ahead of swresample's own conversion. QualityFast skips it
// entirely (cheapest, most aliasing-prone); QualityQuality applies the
// widest window.
func (c *Chunker) prefilterTaps() int {
	switch c.quality {
	case QualityFast:
		return 0
	case QualityQuality:
		return 2
	default:
		return 1
	}
}

// prefilter smooths samples with a symmetric moving average before
// resampling, trading CPU for reduced aliasing at the higher quality tiers.
// A taps of 0 returns samples unchanged.
func prefilter(samples []int16, taps int) []int16 {
	if taps <= 0 || len(samples) == 0 {
		return samples
	}
	out := make([]int16, len(samples))
	for i := range samples {
		lo := i - taps
		if lo < 0 {
			lo = 0
		}
		hi := i + taps
		if hi >= len(samples) {
			hi = len(samples) - 1
		}
		var sum int32
		for j := lo; j <= hi; j++ {
			sum += int32(samples[j])
		}
		out[i] = int16(sum / int32(hi-lo+1))
	}
	return out
}

// Close releases the underlying resample context, if one was allocated.
func (c *Chunker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resample != nil {
		c.resample.Free()
		c.resample = nil
	}
}

// Reset clears residual samples and resets the timestamp counter to zero,
// marking a new capture session per §4.5's restart edge case. Consumers
// observe the resulting non-monotonic jump as a session boundary.
func (c *Chunker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.residual = c.residual[:0]
	c.nextTsMs = 0
}

// Feed converts one native-rate block into zero or more canonical frames.
func (c *Chunker) Feed(samples []int16) ([]CanonicalFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var produced []int16
	if c.resample == nil {
		produced = samples
	} else {
		filtered := prefilter(samples, c.prefilterTaps())
		in := int16ToBytes(filtered)
		outBytes, err := c.resample.Resample(in)
		if err != nil {
			return nil, err
		}
		produced = bytesToInt16(outBytes)
	}

	c.residual = append(c.residual, produced...)

	var frames []CanonicalFrame
	for len(c.residual) >= FrameSamples {
		var f CanonicalFrame
		copy(f.Samples[:], c.residual[:FrameSamples])
		f.TimestampMs = c.nextTsMs
		c.nextTsMs += frameDurationMs
		frames = append(frames, f)
		c.residual = c.residual[FrameSamples:]
	}
	return frames, nil
}

func int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func bytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return out
}

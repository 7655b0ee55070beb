package audio

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

const bytesPerSample = 2 // S16

// Resample wraps one FFmpeg software-resample context converting between a
// fixed pair of sample rates and channel layouts. It is not safe for
// concurrent use; Chunker serializes access with its own mutex.
type Resample struct {
	ctx       *astiav.SoftwareResampleContext
	inFrame   *astiav.Frame
	outFrame  *astiav.Frame
	inLayout  astiav.ChannelLayout
	outLayout astiav.ChannelLayout
	inRate    int
	outRate   int
}

// NewResample allocates a resampler converting inRate/inLayout to
// outRate/outLayout. Both rates must be positive.
func NewResample(inRate, outRate int, inLayout, outLayout astiav.ChannelLayout) (*Resample, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("resample: sample rates must be positive, got in=%d out=%d", inRate, outRate)
	}

	r := &Resample{inRate: inRate, outRate: outRate, inLayout: inLayout, outLayout: outLayout}

	r.ctx = astiav.AllocSoftwareResampleContext()
	if r.ctx == nil {
		return nil, fmt.Errorf("resample: failed to allocate swresample context")
	}
	r.inFrame = astiav.AllocFrame()
	if r.inFrame == nil {
		r.Free()
		return nil, fmt.Errorf("resample: failed to allocate input frame")
	}
	r.outFrame = astiav.AllocFrame()
	if r.outFrame == nil {
		r.Free()
		return nil, fmt.Errorf("resample: failed to allocate output frame")
	}

	return r, nil
}

// Free releases the context and both frames. Safe to call more than once.
func (r *Resample) Free() {
	if r.ctx != nil {
		r.ctx.Free()
		r.ctx = nil
	}
	if r.inFrame != nil {
		r.inFrame.Free()
		r.inFrame = nil
	}
	if r.outFrame != nil {
		r.outFrame.Free()
		r.outFrame = nil
	}
}

func channelCount(layout astiav.ChannelLayout) (int, error) {
	switch layout {
	case astiav.ChannelLayoutMono:
		return 1, nil
	case astiav.ChannelLayoutStereo:
		return 2, nil
	default:
		return 0, fmt.Errorf("resample: unsupported channel layout %v", layout)
	}
}

// Resample converts one block of interleaved S16 PCM bytes from in* to out*
// rate/layout and returns the converted bytes. The returned slice is only
// valid until the next call.
func (r *Resample) Resample(inputData []byte) ([]byte, error) {
	const align = 0

	if len(inputData) == 0 {
		return nil, fmt.Errorf("resample: empty input")
	}

	inChannels, err := channelCount(r.inLayout)
	if err != nil {
		return nil, err
	}
	bytesPerFrame := bytesPerSample * inChannels
	numSamples := len(inputData) / bytesPerFrame
	if numSamples == 0 {
		return nil, fmt.Errorf("resample: input shorter than one frame")
	}

	r.inFrame.Unref()
	r.outFrame.Unref()

	r.inFrame.SetChannelLayout(r.inLayout)
	r.inFrame.SetSampleFormat(astiav.SampleFormatS16)
	r.inFrame.SetSampleRate(r.inRate)
	r.inFrame.SetNbSamples(numSamples)

	r.outFrame.SetChannelLayout(r.outLayout)
	r.outFrame.SetSampleFormat(astiav.SampleFormatS16)
	r.outFrame.SetSampleRate(r.outRate)

	outNumSamples := (numSamples * r.outRate) / r.inRate
	if outNumSamples == 0 {
		outNumSamples = 1
	}
	r.outFrame.SetNbSamples(outNumSamples)

	if err := r.inFrame.AllocBuffer(align); err != nil {
		return nil, fmt.Errorf("resample: allocating input buffer: %w", err)
	}
	if err := r.outFrame.AllocBuffer(align); err != nil {
		return nil, fmt.Errorf("resample: allocating output buffer: %w", err)
	}
	if err := r.inFrame.MakeWritable(); err != nil {
		return nil, fmt.Errorf("resample: making input frame writable: %w", err)
	}

	// FFmpeg's sample buffers are padded to an internal alignment; pad with
	// zeros rather than feeding a short buffer.
	actualBufferSize, err := r.inFrame.SamplesBufferSize(align)
	if err != nil {
		return nil, fmt.Errorf("resample: reading input buffer size: %w", err)
	}
	inputBuffer := inputData
	if len(inputData) < actualBufferSize {
		inputBuffer = make([]byte, actualBufferSize)
		copy(inputBuffer, inputData)
	}

	if err := r.inFrame.Data().SetBytes(inputBuffer[:actualBufferSize], align); err != nil {
		return nil, fmt.Errorf("resample: writing input frame data: %w", err)
	}

	if err := r.ctx.ConvertFrame(r.inFrame, r.outFrame); err != nil {
		return nil, fmt.Errorf("resample: swresample conversion failed: %w", err)
	}

	outputData, err := r.outFrame.Data().Bytes(align)
	if err != nil {
		return nil, fmt.Errorf("resample: reading output frame data: %w", err)
	}
	return outputData, nil
}

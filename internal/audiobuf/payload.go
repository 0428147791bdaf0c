package audiobuf

import "math"

// Payload is a named, fully-decoded float audio buffer plus its derived
// duration (spec §3: "Audio payload"). Once published to a deck it is
// treated as immutable; every transform below returns a new Payload.
type Payload struct {
	Name       string
	Samples    []float32
	SampleRate float64
	Channels   int
}

// NewPayload wraps samples with their rate/channel metadata.
func NewPayload(name string, samples []float32, sampleRate float64, channels int) *Payload {
	return &Payload{Name: name, Samples: samples, SampleRate: sampleRate, Channels: channels}
}

// FromBuffer converts a decoded Buffer (of any Kind) into a float Payload.
func FromBuffer(name string, b *Buffer) *Payload {
	return NewPayload(name, b.AsFloat32(), b.SampleRate, b.Channels)
}

// Frames returns the number of interleaved frames.
func (p *Payload) Frames() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Duration returns frames/sample_rate in seconds.
func (p *Payload) Duration() float64 {
	if p.SampleRate == 0 {
		return 0
	}
	return float64(p.Frames()) / p.SampleRate
}

// Slice returns a new Payload covering frames [start, end). It fails with
// ErrOutOfBounds if end*channels exceeds the sample count.
func (p *Payload) Slice(start, end int) (*Payload, error) {
	if start < 0 || end < start {
		return nil, ErrOutOfBounds
	}
	if end*p.Channels > len(p.Samples) {
		return nil, ErrOutOfBounds
	}
	out := make([]float32, (end-start)*p.Channels)
	copy(out, p.Samples[start*p.Channels:end*p.Channels])
	return NewPayload(p.Name, out, p.SampleRate, p.Channels), nil
}

// IntoMono down-mixes to a single channel. Mono input is returned unchanged
// (as a new Payload sharing the same semantics); two-channel input is
// averaged per frame: out[i] = (L[i]+R[i])/2. More than two channels is not
// implemented yet.
func (p *Payload) IntoMono() (*Payload, error) {
	switch p.Channels {
	case 1:
		out := make([]float32, len(p.Samples))
		copy(out, p.Samples)
		return NewPayload(p.Name, out, p.SampleRate, 1), nil
	case 2:
		frames := p.Frames()
		out := make([]float32, frames)
		for i := 0; i < frames; i++ {
			l := p.Samples[i*2]
			r := p.Samples[i*2+1]
			out[i] = (l + r) / 2
		}
		return NewPayload(p.Name, out, p.SampleRate, 1), nil
	default:
		return nil, ErrNotImplemented
	}
}

// Resample linearly interpolates every channel independently to targetRate,
// preserving interleaved order and channel count.
func (p *Payload) Resample(targetRate float64) (*Payload, error) {
	if targetRate <= 0 || p.SampleRate <= 0 || p.Frames() == 0 {
		return NewPayload(p.Name, nil, targetRate, p.Channels), nil
	}
	if targetRate == p.SampleRate {
		out := make([]float32, len(p.Samples))
		copy(out, p.Samples)
		return NewPayload(p.Name, out, targetRate, p.Channels), nil
	}

	srcFrames := p.Frames()
	ratio := p.SampleRate / targetRate
	dstFrames := int(math.Round(float64(srcFrames) / ratio))
	if dstFrames < 0 {
		dstFrames = 0
	}

	out := make([]float32, dstFrames*p.Channels)
	for i := 0; i < dstFrames; i++ {
		srcPos := float64(i) * ratio
		i0 := int(math.Floor(srcPos))
		frac := srcPos - float64(i0)
		i1 := i0 + 1
		if i1 >= srcFrames {
			i1 = srcFrames - 1
		}
		if i0 >= srcFrames {
			i0 = srcFrames - 1
		}
		for c := 0; c < p.Channels; c++ {
			a := p.Samples[i0*p.Channels+c]
			b := p.Samples[i1*p.Channels+c]
			out[i*p.Channels+c] = a + float32(frac)*(b-a)
		}
	}
	return NewPayload(p.Name, out, targetRate, p.Channels), nil
}

// RemoveDCOffset applies a one-pole DC-blocking high-pass filter per
// channel, the same pre-analysis step the original implementation runs
// right after decode (selectia-audio-file's dc_blocker).
func (p *Payload) RemoveDCOffset() *Payload {
	const pole = 0.995
	out := make([]float32, len(p.Samples))
	prevIn := make([]float32, p.Channels)
	prevOut := make([]float32, p.Channels)
	frames := p.Frames()
	for i := 0; i < frames; i++ {
		for c := 0; c < p.Channels; c++ {
			idx := i*p.Channels + c
			x := p.Samples[idx]
			y := x - prevIn[c] + pole*prevOut[c]
			out[idx] = y
			prevIn[c] = x
			prevOut[c] = y
		}
	}
	return NewPayload(p.Name, out, p.SampleRate, p.Channels)
}

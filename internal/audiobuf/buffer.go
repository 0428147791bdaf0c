package audiobuf

import "math"

// Kind tags which numeric representation a Buffer's samples are stored as.
type Kind int

const (
	KindS16 Kind = iota
	KindS32
	KindF32
)

// Buffer is an interleaved sequence of samples of one numeric kind. The
// invariant len(samples) % channels == 0 must hold after every mutation.
type Buffer struct {
	Kind       Kind
	SampleRate float64
	Channels   int

	s16 []int16
	s32 []int32
	f32 []float32
}

// NewBuffer creates an empty buffer of the given kind.
func NewBuffer(kind Kind, sampleRate float64, channels int) *Buffer {
	return &Buffer{Kind: kind, SampleRate: sampleRate, Channels: channels}
}

// Len returns the total interleaved sample count.
func (b *Buffer) Len() int {
	switch b.Kind {
	case KindS16:
		return len(b.s16)
	case KindS32:
		return len(b.s32)
	default:
		return len(b.f32)
	}
}

// Frames returns Len() / Channels.
func (b *Buffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return b.Len() / b.Channels
}

// Valid reports whether the length-divisible-by-channels invariant holds.
func (b *Buffer) Valid() bool {
	return b.Channels > 0 && b.Len()%b.Channels == 0
}

// SourceFormat tags the per-channel planar format append_interleaved reads
// from. Only S16/S32/F32 are supported; the rest exist so an unsupported
// source can be named precisely in UnsupportedSampleFormat errors.
type SourceFormat int

const (
	SourceS16 SourceFormat = iota
	SourceS32
	SourceF32
	SourceU8
	SourceU16
	SourceU24
	SourceU32
	SourceS8
	SourceS24
)

// PlanarSource is a per-channel (not interleaved) block of decoded frames,
// the shape a container decoder hands back per packet.
type PlanarSource struct {
	Format   SourceFormat
	S16      [][]int16
	S32      [][]int32
	F32      [][]float32
}

// channelsAndFrames returns the number of channels present in the source and
// the frame count of its first channel.
func (p PlanarSource) channelsAndFrames() (n, f int) {
	switch p.Format {
	case SourceS16:
		n = len(p.S16)
		if n > 0 {
			f = len(p.S16[0])
		}
	case SourceS32:
		n = len(p.S32)
		if n > 0 {
			f = len(p.S32[0])
		}
	case SourceF32:
		n = len(p.F32)
		if n > 0 {
			f = len(p.F32[0])
		}
	}
	return
}

// AppendInterleaved appends the frames in src to the sink, converting each
// source sample to the sink's Kind, interleaving channel c's frame i into
// sink position base+c+i*n (spec §4.2). Growth is always by exactly n*f
// samples, where n is the source channel count and f its per-channel frame
// count.
func (b *Buffer) AppendInterleaved(src PlanarSource) error {
	n, f := src.channelsAndFrames()
	switch src.Format {
	case SourceS16, SourceS32, SourceF32:
		// supported
	default:
		return ErrUnsupportedSampleFormat
	}
	if n == 0 || f == 0 {
		return nil
	}

	base := b.Len()
	b.grow(n * f)

	for c := 0; c < n; c++ {
		for i := 0; i < f; i++ {
			dstIdx := base + c + i*n
			switch src.Format {
			case SourceS16:
				b.setConvertedS16(dstIdx, src.S16[c][i])
			case SourceS32:
				b.setConvertedS32(dstIdx, src.S32[c][i])
			case SourceF32:
				b.setConvertedF32(dstIdx, src.F32[c][i])
			}
		}
	}
	return nil
}

func (b *Buffer) grow(n int) {
	switch b.Kind {
	case KindS16:
		b.s16 = append(b.s16, make([]int16, n)...)
	case KindS32:
		b.s32 = append(b.s32, make([]int32, n)...)
	default:
		b.f32 = append(b.f32, make([]float32, n)...)
	}
}

func (b *Buffer) setConvertedS16(idx int, v int16) {
	switch b.Kind {
	case KindS16:
		b.s16[idx] = v
	case KindS32:
		b.s32[idx] = int32(v) << 16
	default:
		b.f32[idx] = float32(v) / 32768.0
	}
}

func (b *Buffer) setConvertedS32(idx int, v int32) {
	switch b.Kind {
	case KindS16:
		b.s16[idx] = int16(v >> 16)
	case KindS32:
		b.s32[idx] = v
	default:
		b.f32[idx] = float32(float64(v) / 2147483648.0)
	}
}

func (b *Buffer) setConvertedF32(idx int, v float32) {
	switch b.Kind {
	case KindS16:
		b.s16[idx] = saturateS16(v)
	case KindS32:
		b.s32[idx] = saturateS32(v)
	default:
		b.f32[idx] = v
	}
}

func saturateS16(v float32) int16 {
	f := float64(v) * 32767.0
	if f > 32767 {
		return 32767
	}
	if f < -32768 {
		return -32768
	}
	return int16(math.Round(f))
}

func saturateS32(v float32) int32 {
	f := float64(v) * 2147483647.0
	if f > 2147483647 {
		return 2147483647
	}
	if f < -2147483648 {
		return -2147483648
	}
	return int32(math.Round(f))
}

// AsFloat32 returns the buffer's samples converted to float32, regardless of
// the stored Kind. Used to hand a decoded Buffer to Payload.
func (b *Buffer) AsFloat32() []float32 {
	switch b.Kind {
	case KindF32:
		out := make([]float32, len(b.f32))
		copy(out, b.f32)
		return out
	case KindS16:
		out := make([]float32, len(b.s16))
		for i, v := range b.s16 {
			out[i] = float32(v) / 32768.0
		}
		return out
	default:
		out := make([]float32, len(b.s32))
		for i, v := range b.s32 {
			out[i] = float32(float64(v) / 2147483648.0)
		}
		return out
	}
}

// Package audiobuf implements the sample buffer and audio payload types
// (spec §3, §4.2): interleaved PCM storage tagged by numeric kind, float
// payloads with slicing/mono-down-mix/resample/onset-detection/WAV export.
package audiobuf

import "errors"

var (
	ErrUnsupportedSampleFormat = errors.New("audiobuf: unsupported sample format")
	ErrInvalidSampleRate       = errors.New("audiobuf: sample rate is not integer-valued")
	ErrOutOfBounds             = errors.New("audiobuf: frame range out of bounds")
	ErrNotImplemented          = errors.New("audiobuf: operation not implemented for this channel count")
)

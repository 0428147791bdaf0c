// Package decoder wraps the opaque encoded-audio probe/decoder (spec §4.3)
// behind a small, testable Reader: probe a stream, learn its total frame
// count, and either decode the whole thing into a Payload or stream decoded
// blocks through a callback.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/selectia/selectia-core/internal/audiobuf"
	"github.com/selectia/selectia-core/internal/ports"
)

// ErrNoDefaultTrack is surfaced when the container has no default track.
var ErrNoDefaultTrack = errors.New("decoder: container has no default track")

// Reader decodes one encoded-audio stream through a ports.Decoder.
type Reader struct {
	dec  ports.Decoder
	info ports.TrackInfo
}

// FromSource probes stream (using pathHint for container/extension
// disambiguation, e.g. when the source has no reliable magic bytes) and
// returns a ready-to-read Reader.
func FromSource(ctx context.Context, dec ports.Decoder, stream io.Reader, pathHint string) (*Reader, error) {
	info, err := dec.Probe(ctx, stream, pathHint)
	if err != nil {
		return nil, fmt.Errorf("decoder: probe %s: %w", pathHint, err)
	}
	if !info.HasDefaultTrack {
		return nil, ErrNoDefaultTrack
	}
	return &Reader{dec: dec, info: info}, nil
}

// TotalFramesCount returns the frame count the probe reported (may be an
// estimate for streaming/unbounded containers).
func (r *Reader) TotalFramesCount() int64 { return r.info.TotalFramesCount }

// Spec returns the probed sample rate/channel count.
func (r *Reader) Spec() ports.AudioSpec { return r.info.Spec }

// DecodedIterator yields each decoded block (already float-converted) to
// yield, stopping when yield returns false or the stream ends. Decode
// errors on individual packets are expected to have already been logged and
// skipped by the underlying ports.Decoder; only unrecoverable stream errors
// propagate here.
func (r *Reader) DecodedIterator(ctx context.Context, yield func(ports.DecodedBlock) bool) error {
	return r.dec.ReadBlocks(ctx, yield)
}

// ReadIntoPayload decodes every block into a single Payload.
func (r *Reader) ReadIntoPayload(ctx context.Context, name string) (*audiobuf.Payload, error) {
	var samples []float32
	spec := r.info.Spec

	err := r.DecodedIterator(ctx, func(block ports.DecodedBlock) bool {
		spec = block.Spec
		samples = append(samples, block.Samples...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("decoder: decode %s: %w", name, err)
	}
	return audiobuf.NewPayload(name, samples, spec.Rate, spec.Channels), nil
}

// ReadWaveUntil decodes blocks, invoking callback with the accumulated
// payload-so-far after every block, stopping as soon as callback returns
// false (used by callers that only need a bounded prefix, e.g. a preview).
func (r *Reader) ReadWaveUntil(ctx context.Context, name string, callback func(partial *audiobuf.Payload) bool) (*audiobuf.Payload, error) {
	var samples []float32
	spec := r.info.Spec
	stoppedEarly := false

	err := r.DecodedIterator(ctx, func(block ports.DecodedBlock) bool {
		spec = block.Spec
		samples = append(samples, block.Samples...)
		if !callback(audiobuf.NewPayload(name, samples, spec.Rate, spec.Channels)) {
			stoppedEarly = true
			return false
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("decoder: decode %s: %w", name, err)
	}
	if stoppedEarly {
		slog.Debug("decoder: read_wave_until stopped early", "name", name)
	}
	return audiobuf.NewPayload(name, samples, spec.Rate, spec.Channels), nil
}

// Package mixer owns the deck mixer backend: the set of active playback
// sources, the real-time fill/mix path the audio host's callback drives, and
// a slow introspection loop that turns per-file "updated" flags into status
// events (spec §4.8).
package mixer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/selectia/selectia-core/internal/actor"
	"github.com/selectia/selectia-core/internal/deck"
)

// ErrUnsupportedSampleFormat is returned at backend construction for any
// unsigned integer format (spec §4.8: "unsupported types are rejected at
// construction").
var ErrUnsupportedSampleFormat = errors.New("mixer: unsupported sample format")

// introspectionInterval is the polling period for the updated-flags loop
// (spec §4.8: "polls ... at ≈ 50 Hz").
const introspectionInterval = 20 * time.Millisecond

// Source is one active mixer input: a deck file plus its reusable scratch
// buffer. Source identity for CreateSource/DeleteSource equality is the
// underlying deck file's (DeckID, FileID).
type Source struct {
	file *deck.File
	buf  []float32
}

// NewSource wraps a deck file as a mixer source.
func NewSource(file *deck.File) *Source { return &Source{file: file} }

type sourceKey struct {
	deckID int
	fileID int64
}

func (s *Source) key() sourceKey { return sourceKey{s.file.DeckID, s.file.ID} }

// fillBuffer reads the source's status snapshot once, then either copies
// `n` wrapped samples out of its payload (advancing offset and flagging the
// file updated) or zero-fills when the file isn't playing.
func (s *Source) fillBuffer(n int) []float32 {
	if cap(s.buf) < n {
		s.buf = make([]float32, n)
	}
	out := s.buf[:n]

	status := s.file.Status()
	if status.Kind != deck.StatusPlaying || status.Payload == nil || len(status.Payload.Samples) == 0 {
		for i := range out {
			out[i] = 0
		}
		return out
	}

	samples := status.Payload.Samples
	total := len(samples)
	offset := status.Offset
	for i := 0; i < n; i++ {
		out[i] = samples[(offset+i)%total]
	}
	s.file.AdvancePlayback(n)
	return out
}

type createSourceMsg struct{ src *Source }
type deleteSourceMsg struct{ src *Source }

// Backend is the deck mixer's real-time backend.
type Backend struct {
	format   string
	channels int

	mu      sync.RWMutex
	sources []*Source

	deckEvents *actor.Dispatcher[deck.Event]
}

// supportedFormats are the signed-integer and float element types the spec
// allows; anything else (notably unsigned formats) is rejected.
var supportedFormats = map[string]bool{
	"i8": true, "i16": true, "i32": true, "i64": true,
	"f32": true, "f64": true,
}

// NewBackend validates format/channels and spawns the backend actor that
// services CreateSource/DeleteSource. deckEvents receives the periodic
// DeckFileStatusUpdated notifications the introspection loop emits.
func NewBackend(ctx *actor.Context, format string, channels int, deckEvents *actor.Dispatcher[deck.Event]) (*Backend, *actor.Sender[any], error) {
	if !supportedFormats[format] {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedSampleFormat, format)
	}
	b := &Backend{format: format, channels: channels, deckEvents: deckEvents}
	sender := actor.Spawn(ctx, b.run, actor.SpawnOptions{Name: "mixer.Backend"})
	return b, sender, nil
}

func (b *Backend) run(sc *actor.ServiceContext, rx *actor.ServiceReceiver[any]) {
	ticker := time.NewTicker(introspectionInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-rx.Chan():
			if !ok {
				return
			}
			switch m := msg.(type) {
			case createSourceMsg:
				b.addSource(m.src)
			case deleteSourceMsg:
				b.removeSource(m.src)
			}
		case <-ticker.C:
			b.pollUpdated()
		}
	}
}

func (b *Backend) addSource(src *Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.sources {
		if existing.key() == src.key() {
			return
		}
	}
	b.sources = append(b.sources, src)
}

func (b *Backend) removeSource(src *Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.sources {
		if existing.key() == src.key() {
			b.sources = append(b.sources[:i], b.sources[i+1:]...)
			return
		}
	}
}

// pollUpdated is the ~50 Hz introspection loop: for every source whose
// updated flag is observed true, clear it and dispatch a status snapshot.
func (b *Backend) pollUpdated() {
	b.mu.RLock()
	sources := append([]*Source(nil), b.sources...)
	b.mu.RUnlock()

	for _, src := range sources {
		if !src.file.TakeUpdated() {
			continue
		}
		if b.deckEvents != nil {
			b.deckEvents.Emit(deck.Event{
				Kind:   deck.EventFileStatusUpdated,
				DeckID: src.file.DeckID,
				FileID: src.file.ID,
				Status: src.file.Status(),
			})
		}
	}
}

// SourceCount returns the number of active sources, for tests and
// introspection endpoints.
func (b *Backend) SourceCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sources)
}

// CreateSource submits a source to be added to the active set.
func CreateSource(sender *actor.Sender[any], src *Source) error {
	return sender.Send(createSourceMsg{src: src})
}

// DeleteSource submits a source to be removed from the active set.
func DeleteSource(sender *actor.Sender[any], src *Source) error {
	return sender.Send(deleteSourceMsg{src: src})
}

// WriteFloat32 fills out (one sample per element, interleaved) by summing
// every active source's fillBuffer output: the first source is copied, each
// subsequent source is added sample-wise. No clipping is applied here (spec
// §4.8's write_data).
func (b *Backend) WriteFloat32(out []float32) {
	b.mu.RLock()
	sources := append([]*Source(nil), b.sources...)
	b.mu.RUnlock()

	for i := range out {
		out[i] = 0
	}
	for idx, src := range sources {
		buf := src.fillBuffer(len(out))
		if idx == 0 {
			copy(out, buf)
			continue
		}
		for i, v := range buf {
			out[i] += v
		}
	}
}

// Write fills out (a raw host-format byte buffer) honoring the backend's
// configured sample format. It mixes internally in float32 then packs each
// sample into out using the format's native width/encoding.
func (b *Backend) Write(out []byte, sampleRate float64) error {
	bytesPerSample, err := sampleWidth(b.format)
	if err != nil {
		return err
	}
	n := len(out) / bytesPerSample
	mixed := make([]float32, n)
	b.WriteFloat32(mixed)

	for i, v := range mixed {
		encodeSample(out[i*bytesPerSample:(i+1)*bytesPerSample], b.format, v)
	}
	return nil
}

func sampleWidth(format string) (int, error) {
	switch format {
	case "i8":
		return 1, nil
	case "i16":
		return 2, nil
	case "i32", "f32":
		return 4, nil
	case "i64", "f64":
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedSampleFormat, format)
	}
}

// encodeSample packs one float32 sample in [-1, 1] into dst using format's
// native width, little-endian, saturating integer formats at their range.
func encodeSample(dst []byte, format string, v float32) {
	switch format {
	case "i8":
		dst[0] = byte(saturate(v, math.MaxInt8, math.MinInt8))
	case "i16":
		binary.LittleEndian.PutUint16(dst, uint16(int16(saturate(v, math.MaxInt16, math.MinInt16))))
	case "i32":
		binary.LittleEndian.PutUint32(dst, uint32(int32(saturate(v, math.MaxInt32, math.MinInt32))))
	case "i64":
		binary.LittleEndian.PutUint64(dst, uint64(int64(saturate(v, math.MaxInt64, math.MinInt64))))
	case "f32":
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
	case "f64":
		binary.LittleEndian.PutUint64(dst, math.Float64bits(float64(v)))
	}
}

func saturate(v float32, max, min float64) float64 {
	f := float64(v) * max
	if f > max {
		return max
	}
	if f < min {
		return min
	}
	return math.Round(f)
}

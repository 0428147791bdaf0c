// Package deck models a single playback deck: a monotonic per-deck file id
// counter, the current-file cell, and the load/status-update operations the
// scheduler and mixer drive it with (spec §4.7).
package deck

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/selectia/selectia-core/internal/actor"
	"github.com/selectia/selectia-core/internal/audiobuf"
	"github.com/selectia/selectia-core/internal/decoder"
	"github.com/selectia/selectia-core/internal/ports"
)

// previewSampleRate is the fixed rate deck.LoadFile resamples a waveform
// overview to (spec §4.7: "a 1000 Hz preview").
const previewSampleRate = 1000.0

// StatusKind tags a File's playback status.
type StatusKind int

const (
	StatusLoading StatusKind = iota
	StatusPaused
	StatusPlaying
)

// Status is the tagged status of a deck file: Loading carries a progress
// fraction, Paused/Playing carry a sample offset and the decoded payload.
type Status struct {
	Kind     StatusKind
	Progress float64
	Offset   int
	Payload  *audiobuf.Payload
}

// PreviewSnapshot is the waveform-overview artifact produced alongside the
// full decode (spec §4.7: "{original_sample_rate, sample_rate,
// channels_count, samples}").
type PreviewSnapshot struct {
	OriginalSampleRate float64
	SampleRate         float64
	ChannelsCount      int
	Samples            []float32
}

// EventKind tags a deck event.
type EventKind int

const (
	EventFileMetadataUpdated EventKind = iota
	EventFileStatusUpdated
)

// Event mirrors DeckFileMetadataUpdated/DeckFileStatusUpdated (spec §4.7).
type Event struct {
	Kind   EventKind
	DeckID int
	FileID int64
	Title  string
	Status Status
}

// File is one loaded deck file: an id, a title, a status cell, and the
// "updated" flag the mixer's introspection loop polls and clears.
type File struct {
	DeckID int
	ID     int64
	Title  string

	statusMu sync.RWMutex
	status   Status

	preview atomic.Pointer[PreviewSnapshot]
	updated atomic.Bool
}

// Status returns a snapshot of the file's current status.
func (f *File) Status() Status {
	f.statusMu.RLock()
	defer f.statusMu.RUnlock()
	return f.status
}

// Preview returns the waveform-overview snapshot, or nil if decoding hasn't
// reached that point yet.
func (f *File) Preview() *PreviewSnapshot { return f.preview.Load() }

// MarkUpdated sets the file's "updated" flag (called whenever fill_buffer
// advances this file's playback offset).
func (f *File) MarkUpdated() { f.updated.Store(true) }

// TakeUpdated atomically reads and clears the "updated" flag, mirroring the
// mixer introspection loop's compare-and-swap pattern.
func (f *File) TakeUpdated() bool { return f.updated.CompareAndSwap(true, false) }

// AdvancePlayback advances a Playing file's offset by n samples, wrapping on
// the payload length, and marks the file updated. It bypasses
// Deck.UpdateStatus deliberately: this runs at audio-callback frequency and
// must not emit a DeckFileStatusUpdated event on every call, only the
// mixer's slow introspection loop does that (spec §4.8).
func (f *File) AdvancePlayback(n int) {
	f.statusMu.Lock()
	if f.status.Kind == StatusPlaying && f.status.Payload != nil && len(f.status.Payload.Samples) > 0 {
		total := len(f.status.Payload.Samples)
		f.status.Offset = (f.status.Offset + n) % total
	}
	f.statusMu.Unlock()
	f.MarkUpdated()
}

// Deck is a single playback deck.
type Deck struct {
	id         int
	nextFileID atomic.Int64
	current    atomic.Pointer[File]
	events     *actor.Dispatcher[Event]
}

// New creates a deck identified by id, broadcasting lifecycle events on
// events.
func New(id int, events *actor.Dispatcher[Event]) *Deck {
	return &Deck{id: id, events: events}
}

// Current returns the deck's currently loaded file, or nil if none.
func (d *Deck) Current() *File { return d.current.Load() }

func (d *Deck) emit(ev Event) {
	ev.DeckID = d.id
	if d.events != nil {
		d.events.Emit(ev)
	}
}

// LoadFile opens and probes path synchronously (acceptable off the
// real-time audio thread), then spawns the background decode that
// transitions the file to Paused once the full payload and preview are
// ready. It returns the newly created file descriptor plus whatever file
// was previously current, so the caller can remove the old source from the
// mixer backend.
func (d *Deck) LoadFile(ctx context.Context, dec ports.Decoder, path string) (current, previous *File, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("deck: open %s: %w", path, err)
	}

	reader, err := decoder.FromSource(ctx, dec, f, path)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("deck: probe %s: %w", path, err)
	}

	file := &File{
		DeckID: d.id,
		ID:     d.nextFileID.Add(1),
		Title:  path,
		status: Status{Kind: StatusLoading, Progress: 0},
	}

	d.emit(Event{Kind: EventFileMetadataUpdated, FileID: file.ID, Title: file.Title})
	d.emit(Event{Kind: EventFileStatusUpdated, FileID: file.ID, Status: file.Status()})

	previous = d.current.Swap(file)

	go d.decodeAndTransition(ctx, reader, f, file)

	return file, previous, nil
}

func (d *Deck) decodeAndTransition(ctx context.Context, reader *decoder.Reader, f *os.File, file *File) {
	defer f.Close()

	payload, err := reader.ReadIntoPayload(ctx, file.Title)
	if err != nil {
		slog.Error("deck: decode failed", "deck", d.id, "file", file.ID, "error", err)
		return
	}

	preview, err := payload.Resample(previewSampleRate)
	if err != nil {
		slog.Warn("deck: preview resample failed", "deck", d.id, "file", file.ID, "error", err)
	} else {
		file.preview.Store(&PreviewSnapshot{
			OriginalSampleRate: payload.SampleRate,
			SampleRate:         preview.SampleRate,
			ChannelsCount:      preview.Channels,
			Samples:            preview.Samples,
		})
	}

	d.UpdateStatus(file, func(Status) Status {
		return Status{Kind: StatusPaused, Offset: 0, Payload: payload}
	})
}

// UpdateStatus runs f on file's status cell under a write lock, emits
// DeckFileStatusUpdated with the new status, and returns f's result.
func (d *Deck) UpdateStatus(file *File, f func(Status) Status) Status {
	file.statusMu.Lock()
	next := f(file.status)
	file.status = next
	file.statusMu.Unlock()

	d.emit(Event{Kind: EventFileStatusUpdated, FileID: file.ID, Status: next})
	return next
}

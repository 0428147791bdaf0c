// Package ports declares the external collaborators the core depends on but
// does not implement: the filesystem catalog, the encoded-audio
// probe/decoder, the PCM stem-splitter, the onset detector, and the audio
// host/device layer (spec §6). Each is a narrow interface; internal/ports/fake
// ships in-memory implementations used by tests and by cmd/selectia-core's
// demo wiring.
package ports

import (
	"context"
	"io"
)

// Well-known tag-name ids used by the core when writing catalog tags.
const (
	TagFileNameEmbedding = 1
	TagDirectory         = 2
	TagFileName          = 3
	TagTitle             = 4
	TagArtist            = 5
	TagAlbum             = 6
	TagGenre             = 7
	TagPlaylist          = 8
	TagTempo             = 9
)

// TaskStatus mirrors the persisted task row's status column (§3).
type TaskStatus string

const (
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskDone       TaskStatus = "done"
)

// TaskRow is a persisted task record.
type TaskRow struct {
	ID      int64
	Status  TaskStatus
	Payload []byte // JSON-encoded task payload variant
}

// MetadataRow identifies one content-addressed catalog entry.
type MetadataRow struct {
	ID   int64
	Hash string
}

// FileRow is the catalog's file-path record for a metadata id.
type FileRow struct {
	ID         int64
	MetadataID int64
	Path       string
}

// FileVariation is a derived file linked to a parent file (e.g. a stem).
type FileVariation struct {
	ID       int64
	FileID   int64
	Path     string
	Metadata map[string]string
}

// Catalog is the persistent store the core reads and writes through. It is
// implemented outside this module (the application's metadata/tag/file
// database); internal/ports/fake.Catalog is an in-memory stand-in for tests.
type Catalog interface {
	GetOrCreateMetadata(ctx context.Context, hash string) (row MetadataRow, created bool, err error)
	CreateOrReplaceFile(ctx context.Context, path string, metadataID int64) (FileRow, error)
	SetMetadataTag(ctx context.Context, metadataID int64, tagNameID int, value string) error
	GetFileFromMetadataID(ctx context.Context, metadataID int64) (FileRow, error)
	GetFileVariations(ctx context.Context, fileID int64) ([]FileVariation, error)
	CreateFileVariation(ctx context.Context, fileID int64, path string, metadata map[string]string) (FileVariation, error)

	CreateTask(ctx context.Context, payload []byte) (int64, error)
	DequeueTask(ctx context.Context) (TaskRow, bool, error)
	DeleteTask(ctx context.Context, id int64) error
	SanitizeTaskStatus(ctx context.Context) (resetCount int, err error)
	GetTasks(ctx context.Context) ([]TaskRow, error)
	GetTask(ctx context.Context, id int64) (TaskRow, bool, error)
}

// AudioSpec describes a decoded track's PCM shape.
type AudioSpec struct {
	Rate     float64
	Channels int
}

// DecodedBlock is one block of decoded, float-converted interleaved samples.
type DecodedBlock struct {
	Spec    AudioSpec
	Samples []float32
}

// Decoder wraps an opaque probe/decoder for encoded audio containers
// (spec §4.3/§6). ReadBlocks calls yield for every decoded block in order;
// yield returns false to stop iteration early. Packet-level decode errors
// are expected to be logged and skipped by the implementation; only
// unrecoverable stream errors should be returned.
type Decoder interface {
	Probe(ctx context.Context, r io.Reader, pathHint string) (TrackInfo, error)
	ReadBlocks(ctx context.Context, yield func(DecodedBlock) bool) error
}

// TrackInfo is what Probe learns before any decoding happens.
type TrackInfo struct {
	Spec             AudioSpec
	TotalFramesCount int64
	HasDefaultTrack  bool
}

// Stem is one named output of the splitter.
type Stem struct {
	Name     string
	Spec     AudioSpec
	Samples  []float32
}

// SplitterModel describes a discoverable stem-separation model (§6: "Models
// are discovered via an index JSON").
type SplitterModel struct {
	Name         string
	OutputCount  int
	OutputNames  []string
	TrackNames   []string
}

// Splitter wraps the opaque PCM stem-splitter subprocess collaborator.
type Splitter interface {
	ListModels(ctx context.Context) ([]SplitterModel, error)
	Split(ctx context.Context, model SplitterModel, spec AudioSpec, samples []float32) ([]Stem, error)
}

// Onset is one detected transient (glossary: "a detected audio event with a
// timestamp, duration, detector confidence, and instantaneous tempo
// estimate").
type Onset struct {
	OffsetSeconds float64
	Duration      float64
	Confidence    float64
	BPM           float64
}

// OnsetDetector wraps the opaque onset-detection library invoked in
// spectral-difference mode (spec §4.2, Non-goals: "any MIR algorithm beyond
// invoking the onset detector"). Feed is called once per non-overlapping hop
// of mono samples at the configured sample rate; it returns the onset
// detected in that hop, if any.
type OnsetDetector interface {
	Feed(hop []float32) (onset Onset, detected bool)
}

// OnsetDetectorFactory builds a fresh OnsetDetector configured for a given
// sample rate / window / hop, mirroring how the opaque library is
// constructed per detect_onsets call.
type OnsetDetectorFactory func(sampleRate int, winSize, hopSize int) OnsetDetector

// OutputStreamConfig is what the audio host negotiates for its default
// output device.
type OutputStreamConfig struct {
	SampleFormat string // "i8","i16","i32","i64","f32","f64"
	SampleRate   float64
	Channels     int
}

// WriteFunc is the real-time pull callback the audio host repeatedly
// invokes with a mutable output buffer it owns.
type WriteFunc func(out []byte, channels int, sampleRate float64)

// Stream is a playable output stream returned by AudioHost.BuildOutputStream.
type Stream interface {
	Start() error
	Close() error
}

// AudioHost wraps device enumeration and stream construction (§6).
type AudioHost interface {
	DefaultOutputConfig(ctx context.Context) (OutputStreamConfig, error)
	BuildOutputStream(ctx context.Context, cfg OutputStreamConfig, write WriteFunc, onError func(error)) (Stream, error)
}

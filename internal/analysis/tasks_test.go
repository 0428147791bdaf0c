package analysis

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/selectia/selectia-core/internal/ports"
	"github.com/selectia/selectia-core/internal/ports/fake"
	"github.com/selectia/selectia-core/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileAnalysisRunnerWritesTempoTag(t *testing.T) {
	catalog := fake.NewCatalog()

	path := filepath.Join(t.TempDir(), "track.wav")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	metaRow, _, err := catalog.GetOrCreateMetadata(context.Background(), "hash-1")
	require.NoError(t, err)
	_, err = catalog.CreateOrReplaceFile(context.Background(), path, metaRow.ID)
	require.NoError(t, err)

	dec := &fake.Decoder{
		Info: ports.TrackInfo{HasDefaultTrack: true, Spec: ports.AudioSpec{Rate: 44100, Channels: 1}},
		Blocks: []ports.DecodedBlock{
			{Spec: ports.AudioSpec{Rate: 44100, Channels: 1}, Samples: clickTrack(44100, 10, 0.5).Samples},
		},
	}

	runner := &FileAnalysisRunner{
		Catalog:  catalog,
		Decoder:  dec,
		Splitter: fake.NewSplitter(),
		Onsets:   fake.NewOnsetDetectorFactory(0),
	}

	err = runner.Run(context.Background(), scheduler.TaskPayload{Kind: scheduler.TaskFileAnalysis, MetadataID: metaRow.ID})
	require.NoError(t, err)

	tag, ok := catalog.MetadataTag(metaRow.ID, ports.TagTempo)
	require.True(t, ok)
	bpm, err := strconv.ParseFloat(tag, 64)
	require.NoError(t, err)
	assert.InDelta(t, 120, bpm, 2)
}

func TestFileAnalysisRunnerMissingFileFails(t *testing.T) {
	catalog := fake.NewCatalog()
	runner := &FileAnalysisRunner{
		Catalog:  catalog,
		Decoder:  &fake.Decoder{},
		Splitter: fake.NewSplitter(),
		Onsets:   fake.NewOnsetDetectorFactory(0),
	}
	err := runner.Run(context.Background(), scheduler.TaskPayload{Kind: scheduler.TaskFileAnalysis, MetadataID: 999})
	assert.Error(t, err)
}

type fakeDemuxer struct {
	err error
}

func (d *fakeDemuxer) Demux(_ context.Context, input, output string) error {
	if d.err != nil {
		return d.err
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return err
	}
	for _, stem := range []string{"vocals.wav", "drums.wav", "bass.wav", "other.wav"} {
		if err := os.WriteFile(filepath.Join(output, stem), []byte("stem data"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func TestStemExtractionRunnerPersistsOneVariationPerStem(t *testing.T) {
	catalog := fake.NewCatalog()
	path := filepath.Join(t.TempDir(), "track.wav")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	metaRow, _, err := catalog.GetOrCreateMetadata(context.Background(), "hash-2")
	require.NoError(t, err)
	fileRow, err := catalog.CreateOrReplaceFile(context.Background(), path, metaRow.ID)
	require.NoError(t, err)

	runner := &StemExtractionRunner{Catalog: catalog, Demuxer: &fakeDemuxer{}}
	require.NoError(t, runner.Run(context.Background(), scheduler.TaskPayload{Kind: scheduler.TaskStemExtraction, MetadataID: metaRow.ID}))

	variations, err := catalog.GetFileVariations(context.Background(), fileRow.ID)
	require.NoError(t, err)
	require.Len(t, variations, 4)
	names := make(map[string]bool)
	for _, v := range variations {
		names[v.Metadata["stem"]] = true
		assert.Equal(t, v.Metadata["stem"], v.Metadata["title"])
	}
	assert.True(t, names["vocals"] && names["drums"] && names["bass"] && names["other"])
}

func TestStemExtractionRunnerDemuxFailureCreatesNoVariations(t *testing.T) {
	catalog := fake.NewCatalog()
	path := filepath.Join(t.TempDir(), "track.wav")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	metaRow, _, err := catalog.GetOrCreateMetadata(context.Background(), "hash-3")
	require.NoError(t, err)
	fileRow, err := catalog.CreateOrReplaceFile(context.Background(), path, metaRow.ID)
	require.NoError(t, err)

	runner := &StemExtractionRunner{Catalog: catalog, Demuxer: &fakeDemuxer{err: assert.AnError}}
	err = runner.Run(context.Background(), scheduler.TaskPayload{Kind: scheduler.TaskStemExtraction, MetadataID: metaRow.ID})
	require.Error(t, err)

	variations, err := catalog.GetFileVariations(context.Background(), fileRow.ID)
	require.NoError(t, err)
	assert.Empty(t, variations)
}

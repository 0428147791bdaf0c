package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/selectia/selectia-core/internal/audiobuf"
	"github.com/selectia/selectia-core/internal/decoder"
	"github.com/selectia/selectia-core/internal/ports"
	"github.com/selectia/selectia-core/internal/scheduler"
)

const (
	fourStemsModel = "4stems"
	drumsStemName  = "drums"
	analysisRate   = 44100
	onsetWinSize   = 512
	onsetHopSize   = 256
)

// FileAnalysisRunner implements the file-analysis task body (spec §4.5):
// decode the full file, split with the 4stems model, keep drums, reduce to
// mono at 44100 Hz, detect onsets, and write the resulting BPM estimate as
// the metadata's tempo tag.
type FileAnalysisRunner struct {
	Catalog  ports.Catalog
	Decoder  ports.Decoder
	Splitter ports.Splitter
	Onsets   ports.OnsetDetectorFactory
}

func (r *FileAnalysisRunner) Run(ctx context.Context, payload scheduler.TaskPayload) error {
	fileRow, err := r.Catalog.GetFileFromMetadataID(ctx, payload.MetadataID)
	if err != nil {
		return fmt.Errorf("analysis: file lookup %d: %w", payload.MetadataID, err)
	}

	f, err := os.Open(fileRow.Path)
	if err != nil {
		return fmt.Errorf("analysis: open %s: %w", fileRow.Path, err)
	}
	defer f.Close()

	reader, err := decoder.FromSource(ctx, r.Decoder, f, fileRow.Path)
	if err != nil {
		return fmt.Errorf("analysis: probe %s: %w", fileRow.Path, err)
	}
	full, err := reader.ReadIntoPayload(ctx, fileRow.Path)
	if err != nil {
		return fmt.Errorf("analysis: decode %s: %w", fileRow.Path, err)
	}

	model, err := r.lookupModel(ctx, fourStemsModel)
	if err != nil {
		return err
	}
	stems, err := r.Splitter.Split(ctx, model, ports.AudioSpec{Rate: full.SampleRate, Channels: full.Channels}, full.Samples)
	if err != nil {
		return fmt.Errorf("analysis: split %s: %w", fileRow.Path, err)
	}

	drums, err := pickStem(stems, drumsStemName)
	if err != nil {
		return err
	}

	mono, err := drums.IntoMono()
	if err != nil {
		return fmt.Errorf("analysis: mono-mix drums %s: %w", fileRow.Path, err)
	}
	resampled, err := mono.Resample(analysisRate)
	if err != nil {
		return fmt.Errorf("analysis: resample drums %s: %w", fileRow.Path, err)
	}
	filtered := resampled.RemoveDCOffset()

	onsets, err := filtered.DetectOnsets(onsetWinSize, onsetHopSize, r.Onsets)
	if err != nil {
		slog.Warn("analysis: onset detection failed, tempo tag unchanged", "path", fileRow.Path, "error", err)
		return nil
	}
	bpm, ok := EstimateBPM(onsets)
	if !ok {
		slog.Warn("analysis: no usable onsets, tempo tag unchanged", "path", fileRow.Path)
		return nil
	}

	if err := r.Catalog.SetMetadataTag(ctx, payload.MetadataID, ports.TagTempo, strconv.FormatFloat(bpm, 'f', 2, 64)); err != nil {
		return fmt.Errorf("analysis: write tempo tag %d: %w", payload.MetadataID, err)
	}
	return nil
}

func (r *FileAnalysisRunner) lookupModel(ctx context.Context, name string) (ports.SplitterModel, error) {
	models, err := r.Splitter.ListModels(ctx)
	if err != nil {
		return ports.SplitterModel{}, fmt.Errorf("analysis: list splitter models: %w", err)
	}
	for _, m := range models {
		if m.Name == name {
			return m, nil
		}
	}
	return ports.SplitterModel{}, fmt.Errorf("analysis: no splitter model named %q", name)
}

func pickStem(stems []ports.Stem, name string) (*audiobuf.Payload, error) {
	for _, s := range stems {
		if s.Name == name {
			return audiobuf.NewPayload(name, s.Samples, s.Spec.Rate, s.Spec.Channels), nil
		}
	}
	return nil, fmt.Errorf("analysis: splitter produced no %q stem", name)
}

// Demuxer is the narrow slice of *demuxer.Handle the stem-extraction task
// needs; defined here so the runner can be tested without a live proxy.
type Demuxer interface {
	Demux(ctx context.Context, input, output string) error
}

// StemExtractionRunner implements the stem-extraction task body (spec
// §4.5): invoke the demuxer on the file and persist one file-variation row
// per stem file it writes to the output directory.
type StemExtractionRunner struct {
	Catalog ports.Catalog
	Demuxer Demuxer
}

func (r *StemExtractionRunner) Run(ctx context.Context, payload scheduler.TaskPayload) error {
	fileRow, err := r.Catalog.GetFileFromMetadataID(ctx, payload.MetadataID)
	if err != nil {
		return fmt.Errorf("analysis: file lookup %d: %w", payload.MetadataID, err)
	}

	outputDir := fileRow.Path + ".stems"
	if err := r.Demuxer.Demux(ctx, fileRow.Path, outputDir); err != nil {
		return fmt.Errorf("analysis: demux %s: %w", fileRow.Path, err)
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return fmt.Errorf("analysis: list stems %s: %w", outputDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stemName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		metadata := map[string]string{"stem": stemName, "title": stemName}
		stemPath := filepath.Join(outputDir, entry.Name())
		if _, err := r.Catalog.CreateFileVariation(ctx, fileRow.ID, stemPath, metadata); err != nil {
			return fmt.Errorf("analysis: persist stem variation %s: %w", stemPath, err)
		}
	}
	return nil
}

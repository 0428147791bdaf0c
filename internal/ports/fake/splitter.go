package fake

import (
	"context"

	"github.com/selectia/selectia-core/internal/ports"
)

// Splitter stands in for the PCM stem-splitter subprocess (spec §4.5/§6). It
// "separates" a track deterministically: every requested output stem is the
// input attenuated by a fixed per-stem gain, which is enough for tests that
// check shape and routing rather than separation quality.
type Splitter struct {
	Models []ports.SplitterModel
	Gains  map[string]float32 // stem name -> gain; defaults to 0.5
}

// FourStemsModel is the model named in spec §4.5's file-analysis task.
var FourStemsModel = ports.SplitterModel{
	Name:        "4stems",
	OutputCount: 4,
	OutputNames: []string{"vocals", "drums", "bass", "other"},
	TrackNames:  []string{"vocals", "drums", "bass", "other"},
}

func NewSplitter() *Splitter {
	return &Splitter{Models: []ports.SplitterModel{FourStemsModel}}
}

func (s *Splitter) ListModels(_ context.Context) ([]ports.SplitterModel, error) {
	return s.Models, nil
}

func (s *Splitter) Split(_ context.Context, model ports.SplitterModel, spec ports.AudioSpec, samples []float32) ([]ports.Stem, error) {
	stems := make([]ports.Stem, 0, len(model.OutputNames))
	for _, name := range model.OutputNames {
		gain := float32(0.5)
		if g, ok := s.Gains[name]; ok {
			gain = g
		}
		out := make([]float32, len(samples))
		for i, v := range samples {
			out[i] = v * gain
		}
		stems = append(stems, ports.Stem{Name: name, Spec: spec, Samples: out})
	}
	return stems, nil
}

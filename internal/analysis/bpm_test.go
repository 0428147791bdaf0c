package analysis

import (
	"testing"

	"github.com/selectia/selectia-core/internal/audiobuf"
	"github.com/selectia/selectia-core/internal/ports"
	"github.com/selectia/selectia-core/internal/ports/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clickTrack builds a mono buffer of evenly spaced clicks, mirroring
// internal/audiobuf's onset-periodicity fixture, to drive detect_onsets
// into the aggregator under test.
func clickTrack(rate float64, clicks int, intervalSeconds float64) *audiobuf.Payload {
	total := int(float64(clicks+1) * intervalSeconds * rate)
	samples := make([]float32, total)
	burst := 40
	for i := 0; i < clicks; i++ {
		start := int(float64(i+1) * intervalSeconds * rate)
		for j := 0; j < burst && start+j < total; j++ {
			samples[start+j] = 0.9
		}
	}
	return audiobuf.NewPayload("clicks", samples, rate, 1)
}

func TestEstimateBPMFromSteadyClickTrackIsApproximately120(t *testing.T) {
	p := clickTrack(44100, 10, 0.5)
	onsets, err := p.DetectOnsets(512, 256, fake.NewOnsetDetectorFactory(0))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(onsets), 8)

	bpm, ok := EstimateBPM(onsets)
	require.True(t, ok)
	assert.InDelta(t, 120, bpm, 2)
}

func TestEstimateBPMRejectsOutliers(t *testing.T) {
	steady := []float64{0, 0.5, 1.0, 1.5, 2.0, 2.5, 3.0}
	onsets := make([]ports.Onset, 0, len(steady)+1)
	for _, s := range steady {
		onsets = append(onsets, ports.Onset{OffsetSeconds: s})
	}
	// One wildly early extra onset bends the naive mean far from 120 bpm;
	// the trimming pass should discard the period it introduces.
	onsets = append(onsets, ports.Onset{OffsetSeconds: 3.01})

	bpm, ok := EstimateBPM(onsets)
	require.True(t, ok)
	assert.InDelta(t, 120, bpm, 4)
}

func TestEstimateBPMRequiresAtLeastTwoOnsets(t *testing.T) {
	_, ok := EstimateBPM([]ports.Onset{{OffsetSeconds: 1}})
	assert.False(t, ok)

	_, ok = EstimateBPM(nil)
	assert.False(t, ok)
}

func TestEstimateBPMIgnoresNonPositivePeriods(t *testing.T) {
	onsets := []ports.Onset{
		{OffsetSeconds: 1.0},
		{OffsetSeconds: 1.0}, // duplicate timestamp, zero period
		{OffsetSeconds: 1.5},
		{OffsetSeconds: 2.0},
	}
	bpm, ok := EstimateBPM(onsets)
	require.True(t, ok)
	assert.InDelta(t, 120, bpm, 0.01)
}

package fake

import (
	"math"

	"github.com/selectia/selectia-core/internal/ports"
)

// spectralDiffDetector is a minimal energy-difference onset detector: it
// flags a hop as an onset when its RMS energy jumps by more than threshold
// over the previous hop's, with a refractory period so a single transient
// spanning several hops is only reported once. It stands in for the real
// spectral-difference onset-detection library (spec §4.2) — an external,
// non-reimplemented collaborator per spec §1/§6.
type spectralDiffDetector struct {
	sampleRate int
	winSize    int
	hopSize    int
	threshold  float64
	refractory float64

	lastEnergy       float64
	samplesSeen      int64
	haveLastOnset    bool
	lastOnsetSeconds float64
}

// NewOnsetDetectorFactory returns a ports.OnsetDetectorFactory whose
// detectors fire when hop-to-hop RMS energy rises by more than threshold.
// threshold <= 0 selects a default tuned for clearly separated transients
// (percussive clicks, drum hits) against near-silence.
func NewOnsetDetectorFactory(threshold float64) ports.OnsetDetectorFactory {
	if threshold <= 0 {
		threshold = 0.05
	}
	return func(sampleRate, winSize, hopSize int) ports.OnsetDetector {
		return &spectralDiffDetector{
			sampleRate: sampleRate,
			winSize:    winSize,
			hopSize:    hopSize,
			threshold:  threshold,
			refractory: 0.05,
		}
	}
}

func (d *spectralDiffDetector) Feed(hop []float32) (ports.Onset, bool) {
	energy := rms(hop)
	diff := energy - d.lastEnergy
	d.lastEnergy = energy

	offsetSeconds := float64(d.samplesSeen) / float64(d.sampleRate)
	d.samplesSeen += int64(len(hop))

	if diff <= d.threshold {
		return ports.Onset{}, false
	}
	if d.haveLastOnset && offsetSeconds-d.lastOnsetSeconds < d.refractory {
		return ports.Onset{}, false
	}

	var bpm float64
	if d.haveLastOnset {
		period := offsetSeconds - d.lastOnsetSeconds
		if period > 0 {
			bpm = 60.0 / period
		}
	}
	d.lastOnsetSeconds = offsetSeconds
	d.haveLastOnset = true

	confidence := diff
	if confidence > 1 {
		confidence = 1
	}
	return ports.Onset{
		OffsetSeconds: offsetSeconds,
		Duration:      float64(len(hop)) / float64(d.sampleRate),
		Confidence:    confidence,
		BPM:           bpm,
	}, true
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

package audiobuf

import (
	"math"

	"github.com/selectia/selectia-core/internal/ports"
)

// DetectOnsets consumes the (mono) buffer in non-overlapping hopSize chunks,
// feeding each in order to one detector, constructed for this call, in
// spectral-difference mode. Requires an integer-valued sample rate (within 1e-4) since the
// opaque detector is configured with an integer rate; a buffer shorter than
// hopSize yields an empty sequence rather than an error.
func (p *Payload) DetectOnsets(winSize, hopSize int, newDetector ports.OnsetDetectorFactory) ([]ports.Onset, error) {
	rounded := math.Round(p.SampleRate)
	if math.Abs(p.SampleRate-rounded) > 1e-4 {
		return nil, ErrInvalidSampleRate
	}

	var onsets []ports.Onset
	total := len(p.Samples)
	if total < hopSize {
		return onsets, nil
	}

	detector := newDetector(int(rounded), winSize, hopSize)
	for start := 0; start+hopSize <= total; start += hopSize {
		hop := p.Samples[start : start+hopSize]
		if onset, ok := detector.Feed(hop); ok {
			onsets = append(onsets, onset)
		}
	}
	return onsets, nil
}

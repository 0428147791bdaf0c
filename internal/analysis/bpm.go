// Package analysis holds the file-analysis and stem-extraction task bodies
// registered with the scheduler as scheduler.Runner implementations, plus
// the BPM aggregation step that turns a raw onset sequence into a single
// tempo estimate (spec §4.9).
package analysis

import (
	"sort"

	"github.com/selectia/selectia-core/internal/ports"
)

// EstimateBPM computes consecutive-onset periods, maps each to 60/period
// bpm values, then trims outliers by iterative median filtering: keep
// entries within ±15 bpm of the overall median, recompute the median, keep
// entries within ±4 bpm of that, and report the mean of what survives.
// Returns (0, false) if fewer than two onsets are given (no period can be
// formed) or if every derived period is non-positive.
func EstimateBPM(onsets []ports.Onset) (float64, bool) {
	if len(onsets) < 2 {
		return 0, false
	}

	bpms := make([]float64, 0, len(onsets)-1)
	for i := 1; i < len(onsets); i++ {
		period := onsets[i].OffsetSeconds - onsets[i-1].OffsetSeconds
		if period <= 0 {
			continue
		}
		bpms = append(bpms, 60.0/period)
	}
	if len(bpms) == 0 {
		return 0, false
	}

	coarse := filterNear(bpms, median(bpms), 15)
	if len(coarse) == 0 {
		coarse = bpms
	}
	fine := filterNear(coarse, median(coarse), 4)
	if len(fine) == 0 {
		fine = coarse
	}

	return mean(fine), true
}

func filterNear(values []float64, center float64, tolerance float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= center-tolerance && v <= center+tolerance {
			out = append(out, v)
		}
	}
	return out
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

package planner

import "math"

const gib = 1 << 30

// EstimateOutputSize predicts the package size in bytes for pre-flight disk
// checks. copyHigh means the high tier is planned as a stream copy.
// The result includes a 20% margin and never drops below 2 GiB.
func EstimateOutputSize(sourceBytes int64, copyHigh bool, tiers []Tier, audioTracks int) int64 {
	src := float64(sourceBytes) / gib
	n := float64(len(tiers))

	var est float64
	if copyHigh && Contains(tiers, TierHigh) {
		est = src * 1.2
		if Contains(tiers, TierMedium) {
			est += src * 0.4
		}
		if Contains(tiers, TierLow) {
			est += src * 0.15
		}
	} else {
		est = src * n * 0.6
	}

	if audioTracks < 1 {
		audioTracks = 1
	}
	est += float64(audioTracks) * n * 0.1
	est *= 1.2

	est = math.Max(est, 2.0)
	return int64(est * gib)
}

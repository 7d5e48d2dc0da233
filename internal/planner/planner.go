package planner

import (
	"fmt"

	"github.com/backmassage/hlsladder/internal/config"
	"github.com/backmassage/hlsladder/internal/probe"
)

// Rendition is the planned output for one video tier.
type Rendition struct {
	Profile EncodeProfile
	Scale   Scale
	Copy    bool // try stream copy before encoding
}

// Ladder is the complete plan for one source: every requested tier in
// priority order with its profile, computed scale and strategy.
type Ladder struct {
	Mode       config.QualityMode
	Tiers      []Tier // high, medium, low order
	Renditions map[Tier]Rendition
	Verdict    probe.Verdict
}

// CopyHigh reports whether the high tier starts with a stream copy.
func (l *Ladder) CopyHigh() bool {
	r, ok := l.Renditions[TierHigh]
	return ok && r.Copy
}

// BuildLadder produces the Ladder for a video track. This is the decision
// matrix the pipeline calls once per package.
//
// Flow:
//  1. Classify the track for stream-copy safety
//  2. Look up per-tier profiles for (regime, mode, tier)
//  3. Compute the aspect-preserving even scale for each tier
//  4. Mark the high tier for copy when safe and not forced to re-encode
func BuildLadder(v *probe.VideoTrack, mode config.QualityMode, tiers []Tier, forceReencode bool) (*Ladder, error) {
	if v == nil {
		return nil, probe.ErrNoVideo
	}

	// --- 1. Copy safety ---
	verdict := probe.CopySafety(v)
	if forceReencode && verdict.Safe {
		verdict = probe.Verdict{Safe: false, Reason: "re-encode forced"}
	}

	// --- 2. Profiles ---
	profiles, err := Plan(v.Height, mode, tiers)
	if err != nil {
		return nil, fmt.Errorf("plan ladder: %w", err)
	}

	l := &Ladder{
		Mode:       mode,
		Tiers:      Ordered(tiers),
		Renditions: make(map[Tier]Rendition, len(profiles)),
		Verdict:    verdict,
	}

	// --- 3 + 4. Scale and strategy ---
	for _, t := range l.Tiers {
		p := profiles[t]
		l.Renditions[t] = Rendition{
			Profile: p,
			Scale:   CalculateScale(v.Width, v.Height, p.Height),
			Copy:    t == TierHigh && verdict.Safe,
		}
	}
	return l, nil
}

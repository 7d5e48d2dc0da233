package planner

import (
	"fmt"

	"github.com/backmassage/hlsladder/internal/config"
)

// regime selects the table family from the source height.
type regime int

const (
	regimeSD  regime = iota // < 720
	regimeHD                // >= 720
	regimeFHD               // >= 1080
	regimeUHD               // >= 2160
)

func regimeFor(sourceHeight int) regime {
	switch {
	case sourceHeight >= 2160:
		return regimeUHD
	case sourceHeight >= 1080:
		return regimeFHD
	case sourceHeight >= 720:
		return regimeHD
	default:
		return regimeSD
	}
}

func (r regime) String() string {
	switch r {
	case regimeUHD:
		return "2160p+"
	case regimeFHD:
		return "1080p+"
	case regimeHD:
		return "720p+"
	default:
		return "sub-720p"
	}
}

type ladderKey struct {
	regime regime
	mode   config.QualityMode
	tier   Tier
}

// sourceHeight in a table row means "use the source height".
const sourceHeight = 0

// row is one table entry before height clamping.
type row struct {
	height   int
	bitrate  string
	maxrate  string
	bufsize  string
	crf      int
	preset   string
	advanced bool
}

// Lower tiers below 2160p share one row set regardless of regime.
var (
	maxMedium720 = row{720, "3500k", "3800k", "5200k", 21, "slow", true}
	maxLow480    = row{480, "1800k", "2000k", "2700k", 23, "medium", true}
	balMedium720 = row{720, "2800k", "3000k", "4200k", 23, "medium", false}
	balLow480    = row{480, "1400k", "1500k", "2100k", 26, "fast", false}
)

var ladder = map[ladderKey]row{
	{regimeUHD, config.ModeMaximum, TierHigh}:    {sourceHeight, "18000k", "20000k", "27000k", 18, "slow", true},
	{regimeUHD, config.ModeMaximum, TierMedium}:  {1080, "6000k", "6500k", "9000k", 21, "slow", true},
	{regimeUHD, config.ModeMaximum, TierLow}:     {480, "1800k", "2000k", "2700k", 23, "medium", true},
	{regimeUHD, config.ModeBalanced, TierHigh}:   {sourceHeight, "16000k", "17000k", "24000k", 20, "medium", false},
	{regimeUHD, config.ModeBalanced, TierMedium}: {1080, "5000k", "5350k", "7500k", 23, "medium", false},
	{regimeUHD, config.ModeBalanced, TierLow}:    {480, "1400k", "1500k", "2100k", 26, "fast", false},

	{regimeFHD, config.ModeMaximum, TierHigh}:  {sourceHeight, "6000k", "6500k", "9000k", 19, "slow", true},
	{regimeFHD, config.ModeBalanced, TierHigh}: {sourceHeight, "5000k", "5350k", "7500k", 21, "medium", false},
	{regimeHD, config.ModeMaximum, TierHigh}:   {sourceHeight, "3500k", "3800k", "5200k", 20, "slow", true},
	{regimeHD, config.ModeBalanced, TierHigh}:  {sourceHeight, "2800k", "3000k", "4200k", 22, "medium", false},
	{regimeSD, config.ModeMaximum, TierHigh}:   {sourceHeight, "1800k", "2000k", "2700k", 21, "medium", true},
	{regimeSD, config.ModeBalanced, TierHigh}:  {sourceHeight, "1400k", "1500k", "2100k", 23, "fast", false},
}

func init() {
	for _, r := range []regime{regimeFHD, regimeHD, regimeSD} {
		ladder[ladderKey{r, config.ModeMaximum, TierMedium}] = maxMedium720
		ladder[ladderKey{r, config.ModeMaximum, TierLow}] = maxLow480
		ladder[ladderKey{r, config.ModeBalanced, TierMedium}] = balMedium720
		ladder[ladderKey{r, config.ModeBalanced, TierLow}] = balLow480
	}
}

var audioLadder = map[config.QualityMode]map[Tier]string{
	config.ModeMaximum:  {TierHigh: "256k", TierMedium: "192k", TierLow: "128k"},
	config.ModeBalanced: {TierHigh: "192k", TierMedium: "128k", TierLow: "96k"},
}

// AudioFor returns the AAC profile for tier under mode.
func AudioFor(mode config.QualityMode, tier Tier) AudioProfile {
	return AudioProfile{Bitrate: audioLadder[mode][tier], SampleRate: 48000, Channels: 2}
}

// Plan derives an EncodeProfile for each requested tier. Target heights never
// exceed the source height and are always even.
func Plan(srcHeight int, mode config.QualityMode, tiers []Tier) (map[Tier]EncodeProfile, error) {
	if srcHeight <= 0 {
		return nil, fmt.Errorf("invalid source height %d", srcHeight)
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no tiers requested")
	}
	if _, ok := audioLadder[mode]; !ok {
		return nil, fmt.Errorf("unknown quality mode %q", mode)
	}

	reg := regimeFor(srcHeight)
	out := make(map[Tier]EncodeProfile, len(tiers))
	for _, t := range tiers {
		r, ok := ladder[ladderKey{reg, mode, t}]
		if !ok {
			return nil, fmt.Errorf("no ladder entry for %s/%s/%s", reg, mode, t)
		}
		h := r.height
		if h == sourceHeight || h > srcHeight {
			h = srcHeight
		}
		h -= h % 2
		out[t] = EncodeProfile{
			Tier:         t,
			Height:       h,
			VideoBitrate: r.bitrate,
			MaxRate:      r.maxrate,
			BufSize:      r.bufsize,
			CRF:          r.crf,
			Preset:       r.preset,
			Advanced:     r.advanced,
			Audio:        AudioFor(mode, t),
		}
	}
	return out, nil
}

// RegimeLabel describes the table family chosen for srcHeight (for logs).
func RegimeLabel(srcHeight int) string { return regimeFor(srcHeight).String() }

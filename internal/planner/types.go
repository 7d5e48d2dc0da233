package planner

import (
	"fmt"
	"strconv"
	"strings"
)

// Tier is one named quality level of the ladder.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// TierOrder is the fixed priority order used for scheduling and manifest emission.
var TierOrder = []Tier{TierHigh, TierMedium, TierLow}

// rank returns the position of t in TierOrder, or len(TierOrder) if unknown.
func (t Tier) rank() int {
	for i, o := range TierOrder {
		if o == t {
			return i
		}
	}
	return len(TierOrder)
}

// AudioProfile is the AAC rendition settings for one tier.
type AudioProfile struct {
	Bitrate    string // e.g. "192k"
	SampleRate int
	Channels   int
}

// EncodeProfile holds the settings for one video tier. Values are plain
// data; workers receive their own copy.
type EncodeProfile struct {
	Tier         Tier
	Height       int    // target height, clamped to the source and even
	VideoBitrate string // e.g. "5000k"
	MaxRate      string
	BufSize      string
	CRF          int
	Preset       string
	Advanced     bool // extended x264 tuning
	Audio        AudioProfile
}

// VideoBitsPerSecond returns VideoBitrate in bits/sec.
func (p EncodeProfile) VideoBitsPerSecond() int64 { return BitsPerSecond(p.VideoBitrate) }

// AudioBitsPerSecond returns the tier's audio bitrate in bits/sec.
func (p EncodeProfile) AudioBitsPerSecond() int64 { return BitsPerSecond(p.Audio.Bitrate) }

// Scale is a computed output frame size. Both dimensions are even.
type Scale struct {
	Width  int
	Height int
}

// String renders the scale as ffmpeg's "W:H".
func (s Scale) String() string { return fmt.Sprintf("%d:%d", s.Width, s.Height) }

// Resolution renders the scale as "WxH" for playlists.
func (s Scale) Resolution() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// BitsPerSecond parses an ffmpeg rate like "18000k", "6M" or "128000".
// Unparseable input yields 0.
func BitsPerSecond(rate string) int64 {
	s := strings.TrimSpace(strings.ToLower(rate))
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1000, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1000000, strings.TrimSuffix(s, "m")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f * float64(mult))
}

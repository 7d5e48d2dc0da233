package probe

import (
	"fmt"
	"strings"
)

// MaxCopyLevel is the highest H.264 level (as reported by ffprobe, x10)
// accepted for stream copy.
const MaxCopyLevel = 51

var (
	copyCodecPrefixes = []string{"h264", "avc", "avc1"}
	// Substring match against the lowercased profile.
	copyRejectedProfiles = []string{"high 10", "high 4:2:2", "high 4:4:4", "high 10 intra"}
	copyPixFmts          = map[string]bool{"yuv420p": true, "yuvj420p": true}
)

// Verdict is the stream-copy decision for one video track.
type Verdict struct {
	Safe   bool
	Reason string
}

// CopySafety decides from container metadata alone whether v can be remuxed
// into HLS without re-encoding. Every field must be present and accepted;
// the segment validator remains the authority on actual playability.
func CopySafety(v *VideoTrack) Verdict {
	if v == nil {
		return Verdict{Reason: "no video track"}
	}

	codec := strings.ToLower(strings.TrimSpace(v.Codec))
	if codec == "" {
		return Verdict{Reason: "codec unknown"}
	}
	if !hasAnyPrefix(codec, copyCodecPrefixes) {
		return Verdict{Reason: fmt.Sprintf("codec %s is not H.264", codec)}
	}

	profile := strings.ToLower(strings.TrimSpace(v.Profile))
	if profile == "" {
		return Verdict{Reason: "profile unknown"}
	}
	for _, p := range copyRejectedProfiles {
		if strings.Contains(profile, p) {
			return Verdict{Reason: fmt.Sprintf("profile %s is not browser-safe", v.Profile)}
		}
	}

	if v.Level <= 0 {
		return Verdict{Reason: "level unknown"}
	}
	if v.Level > MaxCopyLevel {
		return Verdict{Reason: fmt.Sprintf("level %.1f exceeds 5.1", float64(v.Level)/10)}
	}

	pixFmt := strings.ToLower(strings.TrimSpace(v.PixFmt))
	if pixFmt == "" {
		return Verdict{Reason: "pixel format unknown"}
	}
	if !copyPixFmts[pixFmt] {
		return Verdict{Reason: fmt.Sprintf("pixel format %s is not 8-bit 4:2:0", pixFmt)}
	}

	return Verdict{Safe: true, Reason: fmt.Sprintf("H.264 %s level %.1f %s", v.Profile, float64(v.Level)/10, pixFmt)}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

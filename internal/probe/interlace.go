package probe

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// InterlaceThreshold is the interlaced-frame ratio above which a source is
// treated as interlaced.
const InterlaceThreshold = 0.3

// idetFrames is how many frames the idet filter samples.
const idetFrames = 200

// IdetCounts holds the frame classification from the idet filter's
// "Multi frame detection" summary.
type IdetCounts struct {
	TFF         int
	BFF         int
	Progressive int
}

// Ratio returns the share of interlaced frames, or 0 when nothing was counted.
func (c IdetCounts) Ratio() float64 {
	total := c.TFF + c.BFF + c.Progressive
	if total == 0 {
		return 0
	}
	return float64(c.TFF+c.BFF) / float64(total)
}

// Interlaced reports whether the ratio exceeds InterlaceThreshold.
func (c IdetCounts) Interlaced() bool { return c.Ratio() > InterlaceThreshold }

var (
	reMultiFrame = regexp.MustCompile(`Multi frame detection:(.*)`)
	reTFF        = regexp.MustCompile(`TFF:\s*(\d+)`)
	reBFF        = regexp.MustCompile(`BFF:\s*(\d+)`)
	reProg       = regexp.MustCompile(`Progressive:\s*(\d+)`)
)

// ParseIdet extracts the multi-frame counts from ffmpeg's idet output.
// ok is false when no "Multi frame detection" line is present.
func ParseIdet(output string) (counts IdetCounts, ok bool) {
	m := reMultiFrame.FindStringSubmatch(output)
	if m == nil {
		return IdetCounts{}, false
	}
	line := m[1]
	counts.TFF = firstInt(reTFF, line)
	counts.BFF = firstInt(reBFF, line)
	counts.Progressive = firstInt(reProg, line)
	return counts, true
}

func firstInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// DetectInterlace samples the first frames of path with ffmpeg's idet filter.
// The call is bounded by timeout. An error means the probe could not decide;
// callers fall back to the container field_order hint.
func DetectInterlace(ctx context.Context, ffmpegBin, path string, timeout time.Duration) (IdetCounts, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-hide_banner",
		"-i", path,
		"-vf", "idet",
		"-frames:v", strconv.Itoa(idetFrames),
		"-an",
		"-f", "null",
		"-",
	)
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return IdetCounts{}, fmt.Errorf("interlace probe: %w", ctx.Err())
	}
	counts, ok := ParseIdet(string(out))
	if !ok {
		if err != nil {
			return IdetCounts{}, fmt.Errorf("interlace probe: %w", err)
		}
		return IdetCounts{}, fmt.Errorf("interlace probe: no idet summary in output")
	}
	return counts, nil
}

// FieldOrderInterlaced reports whether the container field_order indicates
// interlaced content (tt, bb, tb, bt).
func (v *VideoTrack) FieldOrderInterlaced() bool {
	if v == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v.FieldOrder)) {
	case "tt", "bb", "tb", "bt":
		return true
	}
	return false
}

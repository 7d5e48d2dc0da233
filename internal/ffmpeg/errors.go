package ffmpeg

import (
	"regexp"
	"strings"
)

// CopyFailure classifies why a stream-copy attempt exited non-zero. The
// class is diagnostic only; every class takes the same fallback path.
type CopyFailure int

const (
	CopyFailureGeneric CopyFailure = iota
	CopyFailureTimestamps
	CopyFailureKeyframes
)

func (c CopyFailure) String() string {
	switch c {
	case CopyFailureTimestamps:
		return "non-monotonous DTS"
	case CopyFailureKeyframes:
		return "keyframe issues"
	default:
		return "ffmpeg error"
	}
}

// copyFailureTailLines is how much of stderr the classifier inspects.
const copyFailureTailLines = 10

var reTimestampIssue = regexp.MustCompile(
	`(?i)non-monotonous DTS|non monotonically increasing dts|` +
		`DTS .*out of order|PTS .*out of order`)

// ClassifyCopyFailure inspects the last lines of stderr from a failed copy.
func ClassifyCopyFailure(stderr string) CopyFailure {
	tail := lastLines(stderr, copyFailureTailLines)
	switch {
	case reTimestampIssue.MatchString(tail):
		return CopyFailureTimestamps
	case strings.Contains(strings.ToLower(tail), "keyframe"):
		return CopyFailureKeyframes
	default:
		return CopyFailureGeneric
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

package validate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/backmassage/hlsladder/internal/ffmpeg"
)

// FFprobeKeyframes reads first-frame picture types with ffprobe, one bounded
// call per segment.
type FFprobeKeyframes struct {
	Runner  ffmpeg.Runner
	Builder ffmpeg.Builder
	Timeout time.Duration
}

// FirstFrameType implements KeyframeProber.
func (p *FFprobeKeyframes) FirstFrameType(ctx context.Context, segment string) (string, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	res := p.Runner.Run(ctx, p.Builder.KeyframeProbeArgs(segment))
	if res.Err != nil {
		return "", fmt.Errorf("ffprobe %s: %w", segment, res.Err)
	}
	out := strings.TrimSpace(res.Stdout)
	first, _, _ := strings.Cut(out, "\n")
	return strings.TrimSpace(strings.TrimSuffix(first, ",")), nil
}

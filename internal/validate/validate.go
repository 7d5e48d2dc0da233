// Package validate checks that a produced HLS rendition is structurally
// playable: segment durations near the 6-second target and every sampled
// segment starting on a keyframe. It is the authority that confirms a
// stream copy; failures come back as human-readable reasons.
package validate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/backmassage/hlsladder/internal/ffmpeg"
)

// Duration thresholds, centered on the 6-second segment target.
const (
	MinSegmentSeconds = 4.0
	MaxSegmentSeconds = 8.0
	MaxStdDevSeconds  = 2.0
	MinSegments       = 2
)

// DefaultSampleSegments is how many leading segments are keyframe-checked.
const DefaultSampleSegments = 3

// Result is the outcome of validating one rendition.
type Result struct {
	Valid  bool
	Reason string
	Stats  Stats
}

// Stats summarises the #EXTINF durations of a playlist.
type Stats struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64 // sample (n-1) standard deviation
}

// KeyframeProber reports the picture type ("I", "P", "B") of the first
// video frame in a segment file.
type KeyframeProber interface {
	FirstFrameType(ctx context.Context, segment string) (string, error)
}

// Validator validates renditions written under ffmpeg.Target names.
type Validator struct {
	Prober         KeyframeProber
	SampleSegments int // 0 means DefaultSampleSegments
}

// Validate reads target's playlist, checks duration statistics and then
// samples the first segments for keyframe alignment.
func (v *Validator) Validate(ctx context.Context, target ffmpeg.Target) Result {
	f, err := os.Open(target.Playlist())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Reason: "M3U8 file not found"}
		}
		return Result{Reason: fmt.Sprintf("Validation error: %v", err)}
	}
	durations, err := ParseDurations(f)
	f.Close()
	if err != nil {
		return Result{Reason: fmt.Sprintf("Validation error: %v", err)}
	}

	res := CheckDurations(durations)
	if !res.Valid {
		return res
	}

	if ok, reason := v.checkKeyframes(ctx, target); !ok {
		return Result{Reason: "Duration OK but " + reason, Stats: res.Stats}
	}

	s := res.Stats
	res.Reason = fmt.Sprintf("Valid: %d segments, avg=%.2fs, stddev=%.2fs, keyframes OK", s.Count, s.Mean, s.StdDev)
	return res
}

// ParseDurations extracts every #EXTINF duration from a media playlist.
func ParseDurations(r io.Reader) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		rest, ok := strings.CutPrefix(line, "#EXTINF:")
		if !ok {
			continue
		}
		val, _, _ := strings.Cut(rest, ",")
		d, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("bad EXTINF %q: %w", line, err)
		}
		out = append(out, d)
	}
	return out, sc.Err()
}

// CheckDurations applies the count, min, max and spread thresholds. On
// success Result.Valid is true and Reason is empty.
func CheckDurations(d []float64) Result {
	if len(d) == 0 {
		return Result{Reason: "No segments in playlist"}
	}
	s := Summarise(d)
	if s.Count < MinSegments {
		return Result{Reason: fmt.Sprintf("Too few segments (%d)", s.Count), Stats: s}
	}
	if s.Min < MinSegmentSeconds {
		return Result{Reason: fmt.Sprintf("Segment too short: %.2fs", s.Min), Stats: s}
	}
	if s.Max > MaxSegmentSeconds {
		return Result{Reason: fmt.Sprintf("Segment too long: %.2fs", s.Max), Stats: s}
	}
	if s.StdDev > MaxStdDevSeconds {
		return Result{Reason: fmt.Sprintf("Inconsistent segments: stddev=%.2fs", s.StdDev), Stats: s}
	}
	return Result{Valid: true, Stats: s}
}

// Summarise computes count, min, max, mean and sample standard deviation.
func Summarise(d []float64) Stats {
	s := Stats{Count: len(d)}
	if len(d) == 0 {
		return s
	}
	s.Min, s.Max = d[0], d[0]
	var sum float64
	for _, x := range d {
		sum += x
		s.Min = math.Min(s.Min, x)
		s.Max = math.Max(s.Max, x)
	}
	s.Mean = sum / float64(len(d))
	if len(d) > 1 {
		var sq float64
		for _, x := range d {
			sq += (x - s.Mean) * (x - s.Mean)
		}
		s.StdDev = math.Sqrt(sq / float64(len(d)-1))
	}
	return s
}

func (v *Validator) checkKeyframes(ctx context.Context, target ffmpeg.Target) (bool, string) {
	segments, err := filepath.Glob(target.SegmentGlob())
	if err != nil {
		return false, fmt.Sprintf("Keyframe validation error: %v", err)
	}
	if len(segments) == 0 {
		return false, "No segment files found"
	}
	sort.Strings(segments)

	n := v.SampleSegments
	if n <= 0 {
		n = DefaultSampleSegments
	}
	if len(segments) > n {
		segments = segments[:n]
	}

	for _, seg := range segments {
		typ, err := v.Prober.FirstFrameType(ctx, seg)
		if err != nil {
			return false, fmt.Sprintf("Keyframe validation error: %v", err)
		}
		if typ != "I" {
			return false, fmt.Sprintf("Segment doesn't start with keyframe (type: %s)", typ)
		}
	}
	return true, "All segments start with keyframes"
}

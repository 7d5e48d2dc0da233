package validate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/hlsladder/internal/ffmpeg"
)

func TestCheckDurations(t *testing.T) {
	tests := []struct {
		name      string
		durations []float64
		valid     bool
		reason    string
	}{
		{"steady six seconds", []float64{6.0, 6.0, 6.0}, true, ""},
		{"too short", []float64{2.0, 6.0, 6.0}, false, "Segment too short: 2.00s"},
		{"too long", []float64{6.0, 9.0}, false, "Segment too long: 9.00s"},
		{"inconsistent", []float64{4.1, 7.9, 4.2, 7.8}, false, "Inconsistent segments: stddev="},
		{"empty", nil, false, "No segments in playlist"},
		{"single segment", []float64{6.0}, false, "Too few segments (1)"},
		{"boundaries inclusive", []float64{4.0, 8.0, 6.0, 6.0}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CheckDurations(tt.durations)
			assert.Equal(t, tt.valid, res.Valid, res.Reason)
			if tt.reason != "" {
				assert.True(t, strings.HasPrefix(res.Reason, tt.reason), "reason %q", res.Reason)
			}
		})
	}
}

func TestSummarise(t *testing.T) {
	s := Summarise([]float64{4.1, 7.9, 4.2, 7.8})
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 4.1, s.Min, 1e-9)
	assert.InDelta(t, 7.9, s.Max, 1e-9)
	assert.InDelta(t, 6.0, s.Mean, 1e-9)
	assert.InDelta(t, 2.137, s.StdDev, 0.001)

	assert.Zero(t, Summarise([]float64{6}).StdDev)
	assert.Zero(t, Summarise(nil).Count)
}

func TestParseDurations(t *testing.T) {
	const playlist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:7
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-PLAYLIST-TYPE:VOD
#EXTINF:6.006000,
video_high_000.ts
#EXTINF:5.989000,
video_high_001.ts
#EXTINF:6.000,title
video_high_002.ts
#EXT-X-ENDLIST
`
	d, err := ParseDurations(strings.NewReader(playlist))
	require.NoError(t, err)
	assert.Equal(t, []float64{6.006, 5.989, 6.0}, d)

	_, err = ParseDurations(strings.NewReader("#EXTINF:abc,\n"))
	assert.Error(t, err)
}

// fakeProber returns a fixed type per segment base name, "I" by default.
type fakeProber struct {
	types map[string]string
	err   error
	calls []string
}

func (f *fakeProber) FirstFrameType(_ context.Context, segment string) (string, error) {
	f.calls = append(f.calls, filepath.Base(segment))
	if f.err != nil {
		return "", f.err
	}
	if t, ok := f.types[filepath.Base(segment)]; ok {
		return t, nil
	}
	return "I", nil
}

// writeRendition writes a playlist with the given durations and one segment
// file per entry.
func writeRendition(t *testing.T, dir, name string, durations []float64) ffmpeg.Target {
	t.Helper()
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-TARGETDURATION:8\n")
	for i, d := range durations {
		seg := fmt.Sprintf("%s_%03d.ts", name, i)
		fmt.Fprintf(&b, "#EXTINF:%.6f,\n%s\n", d, seg)
		require.NoError(t, os.WriteFile(filepath.Join(dir, seg), []byte("ts"), 0o644))
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	target := ffmpeg.Target{Dir: dir, Name: name}
	require.NoError(t, os.WriteFile(target.Playlist(), []byte(b.String()), 0o644))
	return target
}

func TestValidate_Valid(t *testing.T) {
	dir := t.TempDir()
	target := writeRendition(t, dir, "video_high", []float64{6, 6, 6, 6, 6})
	p := &fakeProber{}
	v := &Validator{Prober: p}

	res := v.Validate(context.Background(), target)
	assert.True(t, res.Valid, res.Reason)
	assert.Equal(t, "Valid: 5 segments, avg=6.00s, stddev=0.00s, keyframes OK", res.Reason)
	assert.Equal(t, []string{"video_high_000.ts", "video_high_001.ts", "video_high_002.ts"}, p.calls)
}

func TestValidate_NotKeyframeLed(t *testing.T) {
	dir := t.TempDir()
	target := writeRendition(t, dir, "video_high", []float64{6, 6, 6})
	v := &Validator{Prober: &fakeProber{types: map[string]string{"video_high_001.ts": "P"}}}

	res := v.Validate(context.Background(), target)
	assert.False(t, res.Valid)
	assert.Equal(t, "Duration OK but Segment doesn't start with keyframe (type: P)", res.Reason)
}

func TestValidate_ProberError(t *testing.T) {
	dir := t.TempDir()
	target := writeRendition(t, dir, "video_high", []float64{6, 6})
	v := &Validator{Prober: &fakeProber{err: errors.New("timeout")}}

	res := v.Validate(context.Background(), target)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "Keyframe validation error")
}

func TestValidate_MissingPlaylist(t *testing.T) {
	v := &Validator{Prober: &fakeProber{}}
	res := v.Validate(context.Background(), ffmpeg.Target{Dir: t.TempDir(), Name: "video_high"})
	assert.False(t, res.Valid)
	assert.Equal(t, "M3U8 file not found", res.Reason)
}

func TestValidate_DurationFailureSkipsKeyframes(t *testing.T) {
	dir := t.TempDir()
	target := writeRendition(t, dir, "video_high", []float64{6, 12})
	p := &fakeProber{}
	res := (&Validator{Prober: p}).Validate(context.Background(), target)
	assert.False(t, res.Valid)
	assert.Equal(t, "Segment too long: 12.00s", res.Reason)
	assert.Empty(t, p.calls)
}

func TestValidate_NoSegmentFiles(t *testing.T) {
	dir := t.TempDir()
	target := ffmpeg.Target{Dir: dir, Name: "video_high"}
	body := "#EXTM3U\n#EXTINF:6.0,\nvideo_high_000.ts\n#EXTINF:6.0,\nvideo_high_001.ts\n"
	require.NoError(t, os.WriteFile(target.Playlist(), []byte(body), 0o644))

	res := (&Validator{Prober: &fakeProber{}}).Validate(context.Background(), target)
	assert.False(t, res.Valid)
	assert.Equal(t, "Duration OK but No segment files found", res.Reason)
}

type stubRunner struct {
	res  ffmpeg.ExecResult
	args []string
}

func (s *stubRunner) Run(ctx context.Context, args []string) ffmpeg.ExecResult {
	s.args = args
	if _, ok := ctx.Deadline(); !ok {
		return ffmpeg.ExecResult{Err: errors.New("expected deadline")}
	}
	return s.res
}

func TestFFprobeKeyframes(t *testing.T) {
	r := &stubRunner{res: ffmpeg.ExecResult{Stdout: "I\n"}}
	p := &FFprobeKeyframes{Runner: r, Builder: ffmpeg.Builder{FFprobe: "ffprobe"}, Timeout: time.Second}

	typ, err := p.FirstFrameType(context.Background(), "/out/video_high_000.ts")
	require.NoError(t, err)
	assert.Equal(t, "I", typ)
	assert.Equal(t, "ffprobe", r.args[0])
	assert.Equal(t, "/out/video_high_000.ts", r.args[len(r.args)-1])

	r.res = ffmpeg.ExecResult{Stdout: "P,\nI\n"}
	typ, err = p.FirstFrameType(context.Background(), "x.ts")
	require.NoError(t, err)
	assert.Equal(t, "P", typ)

	r.res = ffmpeg.ExecResult{ExitCode: 1, Err: errors.New("exit status 1")}
	_, err = p.FirstFrameType(context.Background(), "x.ts")
	assert.Error(t, err)
}

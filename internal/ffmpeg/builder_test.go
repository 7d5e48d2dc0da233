package ffmpeg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/hlsladder/internal/config"
	"github.com/backmassage/hlsladder/internal/planner"
)

// argValue returns the value following flag in args, or "" if absent.
func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func hasArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func indexOf(args []string, flag string) int {
	for i, a := range args {
		if a == flag {
			return i
		}
	}
	return -1
}

func swBuilder() Builder {
	return Builder{FFmpeg: "ffmpeg", FFprobe: "ffprobe", Accel: config.AccelNone, VaapiDevice: "/dev/dri/renderD128"}
}

var (
	src1080 = VideoInput{Path: "/in/movie.mkv", StreamIndex: 1, FPS: 23.976, Width: 1920, Height: 1080}
	outHigh = Target{Dir: "/out", Name: "video_high"}
)

func TestTargetPaths(t *testing.T) {
	assert.Equal(t, "/out/video_high.m3u8", outHigh.Playlist())
	assert.Equal(t, "/out/video_high_%03d.ts", outHigh.SegmentPattern())
	assert.Equal(t, "/out/video_high_*.ts", outHigh.SegmentGlob())
}

func TestCopyArgs(t *testing.T) {
	args := swBuilder().CopyArgs(src1080, outHigh)

	assert.Equal(t, "ffmpeg", args[0])
	assert.Equal(t, "0:1", argValue(args, "-map"))
	assert.Equal(t, "copy", argValue(args, "-c:v"))
	assert.True(t, hasArg(args, "-an"))
	assert.False(t, hasArg(args, "-vf"))
	assert.Equal(t, "hls", argValue(args, "-f"))
	assert.Equal(t, "6", argValue(args, "-hls_time"))
	assert.Equal(t, "vod", argValue(args, "-hls_playlist_type"))
	assert.Equal(t, "mpegts", argValue(args, "-hls_segment_type"))
	assert.Equal(t, "/out/video_high_%03d.ts", argValue(args, "-hls_segment_filename"))
	assert.Equal(t, "/out/video_high.m3u8", args[len(args)-1])
}

func TestFallbackArgs_Software(t *testing.T) {
	in := src1080
	in.Deinterlace = true
	args := swBuilder().FallbackArgs(in, planner.Scale{Width: 1920, Height: 1080}, outHigh)

	assert.Equal(t, "libx264", argValue(args, "-c:v"))
	assert.Equal(t, "slow", argValue(args, "-preset"))
	assert.Equal(t, "15", argValue(args, "-crf"))
	assert.Equal(t, x264Fallback, argValue(args, "-x264-params"))
	assert.Equal(t, "yadif=0:-1:0", argValue(args, "-vf"), "no scale filter at source size")
	assert.Equal(t, "143", argValue(args, "-g"), "floor(23.976*6)")
	assert.Equal(t, "143", argValue(args, "-keyint_min"))
	assert.Equal(t, "0", argValue(args, "-sc_threshold"))
	assert.Equal(t, "yuv420p", argValue(args, "-pix_fmt"))
	assert.True(t, hasArg(args, "-an"))
}

func TestFallbackArgs_ScalesWhenTierDiffers(t *testing.T) {
	args := swBuilder().FallbackArgs(src1080, planner.Scale{Width: 1280, Height: 720}, outHigh)
	assert.Equal(t, "scale=1280:720:flags=lanczos", argValue(args, "-vf"))

	args = swBuilder().FallbackArgs(src1080, planner.Scale{Width: 1920, Height: 1080}, outHigh)
	assert.False(t, hasArg(args, "-vf"))
}

func TestFallbackArgs_Hardware(t *testing.T) {
	tests := []struct {
		accel config.HWAccel
		check func(t *testing.T, args []string)
	}{
		{config.AccelNVENC, func(t *testing.T, args []string) {
			assert.Equal(t, "h264_nvenc", argValue(args, "-c:v"))
			assert.Equal(t, "p7", argValue(args, "-preset"))
			assert.Equal(t, "15", argValue(args, "-cq:v"))
			assert.Equal(t, "0", argValue(args, "-b:v"))
		}},
		{config.AccelQSV, func(t *testing.T, args []string) {
			assert.Equal(t, "veryslow", argValue(args, "-preset"))
			assert.Equal(t, "15", argValue(args, "-global_quality"))
		}},
		{config.AccelVideoToolbox, func(t *testing.T, args []string) {
			assert.Equal(t, "50000k", argValue(args, "-b:v"))
			assert.Equal(t, "1", argValue(args, "-allow_sw"))
		}},
		{config.AccelAMF, func(t *testing.T, args []string) {
			assert.Equal(t, "cqp", argValue(args, "-rc"))
			assert.Equal(t, "15", argValue(args, "-qp_i"))
			assert.Equal(t, "15", argValue(args, "-qp_p"))
		}},
		{config.AccelVAAPI, func(t *testing.T, args []string) {
			assert.Equal(t, "15", argValue(args, "-qp"))
			assert.Less(t, indexOf(args, "-hwaccel"), indexOf(args, "-i"), "hwaccel must precede the input")
			assert.Equal(t, "/dev/dri/renderD128", argValue(args, "-vaapi_device"))
			assert.False(t, hasArg(args, "-pix_fmt"))
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.accel), func(t *testing.T) {
			b := swBuilder()
			b.Accel = tt.accel
			tt.check(t, b.FallbackArgs(src1080, planner.Scale{Width: 1920, Height: 1080}, outHigh))
		})
	}
}

func profile(t *testing.T, mode config.QualityMode, tier planner.Tier) planner.EncodeProfile {
	t.Helper()
	p, err := planner.Plan(1080, mode, []planner.Tier{tier})
	require.NoError(t, err)
	return p[tier]
}

func TestEncodeArgs_Software(t *testing.T) {
	p := profile(t, config.ModeBalanced, planner.TierMedium)
	args := swBuilder().EncodeArgs(src1080, p, planner.Scale{Width: 1280, Height: 720}, Target{Dir: "/out", Name: "video_medium"})

	assert.Equal(t, "libx264", argValue(args, "-c:v"))
	assert.Equal(t, "medium", argValue(args, "-preset"))
	assert.Equal(t, "23", argValue(args, "-crf"))
	assert.False(t, hasArg(args, "-x264-params"))
	assert.False(t, hasArg(args, "-b:v"))
	assert.Equal(t, "scale=1280:720:flags=lanczos", argValue(args, "-vf"))
	assert.Equal(t, "3000k", argValue(args, "-maxrate"))
	assert.Equal(t, "4200k", argValue(args, "-bufsize"))
	assert.Equal(t, "47", argValue(args, "-g"))
	assert.Equal(t, "23", argValue(args, "-keyint_min"))
	assert.Equal(t, "/out/video_medium.m3u8", args[len(args)-1])
}

func TestEncodeArgs_AdvancedAndDeinterlace(t *testing.T) {
	p := profile(t, config.ModeMaximum, planner.TierLow)
	in := src1080
	in.Deinterlace = true
	args := swBuilder().EncodeArgs(in, p, planner.Scale{Width: 852, Height: 480}, Target{Dir: "/out", Name: "video_low"})

	assert.Equal(t, x264Advanced, argValue(args, "-x264-params"))
	assert.Equal(t, "yadif=0:-1:0,scale=852:480:flags=lanczos", argValue(args, "-vf"))
}

func TestEncodeArgs_RateCeilingsOnce(t *testing.T) {
	accels := []config.HWAccel{config.AccelNone, config.AccelNVENC, config.AccelQSV, config.AccelVideoToolbox, config.AccelAMF, config.AccelVAAPI}
	p := profile(t, config.ModeMaximum, planner.TierHigh)
	for _, a := range accels {
		t.Run(string(a), func(t *testing.T) {
			b := swBuilder()
			b.Accel = a
			args := b.EncodeArgs(src1080, p, planner.Scale{Width: 1920, Height: 1080}, outHigh)
			joined := strings.Join(args, " ")
			assert.Equal(t, 1, strings.Count(joined, "-maxrate "))
			assert.Equal(t, 1, strings.Count(joined, "-bufsize "))
			assert.Equal(t, b.EncoderName(), argValue(args, "-c:v"))
			if a != config.AccelNone {
				assert.Equal(t, "6000k", argValue(args, "-b:v"))
			}
		})
	}
}

func TestEncodeArgs_HardwareSpecifics(t *testing.T) {
	p := profile(t, config.ModeMaximum, planner.TierHigh)

	b := swBuilder()
	b.Accel = config.AccelNVENC
	args := b.EncodeArgs(src1080, p, planner.Scale{Width: 1920, Height: 1080}, outHigh)
	assert.Equal(t, "p7", argValue(args, "-preset"))
	assert.Equal(t, "19", argValue(args, "-cq:v"))

	b.Accel = config.AccelQSV
	args = b.EncodeArgs(src1080, p, planner.Scale{Width: 1920, Height: 1080}, outHigh)
	assert.Equal(t, "veryslow", argValue(args, "-preset"))

	b.Accel = config.AccelAMF
	args = b.EncodeArgs(src1080, p, planner.Scale{Width: 1920, Height: 1080}, outHigh)
	assert.Equal(t, "vbr_latency", argValue(args, "-rc"))

	b.Accel = config.AccelVAAPI
	args = b.EncodeArgs(src1080, p, planner.Scale{Width: 1280, Height: 720}, outHigh)
	assert.Equal(t, "scale_vaapi=w=1280:h=720", argValue(args, "-vf"))
	assert.Equal(t, "19", argValue(args, "-qp"))
}

func TestNvencPreset(t *testing.T) {
	assert.Equal(t, "p7", nvencPreset("slow"))
	assert.Equal(t, "p5", nvencPreset("medium"))
	assert.Equal(t, "p3", nvencPreset("fast"))
	assert.Equal(t, "p5", nvencPreset("veryfast"))
}

func TestAudioArgs(t *testing.T) {
	a := planner.AudioFor(config.ModeBalanced, planner.TierHigh)
	args := swBuilder().AudioArgs("/in/movie.mkv", 2, a, Target{Dir: "/out", Name: "audio_0_eng_high"})

	assert.Equal(t, "0:2", argValue(args, "-map"))
	assert.Equal(t, "aac", argValue(args, "-c:a"))
	assert.Equal(t, "192k", argValue(args, "-b:a"))
	assert.Equal(t, "48000", argValue(args, "-ar"))
	assert.Equal(t, "2", argValue(args, "-ac"))
	assert.Equal(t, "/out/audio_0_eng_high_%03d.ts", argValue(args, "-hls_segment_filename"))
}

func TestSubtitleArgs(t *testing.T) {
	args := swBuilder().SubtitleArgs("/in/movie.mkv", 4, "/out/subtitle_0_eng.vtt")
	assert.Equal(t, "0:4", argValue(args, "-map"))
	assert.Equal(t, "webvtt", argValue(args, "-c:s"))
	assert.Equal(t, "/out/subtitle_0_eng.vtt", args[len(args)-1])
}

func TestKeyframeProbeArgs(t *testing.T) {
	args := swBuilder().KeyframeProbeArgs("/out/video_high_000.ts")
	assert.Equal(t, "ffprobe", args[0])
	assert.Equal(t, "frame=pict_type", argValue(args, "-show_entries"))
	assert.Equal(t, "%+#1", argValue(args, "-read_intervals"))
}

func TestFrames(t *testing.T) {
	assert.Equal(t, 150, frames(25, 6))
	assert.Equal(t, 59, frames(29.97, 2))
	assert.Equal(t, 1, frames(0, 2))
}

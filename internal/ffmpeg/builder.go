package ffmpeg

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/backmassage/hlsladder/internal/config"
	"github.com/backmassage/hlsladder/internal/planner"
)

// SegmentSeconds is the HLS segment target duration.
const SegmentSeconds = 6

// FallbackQuality is the fixed "visually lossless" quality parameter used
// when a stream copy fails validation.
const FallbackQuality = 15

const (
	x264Advanced = "ref=5:bframes=5:b-adapt=2:direct=auto:me=umh:subme=9:trellis=2:aq-mode=3:aq-strength=0.8"
	x264Fallback = "ref=5:bframes=5:b-adapt=2:direct=auto:me=umh:subme=10:trellis=2"
)

// Builder assembles ffmpeg argument slices for one encoder backend.
// Accel must be resolved (never config.AccelAuto).
type Builder struct {
	FFmpeg      string
	FFprobe     string
	Accel       config.HWAccel
	VaapiDevice string
}

// VideoInput describes the source video stream for a tier job.
type VideoInput struct {
	Path        string
	StreamIndex int
	FPS         float64
	Width       int
	Height      int
	Deinterlace bool
}

// Target names an HLS output: <Dir>/<Name>.m3u8 plus <Dir>/<Name>_NNN.ts.
type Target struct {
	Dir  string
	Name string
}

// Playlist returns the media playlist path.
func (t Target) Playlist() string { return filepath.Join(t.Dir, t.Name+".m3u8") }

// SegmentPattern returns the ffmpeg segment filename template.
func (t Target) SegmentPattern() string { return filepath.Join(t.Dir, t.Name+"_%03d.ts") }

// SegmentGlob returns a filepath.Glob pattern matching this target's segments.
func (t Target) SegmentGlob() string { return filepath.Join(t.Dir, t.Name+"_*.ts") }

// EncoderName returns the ffmpeg video encoder for b.Accel.
func (b Builder) EncoderName() string {
	switch b.Accel {
	case config.AccelNVENC:
		return "h264_nvenc"
	case config.AccelQSV:
		return "h264_qsv"
	case config.AccelVideoToolbox:
		return "h264_videotoolbox"
	case config.AccelAMF:
		return "h264_amf"
	case config.AccelVAAPI:
		return "h264_vaapi"
	default:
		return "libx264"
	}
}

// CopyArgs builds the stream-copy attempt: video only, no audio, segmented
// on the source's existing keyframes.
func (b Builder) CopyArgs(in VideoInput, out Target) []string {
	args := b.preamble()
	args = append(args,
		"-i", in.Path,
		"-map", mapStream(in.StreamIndex),
		"-c:v", "copy",
		"-an",
	)
	return append(args, hlsOutput(out)...)
}

// FallbackArgs builds the visually lossless re-encode at FallbackQuality.
// scale is the tier's computed frame size; a scale filter is added only when
// it differs from the source.
func (b Builder) FallbackArgs(in VideoInput, scale planner.Scale, out Target) []string {
	args := b.preamble()
	args = append(args, b.hwInput()...)
	args = append(args, "-i", in.Path, "-map", mapStream(in.StreamIndex))
	args = append(args, b.fallbackCodec()...)

	var filters []string
	if in.Deinterlace {
		filters = append(filters, b.deinterlaceFilter())
	}
	if planner.NeedsScale(scale, in.Width, in.Height) {
		filters = append(filters, b.scaleFilter(scale))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	gop := strconv.Itoa(frames(in.FPS, SegmentSeconds))
	args = append(args, "-g", gop, "-keyint_min", gop, "-sc_threshold", "0")
	args = append(args, b.pixFmt()...)
	args = append(args, "-an")
	return append(args, hlsOutput(out)...)
}

// EncodeArgs builds the normal tier encode from the planned profile.
// Rate-control ceilings (-maxrate/-bufsize) are emitted once for every backend.
func (b Builder) EncodeArgs(in VideoInput, p planner.EncodeProfile, scale planner.Scale, out Target) []string {
	args := b.preamble()
	args = append(args, b.hwInput()...)
	args = append(args, "-i", in.Path, "-map", mapStream(in.StreamIndex))
	args = append(args, b.encoderSettings(p)...)

	var filters []string
	if in.Deinterlace {
		filters = append(filters, b.deinterlaceFilter())
	}
	filters = append(filters, b.scaleFilter(scale))
	args = append(args, "-vf", strings.Join(filters, ","))

	args = append(args,
		"-maxrate", p.MaxRate,
		"-bufsize", p.BufSize,
		"-g", strconv.Itoa(frames(in.FPS, 2)),
		"-keyint_min", strconv.Itoa(frames(in.FPS, 1)),
		"-sc_threshold", "0",
	)
	args = append(args, b.pixFmt()...)
	args = append(args, "-an")
	return append(args, hlsOutput(out)...)
}

// AudioArgs builds one AAC rendition of a source audio stream.
func (b Builder) AudioArgs(path string, streamIndex int, a planner.AudioProfile, out Target) []string {
	args := b.preamble()
	args = append(args,
		"-i", path,
		"-map", mapStream(streamIndex),
		"-c:a", "aac",
		"-b:a", a.Bitrate,
		"-ar", strconv.Itoa(a.SampleRate),
		"-ac", strconv.Itoa(a.Channels),
		"-vn",
	)
	return append(args, hlsOutput(out)...)
}

// SubtitleArgs extracts one text subtitle stream to a standalone WebVTT file.
func (b Builder) SubtitleArgs(path string, streamIndex int, vttPath string) []string {
	return []string{
		b.FFmpeg, "-hide_banner", "-nostdin",
		"-v", "warning",
		"-i", path,
		"-map", mapStream(streamIndex),
		"-c:s", "webvtt",
		"-y", vttPath,
	}
}

// KeyframeProbeArgs reads the picture type of the first video frame of segment.
func (b Builder) KeyframeProbeArgs(segment string) []string {
	return []string{
		b.FFprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "frame=pict_type",
		"-of", "csv=p=0",
		"-read_intervals", "%+#1",
		segment,
	}
}

// EncodersArgs lists the encoders compiled into ffmpeg.
func (b Builder) EncodersArgs() []string {
	return []string{b.FFmpeg, "-hide_banner", "-encoders"}
}

// --- shared pieces ---

func (b Builder) preamble() []string {
	args := make([]string, 0, 64)
	return append(args, b.FFmpeg, "-hide_banner", "-nostdin")
}

// hwInput returns the VAAPI decode options that must precede -i.
func (b Builder) hwInput() []string {
	if b.Accel != config.AccelVAAPI {
		return nil
	}
	return []string{
		"-vaapi_device", b.VaapiDevice,
		"-hwaccel", "vaapi",
		"-hwaccel_output_format", "vaapi",
	}
}

// pixFmt forces 8-bit 4:2:0 for software frames. VAAPI frames stay on the GPU.
func (b Builder) pixFmt() []string {
	if b.Accel == config.AccelVAAPI {
		return nil
	}
	return []string{"-pix_fmt", "yuv420p"}
}

func (b Builder) deinterlaceFilter() string {
	if b.Accel == config.AccelVAAPI {
		return "deinterlace_vaapi"
	}
	return "yadif=0:-1:0"
}

func (b Builder) scaleFilter(s planner.Scale) string {
	if b.Accel == config.AccelVAAPI {
		return fmt.Sprintf("scale_vaapi=w=%d:h=%d", s.Width, s.Height)
	}
	return "scale=" + s.String() + ":flags=lanczos"
}

func (b Builder) encoderSettings(p planner.EncodeProfile) []string {
	crf := strconv.Itoa(p.CRF)
	base := []string{"-c:v", b.EncoderName()}
	high := []string{"-profile:v", "high", "-level", "4.1"}

	switch b.Accel {
	case config.AccelNVENC:
		args := append(base, "-preset", nvencPreset(p.Preset))
		args = append(args, high...)
		return append(args,
			"-rc:v", "vbr",
			"-cq:v", crf,
			"-b:v", p.VideoBitrate,
			"-spatial_aq", "1",
			"-temporal_aq", "1",
		)
	case config.AccelQSV:
		preset := p.Preset
		if preset == "slow" {
			preset = "veryslow"
		}
		args := append(base, "-preset", preset)
		args = append(args, high...)
		return append(args, "-global_quality", crf, "-b:v", p.VideoBitrate)
	case config.AccelVideoToolbox:
		args := append(base, high...)
		return append(args, "-b:v", p.VideoBitrate, "-allow_sw", "1")
	case config.AccelAMF:
		args := append(base, "-quality", "quality")
		args = append(args, high...)
		return append(args,
			"-rc", "vbr_latency",
			"-qp_i", crf,
			"-qp_p", crf,
			"-b:v", p.VideoBitrate,
		)
	case config.AccelVAAPI:
		args := append(base, high...)
		return append(args, "-qp", crf, "-b:v", p.VideoBitrate)
	default:
		args := append(base, "-preset", p.Preset)
		args = append(args, high...)
		args = append(args, "-crf", crf)
		if p.Advanced {
			args = append(args, "-x264-params", x264Advanced)
		}
		return args
	}
}

func (b Builder) fallbackCodec() []string {
	q := strconv.Itoa(FallbackQuality)
	base := []string{"-c:v", b.EncoderName()}
	high := []string{"-profile:v", "high", "-level", "4.1"}

	switch b.Accel {
	case config.AccelNVENC:
		args := append(base, "-preset", "p7")
		args = append(args, high...)
		return append(args,
			"-rc:v", "vbr",
			"-cq:v", q,
			"-b:v", "0",
			"-spatial_aq", "1",
			"-temporal_aq", "1",
		)
	case config.AccelQSV:
		args := append(base, "-preset", "veryslow")
		args = append(args, high...)
		return append(args, "-global_quality", q)
	case config.AccelVideoToolbox:
		args := append(base, high...)
		return append(args, "-b:v", "50000k", "-allow_sw", "1")
	case config.AccelAMF:
		args := append(base, "-quality", "quality")
		args = append(args, high...)
		return append(args, "-rc", "cqp", "-qp_i", q, "-qp_p", q)
	case config.AccelVAAPI:
		args := append(base, high...)
		return append(args, "-qp", q)
	default:
		args := append(base, "-preset", "slow")
		args = append(args, high...)
		return append(args, "-crf", q, "-x264-params", x264Fallback)
	}
}

// nvencPreset maps x264 preset names onto NVENC's p1..p7 scale.
func nvencPreset(preset string) string {
	switch preset {
	case "slow":
		return "p7"
	case "fast":
		return "p3"
	default:
		return "p5"
	}
}

func hlsOutput(out Target) []string {
	return []string{
		"-f", "hls",
		"-hls_time", strconv.Itoa(SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_type", "mpegts",
		"-hls_segment_filename", out.SegmentPattern(),
		"-v", "warning",
		"-stats",
		"-y", out.Playlist(),
	}
}

func mapStream(index int) string { return "0:" + strconv.Itoa(index) }

// frames returns floor(fps*seconds), at least 1.
func frames(fps float64, seconds int) int {
	n := int(math.Floor(fps * float64(seconds)))
	if n < 1 {
		return 1
	}
	return n
}

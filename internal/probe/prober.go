package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoVideo is returned when a source has no usable video stream.
var ErrNoVideo = errors.New("no video stream found")

// DefaultFPS is used when the frame rate cannot be parsed.
const DefaultFPS = 25.0

// Probe runs a single ffprobe JSON call against path using the ffprobe
// binary bin and returns the parsed descriptor.
func Probe(ctx context.Context, bin, path string) (*StreamDescriptor, error) {
	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	d, err := ParseJSON(out)
	if err != nil {
		return nil, err
	}
	d.Source = path
	return d, nil
}

// ParseJSON converts raw ffprobe JSON output into a StreamDescriptor.
// It returns ErrNoVideo when no non-cover-art video stream is present.
func ParseJSON(data []byte) (*StreamDescriptor, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	d := buildDescriptor(&raw)
	if d.Video == nil {
		return d, ErrNoVideo
	}
	return d, nil
}

// ParseFrameRate parses "N/D" or a plain number into frames per second,
// rounded to 3 decimals. Any failure, including a zero denominator, yields
// DefaultFPS.
func ParseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultFPS
	}
	num, den, isRatio := strings.Cut(s, "/")
	if !isRatio {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
			return DefaultFPS
		}
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 || n <= 0 {
		return DefaultFPS
	}
	return math.Round(n/d*1000) / 1000
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index          int               `json:"index"`
	CodecName      string            `json:"codec_name"`
	CodecType      string            `json:"codec_type"`
	Profile        string            `json:"profile"`
	Level          int               `json:"level"`
	PixFmt         string            `json:"pix_fmt"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	BitRate        string            `json:"bit_rate"`
	FieldOrder     string            `json:"field_order"`
	ColorTransfer  string            `json:"color_transfer"`
	ColorPrimaries string            `json:"color_primaries"`
	ColorSpace     string            `json:"color_space"`
	RFrameRate     string            `json:"r_frame_rate"`
	Channels       int               `json:"channels"`
	SampleRate     string            `json:"sample_rate"`
	Disposition    map[string]int    `json:"disposition"`
	Tags           map[string]string `json:"tags"`
}

// --- Conversion from wire types to domain types ---

func buildDescriptor(raw *ffprobeOutput) *StreamDescriptor {
	d := &StreamDescriptor{
		Format: FormatInfo{
			Filename:   raw.Format.Filename,
			FormatName: raw.Format.FormatName,
			Duration:   parseFloat(raw.Format.Duration),
			Size:       parseInt64(raw.Format.Size),
			BitRate:    parseInt64(raw.Format.BitRate),
		},
	}

	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch strings.ToLower(s.CodecType) {
		case "video":
			v := convertVideo(s)
			if !v.IsAttachedPic && d.Video == nil {
				d.Video = &v
			}
		case "audio":
			d.Audio = append(d.Audio, convertAudio(s, len(d.Audio)+1))
		case "subtitle":
			d.Subtitles = append(d.Subtitles, convertSubtitle(s, len(d.Subtitles)+1))
		}
	}
	return d
}

func convertVideo(s *ffprobeStream) VideoTrack {
	rate := s.RFrameRate
	if rate == "" {
		rate = "25/1"
	}
	return VideoTrack{
		Index:          s.Index,
		Codec:          s.CodecName,
		Profile:        s.Profile,
		Level:          s.Level,
		PixFmt:         s.PixFmt,
		Width:          s.Width,
		Height:         s.Height,
		FrameRate:      rate,
		FPS:            ParseFrameRate(rate),
		BitRate:        parseInt64(s.BitRate),
		FieldOrder:     s.FieldOrder,
		ColorTransfer:  s.ColorTransfer,
		ColorPrimaries: s.ColorPrimaries,
		ColorSpace:     s.ColorSpace,
		IsAttachedPic:  s.Disposition["attached_pic"] == 1,
	}
}

func convertAudio(s *ffprobeStream, position int) AudioTrack {
	lang := language(s.Tags)
	channels := s.Channels
	if channels <= 0 {
		channels = 2
	}
	sampleRate := parseInt(s.SampleRate)
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return AudioTrack{
		Index:      s.Index,
		Codec:      s.CodecName,
		Channels:   channels,
		SampleRate: sampleRate,
		Language:   lang,
		Title:      title(s.Tags, lang, "Audio", position),
		BitRate:    parseInt64(s.BitRate),
	}
}

var bitmapSubCodecs = map[string]bool{
	"hdmv_pgs_subtitle": true,
	"dvd_subtitle":      true,
	"dvdsub":            true,
	"pgssub":            true,
	"pgs":               true,
}

func convertSubtitle(s *ffprobeStream, position int) SubtitleTrack {
	lang := language(s.Tags)
	return SubtitleTrack{
		Index:    s.Index,
		Codec:    s.CodecName,
		Language: lang,
		Title:    title(s.Tags, lang, "Subtitle", position),
		IsBitmap: bitmapSubCodecs[strings.ToLower(s.CodecName)],
	}
}

func language(tags map[string]string) string {
	if l := strings.TrimSpace(tags["language"]); l != "" {
		return l
	}
	return "und"
}

// title prefers the tag title, then the uppercased language, then
// "<kind> <position>" for untagged tracks.
func title(tags map[string]string, lang, kind string, position int) string {
	if t := strings.TrimSpace(tags["title"]); t != "" {
		return t
	}
	if lang != "und" {
		return strings.ToUpper(lang)
	}
	return kind + " " + strconv.Itoa(position)
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

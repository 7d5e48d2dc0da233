// Package probe turns ffprobe JSON into an immutable StreamDescriptor and
// derives the signals the encode engine consumes: frame rate, HDR, interlace
// and stream-copy safety.
package probe

import "strconv"

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename   string
	FormatName string
	Duration   float64 // seconds
	Size       int64
	BitRate    int64
}

// VideoTrack holds the parsed properties of the selected video stream.
type VideoTrack struct {
	Index          int
	Codec          string
	Profile        string
	Level          int
	PixFmt         string
	Width          int
	Height         int
	FrameRate      string  // raw r_frame_rate, e.g. "24000/1001"
	FPS            float64 // parsed FrameRate, 25.0 on failure
	BitRate        int64   // bits/sec; 0 when ffprobe does not report it
	FieldOrder     string
	ColorTransfer  string
	ColorPrimaries string
	ColorSpace     string
	IsAttachedPic  bool
}

// AudioTrack holds the parsed properties of one audio stream.
type AudioTrack struct {
	Index      int
	Codec      string
	Channels   int
	SampleRate int
	Language   string // "und" when untagged
	Title      string
	BitRate    int64
}

// SubtitleTrack holds the parsed properties of one subtitle stream.
type SubtitleTrack struct {
	Index    int
	Codec    string
	Language string
	Title    string
	IsBitmap bool
}

// StreamDescriptor is the fully parsed, read-only description of one source.
// It is produced once per package and shared by every worker.
type StreamDescriptor struct {
	Source    string
	Format    FormatInfo
	Video     *VideoTrack
	Audio     []AudioTrack
	Subtitles []SubtitleTrack
}

// VideoBitRate returns the video stream bitrate in bits/sec, or 0 when the
// stream does not report one. The container bitrate is not substituted
// because it includes audio.
func (d *StreamDescriptor) VideoBitRate() int64 {
	if d.Video == nil {
		return 0
	}
	return d.Video.BitRate
}

// Resolution returns "WxH" for the video track, or "unknown".
func (d *StreamDescriptor) Resolution() string {
	if d.Video == nil || d.Video.Width <= 0 || d.Video.Height <= 0 {
		return "unknown"
	}
	return strconv.Itoa(d.Video.Width) + "x" + strconv.Itoa(d.Video.Height)
}

// TextSubtitles returns the subtitle tracks that can be converted to WebVTT.
func (d *StreamDescriptor) TextSubtitles() []SubtitleTrack {
	var out []SubtitleTrack
	for _, s := range d.Subtitles {
		if !s.IsBitmap {
			out = append(out, s)
		}
	}
	return out
}

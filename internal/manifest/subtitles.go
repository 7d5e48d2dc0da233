package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// SubtitleIndexName is the JSON index of converted subtitle files.
const SubtitleIndexName = "subtitles.json"

// Subtitle is one converted WebVTT file as recorded in subtitles.json.
type Subtitle struct {
	File     string `json:"file"`
	Language string `json:"language"`
	Title    string `json:"title"`
	Index    int    `json:"index"`
}

type subtitleIndex struct {
	Subtitles []Subtitle `json:"subtitles"`
}

// WriteSubtitleIndex writes dir/subtitles.json. Nothing is written for an
// empty list.
func WriteSubtitleIndex(dir string, subs []Subtitle) error {
	if len(subs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(subtitleIndex{Subtitles: subs}); err != nil {
		return fmt.Errorf("encode subtitle index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SubtitleIndexName), buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write subtitle index: %w", err)
	}
	return nil
}

// SubtitlePlaylist renders a single-segment VOD playlist for one VTT file.
func SubtitlePlaylist(vttFile string, duration float64) string {
	target := int(math.Ceil(duration))
	if target < 1 {
		target = 1
	}
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", target)
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
	fmt.Fprintf(&b, "#EXTINF:%.3f,\n", duration)
	b.WriteString(vttFile + "\n")
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// WriteSubtitlePlaylist writes the playlist for s next to its VTT file.
func WriteSubtitlePlaylist(dir string, s Subtitle, duration float64) error {
	name := strings.TrimSuffix(s.File, filepath.Ext(s.File)) + ".m3u8"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(SubtitlePlaylist(s.File, duration)), 0644); err != nil {
		return fmt.Errorf("write subtitle playlist: %w", err)
	}
	return nil
}

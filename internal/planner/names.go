package planner

import (
	"fmt"
	"regexp"
)

var unsafeLangChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SafeLang replaces every character outside [A-Za-z0-9_-] with '_'.
func SafeLang(lang string) string {
	return unsafeLangChars.ReplaceAllString(lang, "_")
}

// VideoName is the output base name for a video tier.
func VideoName(t Tier) string { return "video_" + string(t) }

// AudioName is the output base name for the position-th audio track at tier t.
func AudioName(position int, lang string, t Tier) string {
	return fmt.Sprintf("audio_%d_%s_%s", position, SafeLang(lang), t)
}

// SubtitleName is the output base name for the position-th subtitle track.
func SubtitleName(position int, lang string) string {
	return fmt.Sprintf("subtitle_%d_%s", position, SafeLang(lang))
}

// AudioGroup is the master-playlist GROUP-ID for a tier's audio renditions.
func AudioGroup(t Tier) string { return "audio-" + string(t) }

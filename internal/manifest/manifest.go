// Package manifest assembles the HLS master playlist from the renditions a
// package actually produced, plus the subtitle playlists and the
// subtitles.json index. Entries are emitted in fixed tier priority order
// and only for outputs that exist on disk.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/backmassage/hlsladder/internal/planner"
	"github.com/backmassage/hlsladder/internal/probe"
	"github.com/backmassage/hlsladder/internal/scheduler"
)

const (
	// MasterName is the master playlist file name.
	MasterName = "master.m3u8"

	// SubtitleGroup is the GROUP-ID shared by all subtitle renditions.
	SubtitleGroup = "subs"

	videoCodec = "avc1.640029"
	audioCodec = "mp4a.40.2"

	// minSubtitleBytes is the size a converted VTT must exceed to count.
	minSubtitleBytes = 10
)

// Media is one #EXT-X-MEDIA declaration.
type Media struct {
	Type       string // AUDIO or SUBTITLES
	GroupID    string
	Name       string
	Language   string
	Default    bool
	AutoSelect bool
	Channels   int // audio only
	URI        string
}

// Variant is one #EXT-X-STREAM-INF entry.
type Variant struct {
	Tier             planner.Tier
	Bandwidth        int64
	AverageBandwidth int64
	Resolution       string
	Codecs           string
	FrameRate        float64
	Audio            string // group ID, empty when the tier has no audio
	Subtitles        string
	URI              string
}

// Manifest is the assembled master playlist.
type Manifest struct {
	Media    []Media
	Variants []Variant
}

// Input is everything Assemble needs for one package.
type Input struct {
	Dir       string
	Ladder    *planner.Ladder
	Source    *probe.StreamDescriptor
	Jobs      []*scheduler.Job // optional; failed jobs are excluded
	Subtitles []Subtitle
}

// Assemble builds the master playlist for in.Dir. Tiers are emitted high,
// medium, low regardless of request or completion order.
func Assemble(in Input) *Manifest {
	m := &Manifest{}
	jobs := indexJobs(in.Jobs)
	tiers := planner.Ordered(in.Ladder.Tiers)

	audioGroups := make(map[planner.Tier]bool)
	for pos, a := range in.Source.Audio {
		for _, t := range tiers {
			name := planner.AudioName(pos, a.Language, t)
			if !usable(in.Dir, name+".m3u8", jobs[name]) {
				continue
			}
			audioGroups[t] = true
			m.Media = append(m.Media, Media{
				Type:       "AUDIO",
				GroupID:    planner.AudioGroup(t),
				Name:       a.Title,
				Language:   a.Language,
				Default:    pos == 0,
				AutoSelect: pos == 0,
				Channels:   in.Ladder.Renditions[t].Profile.Audio.Channels,
				URI:        name + ".m3u8",
			})
		}
	}

	hasSubs := false
	for i, s := range in.Subtitles {
		uri := strings.TrimSuffix(s.File, filepath.Ext(s.File)) + ".m3u8"
		if !exists(in.Dir, uri) || size(in.Dir, s.File) <= minSubtitleBytes {
			continue
		}
		hasSubs = true
		m.Media = append(m.Media, Media{
			Type:       "SUBTITLES",
			GroupID:    SubtitleGroup,
			Name:       s.Title,
			Language:   s.Language,
			Default:    false,
			AutoSelect: i == 0,
			URI:        uri,
		})
	}

	var fps float64
	if in.Source.Video != nil {
		fps = in.Source.Video.FPS
	}

	for _, t := range tiers {
		name := planner.VideoName(t)
		job := jobs[name]
		if !usable(in.Dir, name+".m3u8", job) {
			continue
		}
		r := in.Ladder.Renditions[t]

		bw := r.Profile.VideoBitsPerSecond()
		if job != nil && job.Bandwidth > 0 {
			bw = job.Bandwidth
		}
		v := Variant{
			Tier:       t,
			Resolution: r.Scale.Resolution(),
			Codecs:     videoCodec,
			FrameRate:  fps,
			URI:        name + ".m3u8",
		}
		if audioGroups[t] {
			bw += r.Profile.AudioBitsPerSecond()
			v.Audio = planner.AudioGroup(t)
			v.Codecs += "," + audioCodec
		}
		if hasSubs {
			v.Subtitles = SubtitleGroup
		}
		v.Bandwidth = bw
		v.AverageBandwidth = int64(float64(bw) * 0.9)
		m.Variants = append(m.Variants, v)
	}
	return m
}

// Render produces the playlist text.
func (m *Manifest) Render() string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:6\n")
	b.WriteString("\n")

	for _, md := range m.Media {
		fmt.Fprintf(&b, "#EXT-X-MEDIA:TYPE=%s,GROUP-ID=%q,NAME=%q", md.Type, md.GroupID, md.Name)
		if md.Language != "" {
			fmt.Fprintf(&b, ",LANGUAGE=%q", md.Language)
		}
		fmt.Fprintf(&b, ",DEFAULT=%s,AUTOSELECT=%s", yesNo(md.Default), yesNo(md.AutoSelect))
		if md.Channels > 0 {
			fmt.Fprintf(&b, ",CHANNELS=\"%d\"", md.Channels)
		}
		fmt.Fprintf(&b, ",URI=%q\n", md.URI)
	}
	if len(m.Media) > 0 {
		b.WriteString("\n")
	}

	for _, v := range m.Variants {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,AVERAGE-BANDWIDTH=%d,RESOLUTION=%s,CODECS=%q,FRAME-RATE=%.3f",
			v.Bandwidth, v.AverageBandwidth, v.Resolution, v.Codecs, v.FrameRate)
		if v.Audio != "" {
			fmt.Fprintf(&b, ",AUDIO=%q", v.Audio)
		}
		if v.Subtitles != "" {
			fmt.Fprintf(&b, ",SUBTITLES=%q", v.Subtitles)
		}
		b.WriteString("\n")
		b.WriteString(v.URI + "\n")
	}
	return b.String()
}

// WriteMaster renders m into dir/master.m3u8 and returns the path.
func WriteMaster(dir string, m *Manifest) (string, error) {
	path := filepath.Join(dir, MasterName)
	if err := os.WriteFile(path, []byte(m.Render()), 0644); err != nil {
		return "", fmt.Errorf("write master playlist: %w", err)
	}
	return path, nil
}

func indexJobs(jobs []*scheduler.Job) map[string]*scheduler.Job {
	out := make(map[string]*scheduler.Job, len(jobs))
	for _, j := range jobs {
		out[j.Name] = j
	}
	return out
}

// usable reports whether a rendition playlist exists and, when its job is
// known, whether that job succeeded.
func usable(dir, file string, job *scheduler.Job) bool {
	if job != nil && !job.Succeeded() {
		return false
	}
	return exists(dir, file)
}

func exists(dir, file string) bool {
	_, err := os.Stat(filepath.Join(dir, file))
	return err == nil
}

func size(dir, file string) int64 {
	fi, err := os.Stat(filepath.Join(dir, file))
	if err != nil {
		return 0
	}
	return fi.Size()
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

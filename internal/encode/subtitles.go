package encode

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/backmassage/hlsladder/internal/manifest"
	"github.com/backmassage/hlsladder/internal/planner"
)

// minVTTBytes is the size a converted file must exceed to be kept.
const minVTTBytes = 10

// SubtitleReport counts the outcome of ConvertSubtitles.
type SubtitleReport struct {
	Converted []manifest.Subtitle
	Skipped   int
}

// ConvertSubtitles extracts every text subtitle track to a standalone
// WebVTT file and writes its single-segment playlist. Image-based tracks
// are skipped. Each conversion is bounded by timeout. Failures are logged
// and counted; they never fail the package.
func (e *Engine) ConvertSubtitles(ctx context.Context, timeout time.Duration) SubtitleReport {
	var rep SubtitleReport
	log := e.log()
	if len(e.Source.Subtitles) == 0 {
		return rep
	}
	if e.DryRun {
		log.Info("[DRY RUN] Would convert %d subtitle track(s)", len(e.Source.TextSubtitles()))
		return rep
	}

	for pos, s := range e.Source.Subtitles {
		if s.IsBitmap {
			log.Warn("Subtitle %d (%s) is image-based (%s), skipping", pos, s.Language, strings.ToLower(s.Codec))
			rep.Skipped++
			continue
		}
		file := planner.SubtitleName(pos, s.Language) + ".vtt"
		path := filepath.Join(e.OutputDir, file)

		cctx, cancel := context.WithTimeout(ctx, timeout)
		res := e.Runner.Run(cctx, e.Builder.SubtitleArgs(e.Source.Source, s.Index, path))
		timedOut := cctx.Err() == context.DeadlineExceeded
		cancel()

		switch {
		case timedOut:
			log.Warn("Subtitle %d conversion timed out", pos)
			rep.Skipped++
			continue
		case !res.OK():
			log.Warn("Subtitle %d conversion failed: %s", pos, failure("webvtt", res))
			rep.Skipped++
			continue
		}

		fi, err := os.Stat(path)
		if err != nil || fi.Size() <= minVTTBytes {
			log.Warn("Subtitle %d conversion produced empty output", pos)
			_ = os.Remove(path)
			rep.Skipped++
			continue
		}

		sub := manifest.Subtitle{File: file, Language: s.Language, Title: s.Title, Index: pos}
		if err := manifest.WriteSubtitlePlaylist(e.OutputDir, sub, e.Source.Format.Duration); err != nil {
			log.Warn("%v", err)
		}
		rep.Converted = append(rep.Converted, sub)
		log.Debug("Converted subtitle %d (%s)", pos, s.Title)
	}
	return rep
}

// Package encode is the strategy selector. It turns scheduled jobs into
// backend invocations: a stream copy that must pass segment validation,
// a visually lossless fallback when it does not, or a normal profile
// encode. It also converts text subtitles to WebVTT.
package encode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/backmassage/hlsladder/internal/display"
	"github.com/backmassage/hlsladder/internal/ffmpeg"
	"github.com/backmassage/hlsladder/internal/logging"
	"github.com/backmassage/hlsladder/internal/probe"
	"github.com/backmassage/hlsladder/internal/scheduler"
	"github.com/backmassage/hlsladder/internal/validate"
)

// Validator confirms that a copied rendition is playable.
type Validator interface {
	Validate(ctx context.Context, target ffmpeg.Target) validate.Result
}

// Engine executes the jobs of one package. The descriptor is read-only and
// shared by every worker; each job carries its own profile copy.
type Engine struct {
	Runner    ffmpeg.Runner
	Builder   ffmpeg.Builder
	Validator Validator
	Source    *probe.StreamDescriptor
	OutputDir string
	// Deinterlace applies the deinterlace filter to every video encode.
	Deinterlace bool
	DryRun      bool
	Log         *logging.Logger
}

var _ scheduler.Executor = (*Engine)(nil)

func (e *Engine) log() *logging.Logger {
	if e.Log == nil {
		return logging.Discard()
	}
	return e.Log
}

func (e *Engine) videoInput() ffmpeg.VideoInput {
	v := e.Source.Video
	return ffmpeg.VideoInput{
		Path:        e.Source.Source,
		StreamIndex: v.Index,
		FPS:         v.FPS,
		Width:       v.Width,
		Height:      v.Height,
		Deinterlace: e.Deinterlace,
	}
}

func (e *Engine) target(name string) ffmpeg.Target {
	return ffmpeg.Target{Dir: e.OutputDir, Name: name}
}

// RunVideo implements scheduler.Executor.
func (e *Engine) RunVideo(ctx context.Context, job *scheduler.Job) bool {
	if e.Source.Video == nil {
		job.Reason = probe.ErrNoVideo.Error()
		return false
	}
	log := e.log().With("tier", string(job.Tier))
	out := e.target(job.Name)

	if e.DryRun {
		e.describeVideo(log, job)
		job.Bandwidth = e.videoBandwidth(job)
		return true
	}

	if job.Strategy == scheduler.StrategyCopy {
		return e.copyThenValidate(ctx, log, job, out)
	}

	log.Info("Encoding %s at %s (%s, %s)", job.Name, job.Scale.Resolution(), e.Builder.EncoderName(), job.Profile.VideoBitrate)
	res := e.Runner.Run(ctx, e.Builder.EncodeArgs(e.videoInput(), job.Profile, job.Scale, out))
	if !res.OK() {
		job.Reason = failure("encode", res)
		return false
	}
	job.Bandwidth = job.Profile.VideoBitsPerSecond()
	log.Success("%s encoded", job.Name)
	return true
}

// copyThenValidate runs the two-stage copy path. A copy that exits non-zero
// or fails validation is cleaned up and re-encoded once at FallbackQuality.
func (e *Engine) copyThenValidate(ctx context.Context, log *logging.Logger, job *scheduler.Job, out ffmpeg.Target) bool {
	log.Info("Attempting stream copy for %s", job.Name)
	res := e.Runner.Run(ctx, e.Builder.CopyArgs(e.videoInput(), out))

	var why string
	if !res.OK() {
		why = fmt.Sprintf("stream copy failed (%s)", ffmpeg.ClassifyCopyFailure(res.Stderr))
	} else {
		vr := e.Validator.Validate(ctx, out)
		if vr.Valid {
			if err := job.Transition(scheduler.StatusValidated); err != nil {
				job.Reason = err.Error()
				return false
			}
			job.Bandwidth = e.copyBandwidth(job)
			log.Success("Stream copy validated: %s", vr.Reason)
			return true
		}
		why = "segment validation failed: " + vr.Reason
	}

	if ctx.Err() != nil {
		job.Reason = why + "; interrupted"
		return false
	}
	log.Warn("%s, falling back to visually lossless encode", why)

	if err := Cleanup(out); err != nil {
		log.Warn("Cleanup of %s: %v", job.Name, err)
	}
	if err := job.Transition(scheduler.StatusFallbackPending); err != nil {
		job.Reason = err.Error()
		return false
	}
	if err := job.Transition(scheduler.StatusRunning); err != nil {
		job.Reason = err.Error()
		return false
	}

	res = e.Runner.Run(ctx, e.Builder.FallbackArgs(e.videoInput(), job.Scale, out))
	if !res.OK() {
		job.Reason = why + "; " + failure("fallback encode", res)
		return false
	}
	job.Bandwidth = job.Profile.VideoBitsPerSecond()
	log.Success("%s re-encoded at quality %d", job.Name, ffmpeg.FallbackQuality)
	return true
}

// RunAudio implements scheduler.Executor.
func (e *Engine) RunAudio(ctx context.Context, job *scheduler.Job) bool {
	if job.Track < 0 || job.Track >= len(e.Source.Audio) {
		job.Reason = fmt.Sprintf("audio track %d out of range", job.Track)
		return false
	}
	a := e.Source.Audio[job.Track]
	prof := job.Profile.Audio

	if e.DryRun {
		e.log().Info("[DRY RUN] %s: stream %d (%s, %dch) -> AAC %s", job.Name, a.Index, a.Codec, a.Channels, prof.Bitrate)
		job.Bandwidth = job.Profile.AudioBitsPerSecond()
		return true
	}

	res := e.Runner.Run(ctx, e.Builder.AudioArgs(e.Source.Source, a.Index, prof, e.target(job.Name)))
	if !res.OK() {
		job.Reason = failure("audio encode", res)
		return false
	}
	job.Bandwidth = job.Profile.AudioBitsPerSecond()
	e.log().Debug("%s encoded", job.Name)
	return true
}

func (e *Engine) describeVideo(log *logging.Logger, job *scheduler.Job) {
	switch job.Strategy {
	case scheduler.StrategyCopy:
		log.Info("[DRY RUN] %s: stream copy at %s, validated, fallback quality %d",
			job.Name, job.Scale.Resolution(), ffmpeg.FallbackQuality)
	default:
		log.Info("[DRY RUN] %s: %s at %s, %s (max %s), crf %d, preset %s",
			job.Name, e.Builder.EncoderName(), job.Scale.Resolution(),
			job.Profile.VideoBitrate, job.Profile.MaxRate, job.Profile.CRF, job.Profile.Preset)
	}
}

func (e *Engine) videoBandwidth(job *scheduler.Job) int64 {
	if job.Strategy == scheduler.StrategyCopy {
		return e.copyBandwidth(job)
	}
	return job.Profile.VideoBitsPerSecond()
}

// copyBandwidth prefers the source's reported video bitrate.
func (e *Engine) copyBandwidth(job *scheduler.Job) int64 {
	if bps := e.Source.VideoBitRate(); bps > 0 {
		return bps
	}
	return job.Profile.VideoBitsPerSecond()
}

// Cleanup removes a target's playlist and every segment file.
func Cleanup(out ffmpeg.Target) error {
	segs, err := filepath.Glob(out.SegmentGlob())
	if err != nil {
		return err
	}
	for _, p := range append(segs, out.Playlist()) {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func failure(what string, res ffmpeg.ExecResult) string {
	if res.Err != nil && res.ExitCode < 0 {
		return fmt.Sprintf("%s did not run: %v", what, res.Err)
	}
	return fmt.Sprintf("%s exited with code %d", what, res.ExitCode)
}

// Describe summarises how a finished video job produced its output.
func Describe(job *scheduler.Job) string {
	switch job.Strategy {
	case scheduler.StrategyCopy:
		return "stream copy"
	case scheduler.StrategyFallback:
		return "visually lossless fallback"
	default:
		return "encode @ " + display.FormatBitrate(job.Profile.VideoBitsPerSecond())
	}
}

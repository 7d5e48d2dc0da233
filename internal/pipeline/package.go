package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/hlsladder/internal/config"
	"github.com/backmassage/hlsladder/internal/display"
	"github.com/backmassage/hlsladder/internal/encode"
	"github.com/backmassage/hlsladder/internal/ffmpeg"
	"github.com/backmassage/hlsladder/internal/logging"
	"github.com/backmassage/hlsladder/internal/manifest"
	"github.com/backmassage/hlsladder/internal/notify"
	"github.com/backmassage/hlsladder/internal/planner"
	"github.com/backmassage/hlsladder/internal/probe"
	"github.com/backmassage/hlsladder/internal/scheduler"
	"github.com/backmassage/hlsladder/internal/sysinfo"
	"github.com/backmassage/hlsladder/internal/validate"
)

// Deps are the external collaborators of a Packager. Zero fields are
// filled with the real implementations by NewPackager.
type Deps struct {
	Runner    ffmpeg.Runner
	Publisher notify.Publisher
	Probe     func(ctx context.Context, path string) (*probe.StreamDescriptor, error)
	Interlace func(ctx context.Context, path string) (probe.IdetCounts, error)
	FreeBytes func(ctx context.Context, path string) (uint64, error)
}

// Packager packages one source at a time. Accel must already be resolved.
type Packager struct {
	Config *config.Config
	Accel  config.HWAccel
	Deps   Deps
	Log    *logging.Logger
}

// NewPackager fills unset Deps from cfg.
func NewPackager(cfg *config.Config, accel config.HWAccel, deps Deps, log *logging.Logger) *Packager {
	if deps.Runner == nil {
		deps.Runner = &ffmpeg.ExecRunner{}
	}
	if deps.Publisher == nil {
		deps.Publisher = notify.Nop{}
	}
	if deps.Probe == nil {
		deps.Probe = func(ctx context.Context, path string) (*probe.StreamDescriptor, error) {
			return probe.Probe(ctx, cfg.FFprobePath, path)
		}
	}
	if deps.Interlace == nil {
		deps.Interlace = func(ctx context.Context, path string) (probe.IdetCounts, error) {
			return probe.DetectInterlace(ctx, cfg.FFmpegPath, path, cfg.InterlaceProbeTimeout)
		}
	}
	if deps.FreeBytes == nil {
		deps.FreeBytes = sysinfo.FreeBytes
	}
	return &Packager{Config: cfg, Accel: accel, Deps: deps, Log: log}
}

// Result is the outcome of one package.
type Result struct {
	RunID     uuid.UUID
	Input     string
	OutputDir string
	Master    string
	Ladder    *planner.Ladder
	Report    scheduler.Report
	Subtitles int
	Duration  time.Duration // source media duration
	InBytes   int64
	OutBytes  int64
	Success   bool
	Elapsed   time.Duration
}

func (p *Packager) builder() ffmpeg.Builder {
	return ffmpeg.Builder{
		FFmpeg:      p.Config.FFmpegPath,
		FFprobe:     p.Config.FFprobePath,
		Accel:       p.Accel,
		VaapiDevice: p.Config.VaapiDevice,
	}
}

// Package converts input into an HLS package under outDir. A returned error
// is a precondition failure and no job was scheduled; otherwise
// Result.Success reports whether every job succeeded.
func (p *Packager) Package(ctx context.Context, input, outDir string) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.New(), Input: input, OutputDir: outDir}
	log := p.Log.With("run", res.RunID.String())

	// --- Validate input ---
	fi, err := checkInput(input)
	if err != nil {
		return res, err
	}
	res.InBytes = fi.Size()

	// --- Probe ---
	d, err := p.Deps.Probe(ctx, input)
	if err != nil {
		return res, fmt.Errorf("probe: %w", err)
	}
	logSource(log, d)
	res.Duration = time.Duration(d.Format.Duration * float64(time.Second))

	// --- Plan ---
	tiers, err := planner.ParseTiers(p.Config.Qualities)
	if err != nil {
		return res, err
	}
	ladder, err := planner.BuildLadder(d.Video, p.Config.Mode, tiers, p.Config.ForceReencode)
	if err != nil {
		return res, err
	}
	res.Ladder = ladder
	logPlan(log, d, ladder, p.builder())

	// --- Pre-flight ---
	if err := p.handleExisting(log, outDir); err != nil {
		return res, err
	}
	sourceBytes := d.Format.Size
	if sourceBytes <= 0 {
		sourceBytes = fi.Size()
	}
	if err := p.checkDiskSpace(ctx, log, outDir, sourceBytes, ladder, len(d.Audio)); err != nil {
		return res, err
	}
	deinterlace := p.detectInterlace(ctx, log, d)
	if err := p.checkHDR(log, d.Video); err != nil {
		return res, err
	}

	if !p.Config.DryRun {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return res, fmt.Errorf("create output directory: %w", err)
		}
	}

	// --- Schedule ---
	engine := &encode.Engine{
		Runner:  p.Deps.Runner,
		Builder: p.builder(),
		Validator: &validate.Validator{Prober: &validate.FFprobeKeyframes{
			Runner:  p.Deps.Runner,
			Builder: p.builder(),
			Timeout: p.Config.KeyframeProbeTimeout,
		}},
		Source:      d,
		OutputDir:   outDir,
		Deinterlace: deinterlace,
		DryRun:      p.Config.DryRun,
		Log:         log,
	}
	audio := make([]scheduler.AudioRef, len(d.Audio))
	for i, a := range d.Audio {
		audio[i] = scheduler.AudioRef{Position: i, Language: a.Language}
	}
	sched := &scheduler.Scheduler{
		Exec:     engine,
		Parallel: p.Config.Parallel,
		Workers:  p.Config.Workers,
		Log:      log,
	}
	res.Report = sched.Run(ctx, scheduler.BuildJobs(ladder, audio))

	// --- Subtitles ---
	var subs encode.SubtitleReport
	if ctx.Err() == nil {
		subs = engine.ConvertSubtitles(ctx, p.Config.SubtitleTimeout)
	}
	res.Subtitles = len(subs.Converted)

	// --- Manifests ---
	if p.Config.DryRun {
		log.Info("[DRY RUN] Would create %s", manifest.MasterName)
	} else {
		m := manifest.Assemble(manifest.Input{
			Dir:       outDir,
			Ladder:    ladder,
			Source:    d,
			Jobs:      res.Report.Jobs,
			Subtitles: subs.Converted,
		})
		if len(m.Variants) == 0 {
			log.Error("No video renditions were produced; master playlist not written")
		} else if path, err := manifest.WriteMaster(outDir, m); err != nil {
			log.Error("%v", err)
			res.Report.Success = false
		} else {
			res.Master = path
		}
		if err := manifest.WriteSubtitleIndex(outDir, subs.Converted); err != nil {
			log.Warn("%v", err)
		}
		res.OutBytes = dirSize(outDir)
	}

	res.Success = res.Report.Success && (p.Config.DryRun || res.Master != "")
	res.Elapsed = time.Since(start)
	logResult(log, res)
	p.publish(ctx, log, res)
	return res, nil
}

func (p *Packager) publish(ctx context.Context, log *logging.Logger, res *Result) {
	ev := notify.NewEvent(res.RunID, res.Input, res.OutputDir, res.Master, res.Success, p.Config.DryRun, res.Report.Jobs)
	// Publish even after an interrupt so consumers see the partial result.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.Deps.Publisher.Publish(pctx, ev); err != nil {
		log.Warn("Publish result: %v", err)
	}
}

// logPlan prints the per-tier decisions before any job runs.
func logPlan(log *logging.Logger, d *probe.StreamDescriptor, l *planner.Ladder, b ffmpeg.Builder) {
	log.Info("Ladder: %s mode, %s regime, encoder %s", l.Mode, planner.RegimeLabel(d.Video.Height), b.EncoderName())
	if l.CopyHigh() {
		log.Info("Stream copy eligible: %s", l.Verdict.Reason)
	} else if planner.Contains(l.Tiers, planner.TierHigh) {
		log.Info("Stream copy not used: %s", l.Verdict.Reason)
	}
	for _, t := range l.Tiers {
		r := l.Renditions[t]
		strategy := "encode @ " + r.Profile.VideoBitrate
		if r.Copy {
			strategy = "stream copy"
		}
		log.Info("  %-6s %s, %s, audio AAC %s", t, r.Scale.Resolution(), strategy, r.Profile.Audio.Bitrate)
	}
}

// logResult prints the per-package summary.
func logResult(log *logging.Logger, res *Result) {
	for _, j := range res.Report.Video() {
		label := encode.Describe(j)
		if j.Succeeded() {
			log.Success("  %-6s %s (%s)", j.Tier, j.Scale.Resolution(), label)
		} else {
			log.Error("  %-6s %s failed: %s", j.Tier, j.Scale.Resolution(), j.Reason)
		}
	}
	audio := res.Report.Audio()
	ok := 0
	for _, j := range audio {
		if j.Succeeded() {
			ok++
		}
	}
	tiers := 0
	if res.Ladder != nil {
		tiers = len(res.Ladder.Tiers)
	}
	if tiers > 0 {
		log.Info("  Audio: %d/%d renditions (%d tracks x %d tiers)", ok, len(audio), len(audio)/tiers, tiers)
	}
	log.Info("  Subtitles: %d", res.Subtitles)
	if res.OutBytes > 0 {
		log.Info("  Output: %s", display.FormatBytes(res.OutBytes))
	}
	if res.Success {
		log.Success("Packaged in %s (%s realtime)", display.FormatDuration(res.Elapsed), display.FormatSpeed(res.Duration, res.Elapsed))
		return
	}
	log.Error("Package incomplete after %s: %d job(s) failed", display.FormatDuration(res.Elapsed), len(res.Report.Failed()))
}

// logSource prints the probed source streams.
func logSource(log *logging.Logger, d *probe.StreamDescriptor) {
	v := d.Video
	var flags []string
	if v.IsHDR() {
		flags = append(flags, "[HDR]")
	}
	if v.FieldOrderInterlaced() {
		flags = append(flags, "[Interlaced]")
	}
	log.Info("  Video: %s | %s | %s %s L%.1f %s | %.3f fps %s",
		d.Resolution(), display.FormatBitrate(d.VideoBitRate()), v.Codec, v.Profile,
		float64(v.Level)/10, v.PixFmt, v.FPS, strings.Join(flags, " "))
	for i, a := range d.Audio {
		log.Info("  Audio[%d]: %s %dch %s (%s)", i, a.Codec, a.Channels, a.Language, a.Title)
	}
	if n := len(d.Subtitles); n > 0 {
		log.Info("  Subtitles: %d (%d text)", n, len(d.TextSubtitles()))
	}
	logBitrateOutlier(log, d)
}

// Bitrate outlier thresholds by resolution (pixels -> low/high kbps).
type bitrateBand struct {
	maxPixels int
	lowKbps   int64
	highKbps  int64
	label     string
}

var bitrateBands = []bitrateBand{
	{640 * 360, 250, 1800, "<=360p"},
	{854 * 480, 500, 2500, "<=480p"},
	{1280 * 720, 1000, 5000, "<=720p"},
	{1920 * 1080, 2500, 10000, "<=1080p"},
	{2560 * 1440, 5000, 18000, "<=1440p"},
	{3840 * 2160, 10000, 45000, "<=2160p"},
}

// bandFor returns the expected bitrate band for a frame size.
func bandFor(width, height int) bitrateBand {
	pixels := width * height
	for _, b := range bitrateBands {
		if pixels <= b.maxPixels {
			return b
		}
	}
	return bitrateBand{0, 15000, 65000, ">2160p"}
}

// logBitrateOutlier flags sources whose bitrate is unusual for their size.
// A low-bitrate source copied into the high tier will look soft next to
// the re-encoded tiers.
func logBitrateOutlier(log *logging.Logger, d *probe.StreamDescriptor) {
	v := d.Video
	kbps := d.VideoBitRate() / 1000
	if v.Width <= 0 || v.Height <= 0 || kbps <= 0 {
		return
	}
	b := bandFor(v.Width, v.Height)
	switch {
	case kbps < b.lowKbps:
		log.Warn("  Bitrate outlier (low): %d kb/s for %s; expected %d-%d kb/s (%s)", kbps, d.Resolution(), b.lowKbps, b.highKbps, b.label)
	case kbps > b.highKbps:
		log.Warn("  Bitrate outlier (high): %d kb/s for %s; expected %d-%d kb/s (%s)", kbps, d.Resolution(), b.lowKbps, b.highKbps, b.label)
	}
}

// dirSize sums the sizes of the regular files directly in dir.
func dirSize(dir string) int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var n int64
	for _, e := range entries {
		if info, err := e.Info(); err == nil && info.Mode().IsRegular() {
			n += info.Size()
		}
	}
	return n
}

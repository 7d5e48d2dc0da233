// Package check provides system diagnostics (--check mode) and pre-pipeline
// dependency validation (CheckDeps) for ffmpeg, ffprobe and the H.264, AAC
// and WebVTT encoders the ladder needs.
package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/backmassage/hlsladder/internal/config"
	"github.com/backmassage/hlsladder/internal/display"
	"github.com/backmassage/hlsladder/internal/ffmpeg"
	"github.com/backmassage/hlsladder/internal/sysinfo"
)

// Sentinel errors returned by CheckDeps when a required tool or encoder is missing.
var (
	ErrFfmpegNotFound     = errors.New("ffmpeg not found")
	ErrFfprobeNotFound    = errors.New("ffprobe not found")
	ErrEncoderUnavailable = ffmpeg.ErrEncoderUnavailable
	ErrNoVAAPIDevice      = errors.New("VAAPI render device not found")
)

// gpuQueryTimeout bounds the nvidia-smi call behind the session advisory.
const gpuQueryTimeout = 2 * time.Second

// Logger is the minimal logging interface needed by this package.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(string, ...interface{})
}

// Checker runs dependency checks through a Runner so tests can substitute
// canned ffmpeg output.
type Checker struct {
	Runner   ffmpeg.Runner
	Builder  ffmpeg.Builder
	LookPath func(string) (string, error) // defaults to exec.LookPath
}

// New returns a Checker for the binaries and device named in cfg.
func New(cfg *config.Config, r ffmpeg.Runner) *Checker {
	return &Checker{
		Runner: r,
		Builder: ffmpeg.Builder{
			FFmpeg:      cfg.FFmpegPath,
			FFprobe:     cfg.FFprobePath,
			Accel:       config.AccelNone,
			VaapiDevice: cfg.VaapiDevice,
		},
	}
}

func (c *Checker) lookPath(name string) (string, error) {
	if c.LookPath != nil {
		return c.LookPath(name)
	}
	return exec.LookPath(name)
}

// CheckDeps is the pre-pipeline validation: ffmpeg and ffprobe must
// resolve, and the configured video backend must be compiled into ffmpeg.
// It returns the resolved backend (never config.AccelAuto).
func (c *Checker) CheckDeps(ctx context.Context, cfg *config.Config) (config.HWAccel, error) {
	if _, err := c.lookPath(cfg.FFmpegPath); err != nil {
		return config.AccelNone, fmt.Errorf("%w: %s", ErrFfmpegNotFound, cfg.FFmpegPath)
	}
	if _, err := c.lookPath(cfg.FFprobePath); err != nil {
		return config.AccelNone, fmt.Errorf("%w: %s", ErrFfprobeNotFound, cfg.FFprobePath)
	}

	encoders, err := ffmpeg.ListEncoders(ctx, c.Runner, c.Builder)
	if err != nil {
		return config.AccelNone, err
	}
	accel, err := ffmpeg.ResolveAccel(encoders, cfg.HWAccel)
	if err != nil {
		return accel, err
	}
	if accel == config.AccelVAAPI {
		if _, err := os.Stat(cfg.VaapiDevice); err != nil {
			return accel, fmt.Errorf("%w: %s", ErrNoVAAPIDevice, cfg.VaapiDevice)
		}
	}
	return accel, nil
}

// requiredEncoders are reported by RunCheck.
var requiredEncoders = []struct {
	name string
	role string
}{
	{"libx264", "software H.264"},
	{"aac", "AAC audio"},
	{"webvtt", "WebVTT subtitles"},
}

// RunCheck runs the --check flow: prints tool versions, required and
// hardware encoders, and host capacity. This is informational only; it
// reports false when something required is missing.
func (c *Checker) RunCheck(ctx context.Context, log Logger) bool {
	log.Info("=== System Check ===")
	ok := true

	for _, bin := range []string{c.Builder.FFmpeg, c.Builder.FFprobe} {
		if v, err := c.version(ctx, bin); err != nil {
			log.Error("%s: %v", bin, err)
			ok = false
		} else {
			log.Success("%s", v)
		}
	}

	encoders, err := ffmpeg.ListEncoders(ctx, c.Runner, c.Builder)
	if err != nil {
		log.Error("Could not list encoders: %v", err)
		return false
	}
	for _, e := range requiredEncoders {
		if ffmpeg.HasEncoder(encoders, e.name) {
			log.Success("%s encoder: %s", e.role, e.name)
		} else {
			log.Error("%s encoder missing: %s", e.role, e.name)
			ok = false
		}
	}

	hw := ffmpeg.ParseEncoders(encoders)
	if len(hw) == 0 {
		log.Info("Hardware encoders: none (software encoding)")
	} else {
		names := make([]string, len(hw))
		for i, a := range hw {
			names[i] = string(a)
		}
		log.Info("Hardware encoders: %s (auto selects %s)", strings.Join(names, ", "), hw[0])
	}

	h := sysinfo.Describe(ctx)
	log.Info("CPU: %s (%d logical, %d physical)", orUnknown(h.ModelName), h.LogicalCPUs, h.PhysicalCPUs)
	if h.MemTotal > 0 {
		log.Info("Memory: %s total, %s available",
			display.FormatBytes(int64(h.MemTotal)), display.FormatBytes(int64(h.MemAvailable)))
	}
	return ok
}

func (c *Checker) version(ctx context.Context, bin string) (string, error) {
	if _, err := c.lookPath(bin); err != nil {
		return "", errors.New("not found")
	}
	res := c.Runner.Run(ctx, []string{bin, "-version"})
	if !res.OK() {
		return "", fmt.Errorf("-version failed (exit %d)", res.ExitCode)
	}
	first, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	return first, nil
}

// GPUAdvisory warns when parallel NVENC work may be serialised by the
// consumer-GPU session limit. It never fails.
func (c *Checker) GPUAdvisory(ctx context.Context, log Logger, accel config.HWAccel, parallel bool, tiers int) {
	if accel != config.AccelNVENC || !parallel {
		return
	}
	qctx, cancel := context.WithTimeout(ctx, gpuQueryTimeout)
	defer cancel()
	res := c.Runner.Run(qctx, []string{"nvidia-smi", "--query-gpu=name", "--format=csv,noheader"})
	if !res.OK() {
		if tiers > 2 {
			log.Warn("Consumer GPUs may limit concurrent NVENC sessions")
		}
		return
	}
	name := strings.TrimSpace(strings.Split(res.Stdout, "\n")[0])
	if isWorkstationGPU(name) {
		log.Info("GPU %s: no NVENC session limit expected", name)
		return
	}
	if tiers > 2 {
		log.Warn("GPU %s may limit concurrent NVENC sessions; %d parallel tiers may be serialised", orUnknown(name), tiers)
	}
}

var workstationMarkers = []string{
	"quadro", "tesla", "rtx a", "a100", "a40", "a6000", "a5000", "a4000",
	"a2000", "t4", "t1000", "p4000", "p2000",
}

func isWorkstationGPU(name string) bool {
	n := strings.ToLower(name)
	for _, m := range workstationMarkers {
		if strings.Contains(n, m) {
			return true
		}
	}
	return false
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

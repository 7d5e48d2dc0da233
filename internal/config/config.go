// Package config holds runtime configuration: defaults, an optional YAML
// file, environment overrides, CLI flag parsing, and validation.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// --- Enum types for validated string fields ---

// QualityMode selects the ladder table family.
type QualityMode string

const (
	ModeBalanced QualityMode = "balanced" // Faster presets, higher CRF (default).
	ModeMaximum  QualityMode = "maximum"  // Slower presets, lower CRF, advanced x264 tuning.
)

// HWAccel names the video encoder backend.
type HWAccel string

const (
	AccelNone         HWAccel = "none" // Software libx264 (default).
	AccelAuto         HWAccel = "auto" // Detect from `ffmpeg -encoders` at startup.
	AccelNVENC        HWAccel = "nvenc"
	AccelQSV          HWAccel = "qsv"
	AccelVideoToolbox HWAccel = "videotoolbox"
	AccelAMF          HWAccel = "amf"
	AccelVAAPI        HWAccel = "vaapi"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// KnownQualities lists the tier names accepted by --qualities in priority order.
var KnownQualities = []string{"high", "medium", "low"}

// Config holds all runtime settings. It is populated by [DefaultConfig],
// overlaid by [LoadFile] and [ApplyEnv], and finally mutated by [ParseFlags]
// before being passed (by pointer) to packages that need it.
type Config struct {
	// Paths (set from positional args). Input may be a file or a directory.
	Input     string `yaml:"input"`
	OutputDir string `yaml:"output_dir"`

	// Ladder selection.
	Mode      QualityMode `yaml:"mode"`      // Default: "balanced".
	Qualities []string    `yaml:"qualities"` // Default: high, medium, low.

	// Encoder backend.
	HWAccel     HWAccel `yaml:"hw_accel"`     // Default: "none".
	VaapiDevice string  `yaml:"vaapi_device"` // Default: "/dev/dri/renderD128".

	// Scheduling.
	Parallel bool `yaml:"parallel"`
	Workers  int  `yaml:"workers"` // 0 = min(tiers, logical CPUs).

	// Behavior flags.
	ForceReencode    bool `yaml:"force_reencode"`
	DryRun           bool `yaml:"dry_run"`
	Overwrite        bool `yaml:"overwrite"`
	NoInterlaceCheck bool `yaml:"no_interlace_check"`
	RejectHDR        bool `yaml:"reject_hdr"`
	IgnoreDiskSpace  bool `yaml:"ignore_disk_space"`
	Watch            bool `yaml:"watch"`

	// External tools.
	FFmpegPath  string `yaml:"ffmpeg_path"`  // Default: "ffmpeg" (resolved via PATH).
	FFprobePath string `yaml:"ffprobe_path"` // Default: "ffprobe".

	// Inspection timeouts. Encodes themselves have no timeout.
	InterlaceProbeTimeout time.Duration `yaml:"interlace_probe_timeout"` // Default: 30s.
	KeyframeProbeTimeout  time.Duration `yaml:"keyframe_probe_timeout"`  // Default: 5s per segment.
	SubtitleTimeout       time.Duration `yaml:"subtitle_timeout"`        // Default: 180s per track.

	// Result publication.
	RedisURL string `yaml:"redis_url"`
	RedisKey string `yaml:"redis_key"` // Default: "hlsladder:results".

	// Display and logging.
	Verbose    bool      `yaml:"verbose"`
	ColorMode  ColorMode `yaml:"color"`
	LogFile    string    `yaml:"log_file"`
	CheckOnly  bool      `yaml:"-"`
	ConfigFile string    `yaml:"-"`
}

// DefaultConfig returns the base configuration used before any file,
// environment or flag overrides are applied.
func DefaultConfig() Config {
	return Config{
		Mode:                  ModeBalanced,
		Qualities:             append([]string(nil), KnownQualities...),
		HWAccel:               AccelNone,
		VaapiDevice:           "/dev/dri/renderD128",
		FFmpegPath:            "ffmpeg",
		FFprobePath:           "ffprobe",
		InterlaceProbeTimeout: 30 * time.Second,
		KeyframeProbeTimeout:  5 * time.Second,
		SubtitleTimeout:       180 * time.Second,
		RedisKey:              "hlsladder:results",
		ColorMode:             ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields, tier names, worker count and timeouts, and
// de-duplicates Qualities in place (first occurrence wins). When not in
// CheckOnly mode, it also requires both positional paths.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeBalanced, ModeMaximum:
		// valid
	default:
		return errors.New("invalid mode (use 'balanced' or 'maximum')")
	}

	switch c.HWAccel {
	case AccelNone, AccelAuto, AccelNVENC, AccelQSV, AccelVideoToolbox, AccelAMF, AccelVAAPI:
		// valid
	default:
		return fmt.Errorf("invalid hw-accel %q (use none, auto, nvenc, qsv, videotoolbox, amf or vaapi)", c.HWAccel)
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	quals, err := normalizeQualities(c.Qualities)
	if err != nil {
		return err
	}
	c.Qualities = quals

	if c.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	if c.InterlaceProbeTimeout <= 0 || c.KeyframeProbeTimeout <= 0 || c.SubtitleTimeout <= 0 {
		return errors.New("probe and subtitle timeouts must be positive")
	}

	if c.CheckOnly {
		return nil
	}
	if c.Input == "" || c.OutputDir == "" {
		return errors.New("need exactly input and output_dir")
	}
	return nil
}

// normalizeQualities lowercases, trims and de-duplicates tier names while
// preserving the caller's order. Unknown or empty names are rejected.
func normalizeQualities(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, errors.New("at least one quality is required (high, medium, low)")
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, q := range raw {
		q = strings.ToLower(strings.TrimSpace(q))
		if !isKnownQuality(q) {
			return nil, fmt.Errorf("invalid quality %q (valid: %s)", q, strings.Join(KnownQualities, ", "))
		}
		if seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out, nil
}

func isKnownQuality(q string) bool {
	for _, k := range KnownQualities {
		if q == k {
			return true
		}
	}
	return false
}

// SplitQualities parses a comma-separated tier list ("high,low").
func SplitQualities(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidatePaths ensures the resolved output directory is not inside (or equal
// to) the resolved input directory when the input is a directory. This keeps
// batch discovery from picking up its own segments. Both arguments must be
// absolute, symlink-resolved paths.
func (c *Config) ValidatePaths(inputAbs, outputAbs string, inputIsDir bool) error {
	if !inputIsDir {
		return nil
	}
	sep := string(filepath.Separator)
	if outputAbs == inputAbs || strings.HasPrefix(outputAbs+sep, inputAbs+sep) {
		return errors.New("output directory must not be inside input directory")
	}
	return nil
}

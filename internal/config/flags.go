package config

// This file implements CLI flag parsing and help text.
// Flags are grouped into ladder, encoder, scheduling, behavior, display, and utility.
// Negated flags (e.g. --no-color) are applied after Parse so earlier layers hold unless set.

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseFlags parses args (without the program name) into cfg. On --help or
// --version it prints and exits. On error it returns non-nil (e.g. unknown
// flag, missing positional args).
func ParseFlags(cfg *Config, args []string, version string) error {
	fs := flag.NewFlagSet("hlsladder", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { printUsage(version) }

	var n negatedFlags

	defineLadderFlags(fs, cfg, &n)
	defineEncoderFlags(fs, cfg)
	defineSchedulingFlags(fs, cfg)
	defineBehaviorFlags(fs, cfg)
	defineDisplayFlags(fs, cfg, &n)
	defineUtilityFlags(fs, cfg, &n)

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			printUsage(version)
			os.Exit(0)
		}
		return err
	}

	if err := applyNegatedFlags(cfg, &n); err != nil {
		return err
	}

	if n.showHelp {
		printUsage(version)
		os.Exit(0)
	}
	if n.showVersion {
		fmt.Fprintln(os.Stdout, "hlsladder v"+version)
		os.Exit(0)
	}

	return parsePositionalArgs(fs, cfg)
}

// negatedFlags holds values that are applied after Parse: switches that
// invert a default, raw strings that need splitting, and exit triggers.
type negatedFlags struct {
	bestQuality bool
	qualities   string
	forceColor  bool
	noColor     bool
	configPath  string
	showVersion bool
	showHelp    bool
}

// defineLadderFlags registers -b/--best-quality, --mode, -q/--qualities.
func defineLadderFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&n.bestQuality, "best-quality", false, "Maximum quality ladder (slow presets, CRF 18-23)")
	fs.BoolVar(&n.bestQuality, "b", false, "Same as --best-quality")
	fs.Var(&modeValue{&cfg.Mode}, "mode", "Ladder mode: balanced | maximum")
	fs.StringVar(&n.qualities, "qualities", "", "Comma-separated tiers: high,medium,low")
	fs.StringVar(&n.qualities, "q", "", "Same as --qualities")
}

// defineEncoderFlags registers --hw-accel, --vaapi-device, --ffmpeg, --ffprobe.
func defineEncoderFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Var(&hwAccelValue{&cfg.HWAccel}, "hw-accel", "Encoder backend: none | auto | nvenc | qsv | videotoolbox | amf | vaapi")
	fs.StringVar(&cfg.VaapiDevice, "vaapi-device", cfg.VaapiDevice, "VAAPI render node")
	fs.StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "ffmpeg binary")
	fs.StringVar(&cfg.FFprobePath, "ffprobe", cfg.FFprobePath, "ffprobe binary")
}

// defineSchedulingFlags registers -p/--parallel, --workers and probe timeouts.
func defineSchedulingFlags(fs *flag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.Parallel, "parallel", cfg.Parallel, "Encode video tiers in parallel")
	fs.BoolVar(&cfg.Parallel, "p", cfg.Parallel, "Same as --parallel")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Parallel worker cap (0 = min(tiers, CPUs))")
	fs.DurationVar(&cfg.InterlaceProbeTimeout, "interlace-timeout", cfg.InterlaceProbeTimeout, "Interlace probe timeout")
	fs.DurationVar(&cfg.KeyframeProbeTimeout, "keyframe-timeout", cfg.KeyframeProbeTimeout, "Keyframe probe timeout per segment")
	fs.DurationVar(&cfg.SubtitleTimeout, "subtitle-timeout", cfg.SubtitleTimeout, "Subtitle conversion timeout per track")
}

// defineBehaviorFlags registers force-reencode, dry-run, overwrite, checks and watch.
func defineBehaviorFlags(fs *flag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.ForceReencode, "force-reencode", cfg.ForceReencode, "Disable stream copy for the high tier")
	fs.BoolVar(&cfg.ForceReencode, "f", cfg.ForceReencode, "Same as --force-reencode")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Preview only; do not encode")
	fs.BoolVar(&cfg.DryRun, "d", cfg.DryRun, "Same as --dry-run")
	fs.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "Delete existing HLS files in the output directory")
	fs.BoolVar(&cfg.Overwrite, "o", cfg.Overwrite, "Same as --overwrite")
	fs.BoolVar(&cfg.NoInterlaceCheck, "no-interlace-check", cfg.NoInterlaceCheck, "Skip interlace detection")
	fs.BoolVar(&cfg.RejectHDR, "reject-hdr", cfg.RejectHDR, "Fail HDR sources instead of warning")
	fs.BoolVar(&cfg.IgnoreDiskSpace, "ignore-disk-space", cfg.IgnoreDiskSpace, "Continue when free space looks insufficient")
	fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "Keep watching a directory input for new files")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Publish package results to Redis")
	fs.StringVar(&cfg.RedisKey, "redis-key", cfg.RedisKey, "Redis list for published results")
}

// defineDisplayFlags registers --color, --no-color, verbose, --check, --log.
func defineDisplayFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&n.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&n.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Verbose output")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Same as --verbose")
	fs.BoolVar(&cfg.CheckOnly, "check", false, "Run system diagnostics and exit")
	fs.BoolVar(&cfg.CheckOnly, "c", false, "Same as --check")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "Append JSON logs to file")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "Same as --log")
}

// defineUtilityFlags registers --config, --version and --help.
func defineUtilityFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.StringVar(&n.configPath, "config", cfg.ConfigFile, "YAML config file (applied before flags)")
	fs.BoolVar(&n.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&n.showVersion, "V", false, "Same as --version")
	fs.BoolVar(&n.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&n.showHelp, "h", false, "Same as --help")
}

// applyNegatedFlags copies post-parse values into cfg.
func applyNegatedFlags(cfg *Config, n *negatedFlags) error {
	if n.bestQuality {
		cfg.Mode = ModeMaximum
	}
	if n.qualities != "" {
		cfg.Qualities = SplitQualities(n.qualities)
	}
	if n.noColor {
		cfg.ColorMode = ColorNever
	} else if n.forceColor {
		cfg.ColorMode = ColorAlways
	}
	cfg.ConfigFile = n.configPath
	return nil
}

// parsePositionalArgs sets Input and OutputDir from the two positional args when not in CheckOnly mode.
func parsePositionalArgs(fs *flag.FlagSet, cfg *Config) error {
	args := fs.Args()
	if cfg.CheckOnly {
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("need exactly input and output_dir")
	}
	cfg.Input = NormalizeDirArg(args[0])
	cfg.OutputDir = NormalizeDirArg(args[1])
	return nil
}

// parseInt parses a string as an integer; returns a clear error on failure.
func parseInt(s, name string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number (got %q)", name, s)
	}
	return n, nil
}

// printUsage writes the help text to stderr. Column-aligned for readability.
func printUsage(version string) {
	const col1 = 32
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "hlsladder v" + version + " - adaptive HLS packager"},
		{"", ""},
		{"  hlsladder [OPTIONS] <input> <output_dir>", ""},
		{"", ""},
		{"Ladder", ""},
		{"  -b, --best-quality", "Maximum quality ladder (default: balanced)"},
		{"  --mode <balanced|maximum>", "Ladder mode"},
		{"  -q, --qualities <list>", "Tiers to produce (default: high,medium,low)"},
		{"", ""},
		{"Encoder", ""},
		{"  --hw-accel <name>", "none | auto | nvenc | qsv | videotoolbox | amf | vaapi"},
		{"  --vaapi-device <path>", "VAAPI render node (default: /dev/dri/renderD128)"},
		{"  --ffmpeg <path>", "ffmpeg binary (default: ffmpeg)"},
		{"  --ffprobe <path>", "ffprobe binary (default: ffprobe)"},
		{"", ""},
		{"Scheduling", ""},
		{"  -p, --parallel", "Encode video tiers in parallel"},
		{"  --workers <n>", "Worker cap (default: min(tiers, CPUs))"},
		{"  --interlace-timeout <d>", "Interlace probe timeout (default: 30s)"},
		{"  --keyframe-timeout <d>", "Keyframe probe timeout (default: 5s)"},
		{"  --subtitle-timeout <d>", "Subtitle conversion timeout (default: 3m0s)"},
		{"", ""},
		{"Output & behavior", ""},
		{"  -f, --force-reencode", "Disable stream copy for the high tier"},
		{"  -d, --dry-run", "Preview only; do not encode"},
		{"  -o, --overwrite", "Delete existing HLS files in the output directory"},
		{"  --no-interlace-check", "Skip interlace detection"},
		{"  --reject-hdr", "Fail HDR sources instead of warning"},
		{"  --ignore-disk-space", "Continue when free space looks insufficient"},
		{"  --watch", "Keep watching a directory input for new files"},
		{"  --redis-url <url>", "Publish package results to Redis"},
		{"  --redis-key <key>", "Redis list name (default: hlsladder:results)"},
		{"", ""},
		{"Display", ""},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  -v, --verbose", "Verbose output"},
		{"", ""},
		{"Utility", ""},
		{"  --config <path>", "YAML config file"},
		{"  -l, --log <path>", "Append JSON logs to file"},
		{"  -c, --check", "System diagnostics (ffmpeg, encoders, AAC, WebVTT)"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(os.Stderr)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(os.Stderr, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(os.Stderr, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(os.Stderr, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}

// flag.Value adapters so we can use enum types (QualityMode, HWAccel) with flag.Var.

type modeValue struct{ p *QualityMode }

func (m *modeValue) String() string {
	if m.p == nil {
		return ""
	}
	return string(*m.p)
}

func (m *modeValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "balanced":
		*m.p = ModeBalanced
	case "maximum", "max", "best":
		*m.p = ModeMaximum
	default:
		return fmt.Errorf("invalid mode %q (use 'balanced' or 'maximum')", s)
	}
	return nil
}

type hwAccelValue struct{ p *HWAccel }

func (h *hwAccelValue) String() string {
	if h.p == nil {
		return ""
	}
	return string(*h.p)
}

func (h *hwAccelValue) Set(s string) error {
	v := HWAccel(strings.ToLower(s))
	switch v {
	case AccelNone, AccelAuto, AccelNVENC, AccelQSV, AccelVideoToolbox, AccelAMF, AccelVAAPI:
		*h.p = v
	case "":
		*h.p = AccelNone
	default:
		return fmt.Errorf("invalid hw-accel %q", s)
	}
	return nil
}

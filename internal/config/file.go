package config

// This file layers a YAML config file and HLSLADDER_* environment variables
// over DefaultConfig. CLI flags are applied last by ParseFlags.

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override name.
const EnvPrefix = "HLSLADDER_"

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error; variables already set are not overridden.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// LoadFile decodes a YAML config file over cfg. Keys absent from the file
// keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// envBinding maps one environment variable (without prefix) to a setter.
type envBinding struct {
	name string
	set  func(c *Config, v string) error
}

var envBindings = []envBinding{
	{"MODE", func(c *Config, v string) error { c.Mode = QualityMode(strings.ToLower(v)); return nil }},
	{"QUALITIES", func(c *Config, v string) error { c.Qualities = SplitQualities(v); return nil }},
	{"HW_ACCEL", func(c *Config, v string) error { c.HWAccel = HWAccel(strings.ToLower(v)); return nil }},
	{"VAAPI_DEVICE", func(c *Config, v string) error { c.VaapiDevice = v; return nil }},
	{"PARALLEL", boolSetter(func(c *Config) *bool { return &c.Parallel })},
	{"WORKERS", func(c *Config, v string) error {
		n, err := parseInt(v, EnvPrefix+"WORKERS")
		c.Workers = n
		return err
	}},
	{"FORCE_REENCODE", boolSetter(func(c *Config) *bool { return &c.ForceReencode })},
	{"OVERWRITE", boolSetter(func(c *Config) *bool { return &c.Overwrite })},
	{"NO_INTERLACE_CHECK", boolSetter(func(c *Config) *bool { return &c.NoInterlaceCheck })},
	{"REJECT_HDR", boolSetter(func(c *Config) *bool { return &c.RejectHDR })},
	{"IGNORE_DISK_SPACE", boolSetter(func(c *Config) *bool { return &c.IgnoreDiskSpace })},
	{"FFMPEG", func(c *Config, v string) error { c.FFmpegPath = v; return nil }},
	{"FFPROBE", func(c *Config, v string) error { c.FFprobePath = v; return nil }},
	{"INTERLACE_PROBE_TIMEOUT", durationSetter(func(c *Config) *time.Duration { return &c.InterlaceProbeTimeout })},
	{"KEYFRAME_PROBE_TIMEOUT", durationSetter(func(c *Config) *time.Duration { return &c.KeyframeProbeTimeout })},
	{"SUBTITLE_TIMEOUT", durationSetter(func(c *Config) *time.Duration { return &c.SubtitleTimeout })},
	{"REDIS_URL", func(c *Config, v string) error { c.RedisURL = v; return nil }},
	{"REDIS_KEY", func(c *Config, v string) error { c.RedisKey = v; return nil }},
	{"LOG_FILE", func(c *Config, v string) error { c.LogFile = v; return nil }},
	{"COLOR", func(c *Config, v string) error { c.ColorMode = ColorMode(strings.ToLower(v)); return nil }},
	{"VERBOSE", boolSetter(func(c *Config) *bool { return &c.Verbose })},
}

// ApplyEnv overlays HLSLADDER_* variables onto cfg. lookup is normally
// os.LookupEnv; tests pass a map-backed function. Empty values are ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(EnvPrefix + b.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := b.set(cfg, strings.TrimSpace(v)); err != nil {
			return err
		}
	}
	return nil
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean %q: %w", v, err)
		}
		*field(c) = b
		return nil
	}
}

func durationSetter(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*field(c) = d
		return nil
	}
}

// Load builds the pre-flag configuration: defaults, then .env, then the YAML
// file named by --config (or HLSLADDER_CONFIG), then the environment.
func Load(args []string) (Config, error) {
	cfg := DefaultConfig()
	if err := LoadEnvFile(".env"); err != nil {
		return cfg, err
	}

	path := configPathFromArgs(args)
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
		cfg.ConfigFile = path
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// configPathFromArgs finds --config/-config in raw args without running the
// full flag parser, so the file can be applied before flags override it.
func configPathFromArgs(args []string) string {
	for i, a := range args {
		name := strings.TrimLeft(a, "-")
		if name == a {
			continue
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(name, "config=") {
			return strings.TrimPrefix(name, "config=")
		}
	}
	return ""
}

// Command hlsladder packages video files into multi-bitrate HLS.
//
// It loads configuration (file, environment, flags), checks the ffmpeg
// toolchain, and either prints diagnostics (--check) or packages the input
// file or directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/backmassage/hlsladder/internal/check"
	"github.com/backmassage/hlsladder/internal/config"
	"github.com/backmassage/hlsladder/internal/display"
	"github.com/backmassage/hlsladder/internal/ffmpeg"
	"github.com/backmassage/hlsladder/internal/logging"
	"github.com/backmassage/hlsladder/internal/notify"
	"github.com/backmassage/hlsladder/internal/pipeline"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

// exitInterrupted is the conventional status for termination by SIGINT.
const exitInterrupted = 130

func main() {
	os.Exit(run())
}

func run() int {
	// Bootstrap: the logger doesn't exist yet, so errors go to stderr.
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hlsladder: %v\n", err)
		return 1
	}
	if err := config.ParseFlags(&cfg, os.Args[1:], version); err != nil {
		fmt.Fprintf(os.Stderr, "hlsladder: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "hlsladder: %v\n", err)
		return 1
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hlsladder: %v\n", err)
		return 1
	}
	defer log.Close()

	display.PrintBanner(os.Stdout, version, log.Color())

	// Cancel on SIGINT/SIGTERM. Running jobs stop, the current package is
	// finalized, and no further files start.
	var interrupted atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			interrupted.Store(true)
			log.Warn("Received interrupt, stopping running jobs…")
			cancel()
		case <-ctx.Done():
		}
	}()

	runner := &ffmpeg.ExecRunner{}
	checker := check.New(&cfg, runner)

	if cfg.CheckOnly {
		if !checker.RunCheck(ctx, log) {
			return 1
		}
		return 0
	}

	log.Info("=== hlsladder v%s (%s) ===", version, commit)
	log.Info("In:  %s", cfg.Input)
	log.Info("Out: %s", cfg.OutputDir)
	if cfg.ConfigFile != "" {
		log.Info("Config: %s", cfg.ConfigFile)
	}
	if cfg.DryRun {
		log.Warn("DRY RUN: no files will be written")
	}

	// Fail fast if ffmpeg/ffprobe or the chosen encoder are unavailable.
	accel, err := checker.CheckDeps(ctx, &cfg)
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	checker.GPUAdvisory(ctx, log, accel, cfg.Parallel, len(cfg.Qualities))

	pub, err := notify.New(ctx, cfg.RedisURL, cfg.RedisKey)
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	defer pub.Close()

	p := pipeline.NewPackager(&cfg, accel, pipeline.Deps{Runner: runner, Publisher: pub}, log)
	stats := pipeline.Run(ctx, p)

	switch {
	case interrupted.Load():
		return exitInterrupted
	case stats.OK():
		return 0
	default:
		return 1
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/backmassage/hlsladder/internal/display"
)

// WatchSettle is how long a new file's size must stay unchanged before it
// is packaged in watch mode.
const WatchSettle = 2 * time.Second

// Run is the top-level entry point. A file input is packaged directly into
// OutputDir; a directory input is discovered and each file packaged into
// OutputDir/<stem>. With Watch set, Run then keeps packaging new files
// until ctx is cancelled.
func Run(ctx context.Context, p *Packager) RunStats {
	var stats RunStats
	cfg, log := p.Config, p.Log

	fi, err := os.Stat(cfg.Input)
	if err != nil {
		log.Error("Input not found: %s", cfg.Input)
		stats.Failed++
		return stats
	}
	if err := cfg.ValidatePaths(resolvePath(cfg.Input), resolvePath(cfg.OutputDir), fi.IsDir()); err != nil {
		log.Error("%v", err)
		stats.Failed++
		return stats
	}

	logBatchHeader(p)

	if !fi.IsDir() {
		stats.Total, stats.Current = 1, 1
		processFile(ctx, p, cfg.Input, cfg.OutputDir, &stats)
		stats.Interrupted = ctx.Err() != nil
		logSummary(p, &stats)
		return stats
	}

	files, err := Discover(cfg.Input)
	if err != nil {
		log.Error("File discovery failed: %v", err)
		stats.Failed++
		return stats
	}
	stats.Total = len(files)
	log.Info("Found %d files", stats.Total)
	dirs := newOutDirs(cfg.OutputDir)

	for i, path := range files {
		if ctx.Err() != nil {
			log.Warn("Interrupted")
			break
		}
		stats.Current = i + 1
		processFile(ctx, p, path, dirs.claim(path), &stats)
	}

	if cfg.Watch && ctx.Err() == nil {
		done := make(map[string]bool, len(files))
		for _, f := range files {
			done[f] = true
		}
		log.Info("Watching %s for new media (Ctrl+C to stop)", cfg.Input)
		err := Watch(ctx, cfg.Input, WatchSettle, log, func(path string) {
			if done[path] {
				return
			}
			done[path] = true
			stats.Total++
			stats.Current = stats.Total
			processFile(ctx, p, path, dirs.claim(path), &stats)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Watch failed: %v", err)
			stats.Failed++
		}
	}

	stats.Interrupted = ctx.Err() != nil
	logSummary(p, &stats)
	return stats
}

// resolvePath returns an absolute, symlink-resolved path. Missing paths
// (an output directory not yet created) fall back to the absolute form.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		return r
	}
	return abs
}

// processFile packages one source and folds the outcome into stats.
func processFile(ctx context.Context, p *Packager, path, outDir string, stats *RunStats) {
	log := p.Log
	log.Info("[%d/%d] %s", stats.Current, stats.Total, filepath.Base(path))
	log.Info("  -> %s", outDir)

	res, err := p.Package(ctx, path, outDir)
	switch {
	case errors.Is(err, ErrOutputExists):
		log.Warn("Skip: %v", err)
		stats.Skipped++
	case err != nil:
		log.Error("%v", err)
		stats.Failed++
	case !res.Success:
		stats.Failed++
	default:
		stats.Packaged++
	}
	if res != nil && err == nil {
		stats.TotalInputBytes += res.InBytes
		stats.TotalOutputBytes += res.OutBytes
	}
	fmt.Println()
}

func logBatchHeader(p *Packager) {
	cfg, log := p.Config, p.Log
	log.Info("Mode: %s, tiers: %s", cfg.Mode, strings.Join(cfg.Qualities, ", "))
	log.Info("Encoder: %s (accel %s)", p.builder().EncoderName(), p.Accel)
	if cfg.Parallel {
		workers := "auto"
		if cfg.Workers > 0 {
			workers = fmt.Sprint(cfg.Workers)
		}
		log.Info("Scheduling: parallel, workers %s", workers)
	} else {
		log.Info("Scheduling: sequential")
	}
	if cfg.ForceReencode {
		log.Info("Stream copy: disabled (--force-reencode)")
	}
	if cfg.DryRun {
		log.Info("Dry run: no files will be written")
	}
	fmt.Println()
}

func logSummary(p *Packager, stats *RunStats) {
	cfg, log := p.Config, p.Log
	log.Info("==============================")
	log.Info("Done: %d packaged, %d skipped, %d failed", stats.Packaged, stats.Skipped, stats.Failed)
	log.Info("  Total files processed: %d", stats.Current)
	if stats.Interrupted {
		log.Warn("  Run interrupted")
	}
	if cfg.DryRun || stats.TotalInputBytes == 0 {
		return
	}
	log.Info("  Total size: input %s -> output %s (%d%%)",
		display.FormatBytes(stats.TotalInputBytes),
		display.FormatBytes(stats.TotalOutputBytes),
		stats.Ratio())
}

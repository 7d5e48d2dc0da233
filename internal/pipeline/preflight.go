package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/backmassage/hlsladder/internal/display"
	"github.com/backmassage/hlsladder/internal/logging"
	"github.com/backmassage/hlsladder/internal/planner"
	"github.com/backmassage/hlsladder/internal/probe"
)

// minFileSize is the smallest input accepted; anything below is corrupt.
const minFileSize = 1000

// Pre-flight failures. ErrOutputExists skips a package rather than failing it.
var (
	ErrInputTooSmall     = errors.New("input file too small (possibly corrupt)")
	ErrOutputExists      = errors.New("output directory already contains HLS files")
	ErrInsufficientSpace = errors.New("insufficient disk space")
	ErrHDRRejected       = errors.New("HDR source rejected")
)

// checkInput verifies the input exists and is large enough to be media.
func checkInput(path string) (os.FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("input %s is a directory", path)
	}
	if fi.Size() < minFileSize {
		return nil, fmt.Errorf("%w: %s", ErrInputTooSmall, path)
	}
	return fi, nil
}

// existingOutputs lists playlists and segments already in dir.
func existingOutputs(dir string) ([]string, error) {
	var out []string
	for _, pat := range []string{"*.m3u8", "*.ts"} {
		m, err := filepath.Glob(filepath.Join(dir, pat))
		if err != nil {
			return nil, err
		}
		out = append(out, m...)
	}
	return out, nil
}

// handleExisting deletes or refuses existing outputs in dir. A dry run
// only reports what would be deleted.
func (p *Packager) handleExisting(log *logging.Logger, dir string) error {
	files, err := existingOutputs(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	if !p.Config.Overwrite {
		return fmt.Errorf("%w: %d file(s) in %s (use --overwrite)", ErrOutputExists, len(files), dir)
	}
	if p.Config.DryRun {
		log.Info("[DRY RUN] Would delete %d existing HLS file(s)", len(files))
		return nil
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", f, err)
		}
	}
	log.Warn("Deleted %d existing HLS file(s)", len(files))
	return nil
}

// checkDiskSpace compares the estimated package size with the free space
// under dir. A shortfall is fatal unless disk checks are ignored or this is
// a dry run. An unreadable free-space figure only warns.
func (p *Packager) checkDiskSpace(ctx context.Context, log *logging.Logger, dir string, sourceBytes int64, ladder *planner.Ladder, audioTracks int) error {
	need := planner.EstimateOutputSize(sourceBytes, ladder.CopyHigh(), ladder.Tiers, audioTracks)
	free, err := p.Deps.FreeBytes(ctx, dir)
	if err != nil {
		log.Warn("Could not check disk space: %v", err)
		return nil
	}
	log.Debug("Disk space: need ~%s, free %s", display.FormatBytes(need), display.FormatBytes(int64(free)))
	if uint64(need) <= free {
		return nil
	}
	msg := fmt.Sprintf("need ~%s, %s free", display.FormatBytes(need), display.FormatBytes(int64(free)))
	if p.Config.IgnoreDiskSpace || p.Config.DryRun {
		log.Warn("Low disk space: %s", msg)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInsufficientSpace, msg)
}

// detectInterlace decides whether to deinterlace. The idet probe is
// authoritative when it succeeds; otherwise the container hint is used.
func (p *Packager) detectInterlace(ctx context.Context, log *logging.Logger, d *probe.StreamDescriptor) bool {
	if p.Config.NoInterlaceCheck {
		return false
	}
	counts, err := p.Deps.Interlace(ctx, d.Source)
	if err != nil {
		hint := d.Video.FieldOrderInterlaced()
		log.Debug("Interlace probe failed (%v); field_order hint: %v", err, hint)
		if hint {
			log.Warn("Container reports interlaced field order %q; deinterlacing", d.Video.FieldOrder)
		}
		return hint
	}
	if counts.Interlaced() {
		log.Warn("Interlaced content detected (%.0f%% of sampled frames); deinterlacing", counts.Ratio()*100)
		return true
	}
	log.Debug("Progressive content (TFF=%d BFF=%d progressive=%d)", counts.TFF, counts.BFF, counts.Progressive)
	return false
}

// checkHDR warns about HDR sources, or rejects them with --reject-hdr.
func (p *Packager) checkHDR(log *logging.Logger, v *probe.VideoTrack) error {
	if !v.IsHDR() {
		return nil
	}
	if p.Config.RejectHDR {
		return fmt.Errorf("%w: transfer %s, primaries %s", ErrHDRRejected, v.ColorTransfer, v.ColorPrimaries)
	}
	log.Warn("HDR source (transfer %s, primaries %s); output is not tone-mapped", v.ColorTransfer, v.ColorPrimaries)
	return nil
}

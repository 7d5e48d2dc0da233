package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/backmassage/hlsladder/internal/logging"
)

// pendingFile tracks a file that is still being written.
type pendingFile struct {
	size    int64
	changed time.Time
}

// Watch monitors root recursively and calls handle for each media file that
// appears after Watch starts, once its size has not changed for settle.
// Directories created under root are watched as they appear; "extras"
// directories are skipped.
// handle runs on the watch goroutine, so files are packaged one at a time.
// Events are not drained while handle runs, so the tree is rescanned after
// each handled file and after a queue overflow. Each file is handled at most
// once. Watch returns ctx.Err() when ctx is cancelled.
func Watch(ctx context.Context, root string, settle time.Duration, log *logging.Logger, handle func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := addRecursive(w, root); err != nil {
		return err
	}

	interval := settle / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pending := make(map[string]*pendingFile)
	// Media present at start is the batch's concern.
	handled := make(map[string]bool)
	if existing, err := Discover(root); err == nil {
		for _, f := range existing {
			handled[f] = true
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			fi, err := os.Stat(ev.Name)
			if err != nil {
				continue
			}
			if fi.IsDir() {
				if ev.Op&fsnotify.Create != 0 && !isPruned(fi.Name()) {
					if err := addRecursive(w, ev.Name); err != nil {
						log.Warn("Watch %s: %v", ev.Name, err)
					}
					queueExisting(ev.Name, pending, handled)
				}
				continue
			}
			if IsMedia(ev.Name) && !handled[ev.Name] {
				pending[ev.Name] = &pendingFile{size: fi.Size(), changed: time.Now()}
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				log.Warn("Watch event queue overflowed; rescanning %s", root)
				queueExisting(root, pending, handled)
				continue
			}
			log.Warn("Watcher error: %v", err)

		case now := <-ticker.C:
			for path, pf := range pending {
				fi, err := os.Stat(path)
				if err != nil {
					delete(pending, path)
					continue
				}
				if fi.Size() != pf.size {
					pf.size, pf.changed = fi.Size(), now
					continue
				}
				if now.Sub(pf.changed) < settle {
					continue
				}
				delete(pending, path)
				handled[path] = true
				log.Debug("Settled: %s (%d bytes)", path, pf.size)
				handle(path)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Directories created while handle ran may have no watch yet.
				if err := addRecursive(w, root); err != nil {
					log.Warn("Watch %s: %v", root, err)
				}
				queueExisting(root, pending, handled)
			}
		}
	}
}

// addRecursive watches dir and every non-pruned directory below it.
func addRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isPruned(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// queueExisting adds unhandled media under dir that is not already pending.
// It covers directories moved in whole, which produce no per-file events,
// and events missed while a file was being handled.
func queueExisting(dir string, pending map[string]*pendingFile, handled map[string]bool) {
	files, err := Discover(dir)
	if err != nil {
		return
	}
	now := time.Now()
	for _, f := range files {
		if handled[f] || pending[f] != nil {
			continue
		}
		if fi, err := os.Stat(f); err == nil {
			pending[f] = &pendingFile{size: fi.Size(), changed: now}
		}
	}
}

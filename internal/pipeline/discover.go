package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Supported media file extensions (lowercase, with leading dot).
var mediaExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".m4v":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".ts":   true,
	".m2ts": true,
	".mpg":  true,
	".mpeg": true,
	".vob":  true,
	".ogv":  true,
}

// IsMedia reports whether path has a supported media extension.
func IsMedia(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}

// isPruned reports whether a directory is excluded from discovery.
func isPruned(name string) bool {
	return strings.EqualFold(name, "extras")
}

// Discover walks inputDir, collects media files, prunes directories named
// "extras" (case-insensitive), and returns the paths sorted for
// deterministic processing order.
func Discover(inputDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != inputDir && isPruned(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if IsMedia(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// PackageDir is the output directory for one file of a batch:
// <outputRoot>/<file stem>.
func PackageDir(outputRoot, file string) string {
	base := filepath.Base(file)
	return filepath.Join(outputRoot, strings.TrimSuffix(base, filepath.Ext(base)))
}

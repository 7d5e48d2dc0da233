package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	return p
}

func basenames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

func TestDiscover_FiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"movie.mkv", "show.mp4", "music.mp3", "readme.txt", "anime.avi", "special.m4v"} {
		touch(t, dir, n)
	}

	files, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"anime.avi", "movie.mkv", "show.mp4", "special.m4v"}, basenames(files))
}

func TestDiscover_AllMediaExtensions(t *testing.T) {
	dir := t.TempDir()
	exts := []string{".mkv", ".mp4", ".avi", ".m4v", ".mov", ".wmv",
		".flv", ".webm", ".ts", ".m2ts", ".mpg", ".mpeg", ".vob", ".ogv"}
	for _, ext := range exts {
		touch(t, dir, "file"+ext)
	}
	touch(t, dir, "file.jpg")

	files, err := Discover(dir)
	require.NoError(t, err)
	assert.Len(t, files, len(exts))
}

func TestDiscover_PrunesExtras(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "main.mkv")
	touch(t, filepath.Join(dir, "Extras"), "bonus.mkv")
	touch(t, filepath.Join(dir, "extras"), "deleted_scenes.mp4")

	files, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.mkv"}, basenames(files))
}

func TestDiscover_RootNamedExtrasIsScanned(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "extras")
	touch(t, dir, "bonus.mkv")

	files, err := Discover(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDiscover_RecursiveAndSorted(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Show", "Season 02"), "ep01.mkv")
	touch(t, filepath.Join(dir, "Show", "Season 01"), "ep02.mkv")
	touch(t, filepath.Join(dir, "Show", "Season 01"), "ep01.mkv")

	files, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.True(t, sort.StringsAreSorted(files))
}

func TestDiscover_EmptyDir(t *testing.T) {
	files, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscover_CaseInsensitiveExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "MOVIE.MKV")
	touch(t, dir, "Show.Mp4")

	files, err := Discover(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestIsMedia(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/a/b.mkv", true},
		{"/a/b.M2TS", true},
		{"/a/b.srt", false},
		{"/a/b", false},
		{"/a/b.mkv.part", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMedia(tt.path))
		})
	}
}

func TestPackageDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/out", "Movie (2001)"), PackageDir("/out", "/in/films/Movie (2001).mkv"))
	assert.Equal(t, filepath.Join("/out", "clip.v2"), PackageDir("/out", "/in/clip.v2.mp4"))
}

func TestRunStats(t *testing.T) {
	s := RunStats{TotalInputBytes: 1000, TotalOutputBytes: 1500, Skipped: 2}
	assert.Equal(t, int64(150), s.Ratio())
	assert.True(t, s.OK())

	s.Failed = 1
	assert.False(t, s.OK())

	s = RunStats{Interrupted: true}
	assert.False(t, s.OK())
	assert.Equal(t, int64(0), s.Ratio())
}

func TestOutDirs_Claim(t *testing.T) {
	o := newOutDirs("/out")
	a := o.claim("/in/a/movie.mkv")
	assert.Equal(t, filepath.Join("/out", "movie"), a)
	assert.Equal(t, a, o.claim("/in/a/movie.mkv"), "same source keeps its directory")
	assert.Equal(t, filepath.Join("/out", "movie")+"_dup2", o.claim("/in/b/movie.mp4"))
	assert.Equal(t, filepath.Join("/out", "movie")+"_dup3", o.claim("/in/c/movie.avi"))
	assert.Equal(t, filepath.Join("/out", "other"), o.claim("/in/other.mkv"))
}

package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755))
	return p
}

func TestExecRunner_Success(t *testing.T) {
	bin := writeScript(t, `echo "out-line"
printf 'frame=  10 fps=5\rframe=  20 fps=5\r' >&2
echo "warning: something" >&2
exit 0
`)
	var mu sync.Mutex
	var progress []string
	r := &ExecRunner{Progress: func(line string) {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, line)
	}}

	res := r.Run(context.Background(), []string{bin, "-i", "x"})
	require.True(t, res.OK(), "err=%v", res.Err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out-line\n", res.Stdout)
	assert.Equal(t, "warning: something", res.Stderr)
	assert.Equal(t, []string{"frame=  10 fps=5", "frame=  20 fps=5"}, progress)
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	bin := writeScript(t, `echo "Conversion failed!" >&2
exit 3
`)
	res := (&ExecRunner{}).Run(context.Background(), []string{bin})
	assert.False(t, res.OK())
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Stderr, "Conversion failed!")
}

func TestExecRunner_LargeOutputDoesNotBlock(t *testing.T) {
	// Far more than a pipe buffer on both streams.
	bin := writeScript(t, `i=0
while [ $i -lt 5000 ]; do
  echo "stdout line $i padding padding padding padding"
  echo "stderr line $i padding padding padding padding" >&2
  i=$((i+1))
done
`)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res := (&ExecRunner{}).Run(ctx, []string{bin})
	require.True(t, res.OK(), "err=%v", res.Err)
	assert.Equal(t, 5000, strings.Count(res.Stdout, "\n"))
	assert.Len(t, strings.Split(res.Stderr, "\n"), stderrTailLines)
	assert.Contains(t, res.Stderr, "stderr line 4999")
}

func TestExecRunner_Cancel(t *testing.T) {
	bin := writeScript(t, "exec sleep 10\n")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := (&ExecRunner{WaitDelay: time.Second}).Run(ctx, []string{bin})
	assert.False(t, res.OK())
	assert.Error(t, res.Err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	res := (&ExecRunner{}).Run(context.Background(), []string{filepath.Join(t.TempDir(), "nope")})
	assert.False(t, res.OK())
	assert.Equal(t, -1, res.ExitCode)
	assert.Error(t, res.Err)
}

func TestExecRunner_EmptyArgs(t *testing.T) {
	res := (&ExecRunner{}).Run(context.Background(), nil)
	assert.Error(t, res.Err)
}

func TestScanLinesOrCR(t *testing.T) {
	adv, tok, err := scanLinesOrCR([]byte("abc\rdef"), false)
	require.NoError(t, err)
	assert.Equal(t, 4, adv)
	assert.Equal(t, "abc", string(tok))

	adv, tok, _ = scanLinesOrCR([]byte("tail"), true)
	assert.Equal(t, 4, adv)
	assert.Equal(t, "tail", string(tok))

	adv, tok, _ = scanLinesOrCR([]byte("partial"), false)
	assert.Zero(t, adv)
	assert.Nil(t, tok)
}

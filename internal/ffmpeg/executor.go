package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// stderrTailLines is how many trailing stderr lines a result keeps.
const stderrTailLines = 50

// ExecResult holds the outcome of a single external invocation.
type ExecResult struct {
	Stdout   string
	Stderr   string // trailing lines only
	ExitCode int    // -1 when the process did not start or was killed
	Err      error
}

// OK reports whether the process ran and exited 0.
func (r ExecResult) OK() bool { return r.Err == nil && r.ExitCode == 0 }

// Runner executes an argument slice whose first element is the binary.
// Implementations must honor ctx cancellation.
type Runner interface {
	Run(ctx context.Context, args []string) ExecResult
}

// ExecRunner runs commands with os/exec. Stdout and stderr are drained on
// separate goroutines so the child never stalls on a full pipe.
type ExecRunner struct {
	// Progress, when set, receives ffmpeg "-stats" lines (frame=..., size=...).
	Progress func(line string)
	// WaitDelay bounds how long to wait after SIGTERM before killing.
	WaitDelay time.Duration
}

// Run starts args[0] with args[1:] and waits for it. On ctx cancellation the
// child receives SIGTERM, then SIGKILL after WaitDelay.
func (r *ExecRunner) Run(ctx context.Context, args []string) ExecResult {
	if len(args) == 0 {
		return ExecResult{ExitCode: -1, Err: errors.New("empty command")}
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return ExecResult{ExitCode: -1, Err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return ExecResult{ExitCode: -1, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return ExecResult{ExitCode: -1, Err: err}
	}

	var stdout bytes.Buffer
	tail := newLineTail(stderrTailLines)

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&stdout, stdoutPipe)
		return err
	})
	g.Go(func() error {
		sc := bufio.NewScanner(stderrPipe)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		sc.Split(scanLinesOrCR)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if isStatsLine(line) {
				if r.Progress != nil {
					r.Progress(line)
				}
				continue
			}
			tail.add(line)
		}
		// Keep draining after a scanner error so the child cannot block.
		_, _ = io.Copy(io.Discard, stderrPipe)
		return sc.Err()
	})
	readErr := g.Wait()
	waitErr := cmd.Wait()

	res := ExecResult{Stdout: stdout.String(), Stderr: tail.String(), ExitCode: cmd.ProcessState.ExitCode()}
	switch {
	case waitErr != nil:
		res.Err = waitErr
	case ctx.Err() != nil:
		res.Err = ctx.Err()
	case readErr != nil:
		res.Err = readErr
	}
	return res
}

// isStatsLine matches ffmpeg's periodic progress output.
func isStatsLine(line string) bool {
	return strings.HasPrefix(line, "frame=") || strings.HasPrefix(line, "size=")
}

// scanLinesOrCR splits on \n or \r so carriage-return progress updates
// arrive as separate tokens.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// lineTail keeps the last n lines written to it.
type lineTail struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newLineTail(n int) *lineTail { return &lineTail{n: n} }

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

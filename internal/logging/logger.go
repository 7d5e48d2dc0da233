// Package logging wraps zerolog with the leveled printf-style API the rest of
// hlsladder uses: Info, Success, Warn, Error and Debug. Console output is
// human-readable (optionally colored); the optional file sink receives JSON lines.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/backmassage/hlsladder/internal/config"
)

// TimeFormat is the console timestamp layout.
const TimeFormat = "2006-01-02 15:04:05"

// Logger provides leveled, optionally colored logging with an optional file sink.
// It is safe for concurrent use; worker goroutines share one Logger.
type Logger struct {
	zl      zerolog.Logger
	verbose bool
	color   bool

	mu   *sync.Mutex
	file *os.File
}

// NewLogger builds the console logger from cfg and optionally opens cfg.LogFile
// for appending JSON lines. Call Close when done if LogFile was set.
func NewLogger(cfg *config.Config) (*Logger, error) {
	color := ColorEnabled(cfg.ColorMode)
	console := levelSplitWriter{
		out: consoleWriter(os.Stdout, color),
		err: consoleWriter(os.Stderr, color),
	}

	l := &Logger{verbose: cfg.Verbose, color: color, mu: &sync.Mutex{}}
	var w io.Writer = console
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		l.file = f
		w = zerolog.MultiLevelWriter(console, f)
	}
	l.zl = zerolog.New(w).Level(levelFor(cfg.Verbose)).With().Timestamp().Logger()
	return l, nil
}

// New returns a Logger writing JSON lines to w. Used by tests and by callers
// that want machine-readable output only.
func New(w io.Writer, verbose bool) *Logger {
	return &Logger{
		zl:      zerolog.New(w).Level(levelFor(verbose)).With().Timestamp().Logger(),
		verbose: verbose,
		mu:      &sync.Mutex{},
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return &Logger{zl: zerolog.Nop(), mu: &sync.Mutex{}}
}

func levelFor(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func consoleWriter(out io.Writer, color bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    !color,
		TimeFormat: TimeFormat,
	}
}

// levelSplitWriter routes error-and-above events to stderr, the rest to stdout.
type levelSplitWriter struct {
	out io.Writer
	err io.Writer
}

func (w levelSplitWriter) Write(p []byte) (int, error) { return w.out.Write(p) }

func (w levelSplitWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= zerolog.ErrorLevel {
		return w.err.Write(p)
	}
	return w.out.Write(p)
}

// ColorEnabled resolves a color mode against the environment: TTY detection
// on stdout, NO_COLOR (https://no-color.org) and TERM=dumb.
func ColorEnabled(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return isatty.IsTerminal(os.Stdout.Fd()) &&
			os.Getenv("NO_COLOR") == "" &&
			strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
}

// Color reports whether console output is colored.
func (l *Logger) Color() bool { return l.color }

// Verbose reports whether debug output is enabled.
func (l *Logger) Verbose() bool { return l.verbose }

// With returns a child logger that adds key=val to every event. The child
// shares the parent's file sink; only the parent should be closed.
func (l *Logger) With(key string, val interface{}) *Logger {
	child := *l
	child.zl = l.zl.With().Interface(key, val).Logger()
	return &child
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Info logs at INFO level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

// Success logs at INFO level with ok=true.
func (l *Logger) Success(format string, args ...interface{}) {
	l.zl.Info().Bool("ok", true).Msg(fmt.Sprintf(format, args...))
}

// Warn logs at WARN level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

// Error logs at ERROR level, to stderr on the console.
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level; dropped unless the logger is verbose.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

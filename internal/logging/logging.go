// Package logging builds the leveled logger every component receives.
//
// On a terminal, records are human-readable text with timestamps. When
// stderr is piped or redirected they are JSON, one object per line. Each
// record carries the program name and a per-run id so that output from
// repeated runs can be told apart.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/term"
)

// Options configures New.
type Options struct {
	// Prog is attached to every record as "prog".
	Prog string
	// Verbose lowers the level to debug.
	Verbose bool
	// Out defaults to stderr.
	Out io.Writer
	// JSON forces the JSON handler. When false, JSON is still used if Out
	// is not a terminal.
	JSON bool
	// RunID defaults to a fresh random UUID.
	RunID string
}

// New returns a logger for one run.
func New(opts Options) *slog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSON || !isTerminal(out) {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	logger := slog.New(handler).With("run", runID)
	if opts.Prog != "" {
		logger = logger.With("prog", opts.Prog)
	}
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

package prompt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/peppapig450/ssh-agent-setup/internal/shell"
)

// ErrSelectionAborted means the user chose to configure no shells. It is
// not a failure.
var ErrSelectionAborted = errors.New("shell selection aborted")

// DefaultPicker is the multi-select tool tried first.
const DefaultPicker = "fzf"

// Picker exit codes that mean "nothing chosen" rather than failure.
const (
	pickerNoMatch     = 1
	pickerInterrupted = 130
)

// SelectorOptions configures a Selector.
type SelectorOptions struct {
	// Picker is the multi-select command. Empty disables it.
	Picker string
	// Out receives the listing. Defaults to stderr.
	Out    io.Writer
	Logger *slog.Logger
}

// Selector chooses shells to configure.
type Selector struct {
	prompter *Prompter
	picker   string
	out      io.Writer
	logger   *slog.Logger
	lookPath func(string) (string, error)
}

// NewSelector returns a Selector that falls back to p for manual input.
func NewSelector(p *Prompter, opts SelectorOptions) *Selector {
	s := &Selector{
		prompter: p,
		picker:   opts.Picker,
		out:      opts.Out,
		logger:   opts.Logger,
		lookPath: exec.LookPath,
	}
	if s.out == nil {
		s.out = os.Stderr
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Select lists enabled and returns the shells the user picked.
//
// The picker's answer is used as is, so an empty answer is an empty
// selection. In the manual fallback, empty input selects current when it
// is enabled and otherwise asks whether to configure every shell.
// ErrSelectionAborted is returned when there is no terminal to ask or the
// user declines.
func (s *Selector) Select(ctx context.Context, enabled []shell.Descriptor, current shell.Name) ([]shell.Descriptor, error) {
	sorted := append([]shell.Descriptor(nil), enabled...)
	shell.SortByName(sorted)

	s.render(sorted)

	if s.picker != "" {
		if bin, err := s.lookPath(s.picker); err == nil {
			return s.runPicker(ctx, bin, sorted)
		}
		s.logger.Debug("picker not installed, using manual selection", "picker", s.picker)
	}

	if s.prompter == nil || !s.prompter.Interactive() {
		s.logger.Warn("no terminal for shell selection")
		return nil, ErrSelectionAborted
	}

	return s.manual(sorted, current)
}

func (s *Selector) render(sorted []shell.Descriptor) {
	r := lipgloss.NewRenderer(s.out)
	title := r.NewStyle().Bold(true)
	index := r.NewStyle().Foreground(lipgloss.Color("205"))
	dim := r.NewStyle().Foreground(lipgloss.Color("240"))

	width := 0
	for _, d := range sorted {
		width = max(width, len(d.Name))
	}
	nameStyle := r.NewStyle().Width(width + 2)

	fmt.Fprintln(s.out, title.Render("Available shells:"))
	for i, d := range sorted {
		fmt.Fprintf(s.out, "  %s %s%s\n",
			index.Render(fmt.Sprintf("%d)", i+1)),
			nameStyle.Render(d.Name.String()),
			dim.Render(d.RCFile))
	}
}

func (s *Selector) runPicker(ctx context.Context, bin string, sorted []shell.Descriptor) ([]shell.Descriptor, error) {
	var candidates strings.Builder
	for _, d := range sorted {
		candidates.WriteString(d.Name.String() + "\n")
	}

	cmd := exec.CommandContext(ctx, bin, "--multi")
	cmd.Stdin = strings.NewReader(candidates.String())
	cmd.Stderr = os.Stderr

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			switch exitErr.ExitCode() {
			case pickerNoMatch, pickerInterrupted:
				s.logger.Info("no shells chosen in picker")
				return []shell.Descriptor{}, nil
			}
		}
		return nil, fmt.Errorf("run picker %s: %w", s.picker, err)
	}

	return s.matchNames(sorted, output), nil
}

// matchNames maps picker output lines back to descriptors, keeping the
// picker's order and dropping anything it made up.
func (s *Selector) matchNames(sorted []shell.Descriptor, output []byte) []shell.Descriptor {
	chosen := []shell.Descriptor{}
	seen := make(map[shell.Name]bool)
	for _, raw := range bytes.Split(output, []byte("\n")) {
		name := shell.Name(strings.TrimSpace(string(raw)))
		if name == "" || seen[name] {
			continue
		}
		d, ok := shell.Lookup(sorted, name)
		if !ok {
			s.logger.Warn("picker returned an unknown shell", "shell", name)
			continue
		}
		seen[name] = true
		chosen = append(chosen, d)
	}
	return chosen
}

func (s *Selector) manual(sorted []shell.Descriptor, current shell.Name) ([]shell.Descriptor, error) {
	fmt.Fprint(s.prompter.out, "Shells to configure (numbers, space separated; empty for current shell): ")
	line, err := s.prompter.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrSelectionAborted
		}
		return nil, fmt.Errorf("read shell selection: %w", err)
	}

	if line == "" {
		return s.defaultSelection(sorted, current)
	}

	chosen := []shell.Descriptor{}
	seen := make(map[int]bool)
	for _, field := range strings.Fields(line) {
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 || n > len(sorted) {
			s.logger.Warn("ignoring invalid selection", "input", field, "choices", len(sorted))
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		chosen = append(chosen, sorted[n-1])
	}
	return chosen, nil
}

func (s *Selector) defaultSelection(sorted []shell.Descriptor, current shell.Name) ([]shell.Descriptor, error) {
	if d, ok := shell.Lookup(sorted, current); ok {
		s.logger.Info("defaulting to current shell", "shell", current)
		return []shell.Descriptor{d}, nil
	}

	if len(sorted) == 0 {
		return nil, ErrSelectionAborted
	}

	ok, err := s.prompter.Confirm(fmt.Sprintf("Current shell %q is not available. Configure all %d shells?", current, len(sorted)))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrSelectionAborted
		}
		return nil, fmt.Errorf("confirm all shells: %w", err)
	}
	if !ok {
		return nil, ErrSelectionAborted
	}
	return sorted, nil
}

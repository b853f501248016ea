package shell

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Outcome is the result of patching one RC file.
type Outcome int

const (
	// Appended means the snippet was written.
	Appended Outcome = iota + 1
	// AlreadyPresent means the exact snippet was already there.
	AlreadyPresent
	// Skipped means nothing was written; Reason says why.
	Skipped
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case AlreadyPresent:
		return "already present"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// PatchResult describes what Patch did to one file.
type PatchResult struct {
	Shell   Name
	Path    string
	Outcome Outcome
	// Reason explains a Skipped outcome.
	Reason string
	// Created is true when the file did not exist before.
	Created bool
	// BackupPath is set when a backup copy was written.
	BackupPath string
}

// Confirmer asks the user a yes/no question. A Confirmer that also has an
// Interactive() bool method is not asked when it reports false.
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// PatcherOptions configures a Patcher.
type PatcherOptions struct {
	// Confirm is asked before creating a missing RC file. A nil Confirmer
	// declines.
	Confirm Confirmer
	// Out receives manual instructions when a file is left untouched.
	Out io.Writer
	// Backup copies an existing file aside before appending.
	Backup bool
	Logger *slog.Logger
}

// Patcher appends export snippets to RC files.
type Patcher struct {
	confirm Confirmer
	out     io.Writer
	backup  bool
	logger  *slog.Logger
}

// NewPatcher creates a Patcher.
func NewPatcher(opts PatcherOptions) *Patcher {
	p := &Patcher{
		confirm: opts.Confirm,
		out:     opts.Out,
		backup:  opts.Backup,
		logger:  opts.Logger,
	}
	if p.out == nil {
		p.out = io.Discard
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// Patch adds desc.Snippet to the file at target.
//
// A missing file is created only if the user agrees. If the snippet is
// already a line of the file the result is AlreadyPresent. If another line
// mentions SSH_AUTH_SOCK the file is left alone and the result is Skipped.
// Otherwise a blank separator line, the attribution comment and the snippet
// are appended.
func (p *Patcher) Patch(desc Descriptor, target string) (*PatchResult, error) {
	result := &PatchResult{Shell: desc.Name, Path: target}

	exists, err := RCFileExists(target)
	if err != nil {
		return nil, err
	}

	if !exists {
		ok, err := p.ask(fmt.Sprintf("%s does not exist. Create it?", target))
		if err != nil {
			return nil, fmt.Errorf("confirm creation of %s: %w", target, err)
		}
		if !ok {
			p.printManual(desc, target)
			result.Outcome = Skipped
			result.Reason = "creation declined"
			return result, nil
		}
		if err := CreateRCFile(target); err != nil {
			return nil, err
		}
		result.Created = true
	}

	content, err := os.ReadFile(target)
	if err != nil {
		return nil, &RCFileError{Path: target, Message: "failed to read file", Cause: err}
	}

	state, line := scanForSnippet(content, desc.Snippet)
	switch state {
	case snippetPresent:
		result.Outcome = AlreadyPresent
		return result, nil
	case markerConflict:
		p.logger.Warn("existing "+EnvMarker+" line found, leaving file untouched",
			"shell", desc.Name, "file", target, "line", line)
		p.printManual(desc, target)
		result.Outcome = Skipped
		result.Reason = fmt.Sprintf("line %d already sets %s", line, EnvMarker)
		return result, nil
	}

	if p.backup && len(content) > 0 {
		backupPath, err := BackupRCFile(target)
		if err != nil {
			return nil, err
		}
		result.BackupPath = backupPath
	}

	if err := appendSnippet(target, content, desc.Snippet); err != nil {
		return nil, err
	}
	result.Outcome = Appended
	return result, nil
}

// ask treats a missing confirmer, a confirmer without a terminal and end
// of input as a decline.
func (p *Patcher) ask(question string) (bool, error) {
	if p.confirm == nil {
		return false, nil
	}
	if tty, ok := p.confirm.(interface{ Interactive() bool }); ok && !tty.Interactive() {
		p.logger.Debug("no terminal to confirm RC file creation", "question", question)
		return false, nil
	}
	ok, err := p.confirm.Confirm(question)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	return ok, err
}

func (p *Patcher) printManual(desc Descriptor, target string) {
	fmt.Fprintf(p.out, "\nTo use the agent from %s, add these lines to %s yourself:\n\n", desc.Name, target)
	fmt.Fprintf(p.out, "    %s\n    %s\n\n", AttributionComment, desc.Snippet)
}

type scanState int

const (
	snippetAbsent scanState = iota
	snippetPresent
	markerConflict
)

// scanForSnippet looks for the exact snippet first; a conflicting line is
// only reported if the snippet is absent everywhere. The returned line
// number is 1-based and only meaningful for markerConflict.
func scanForSnippet(content []byte, snippet string) (scanState, int) {
	lines := strings.Split(string(content), "\n")

	conflict := 0
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == snippet {
			return snippetPresent, 0
		}
		if conflict == 0 && strings.Contains(line, EnvMarker) {
			conflict = i + 1
		}
	}
	if conflict > 0 {
		return markerConflict, conflict
	}
	return snippetAbsent, 0
}

// appendSnippet writes content plus the attribution block to a temporary
// file next to path and renames it over path, keeping path's mode.
func appendSnippet(path string, content []byte, snippet string) error {
	var buf bytes.Buffer
	buf.Write(content)

	if len(content) > 0 {
		if !bytes.HasSuffix(content, []byte("\n")) {
			buf.WriteByte('\n')
		}
		if !endsWithBlankLine(content) {
			buf.WriteByte('\n')
		}
	}
	buf.WriteString(AttributionComment + "\n")
	buf.WriteString(snippet + "\n")

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".ssh-agent-setup-tmp-*")
	if err != nil {
		return &RCFileError{Path: path, Message: "failed to create temporary file", Cause: err}
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmpFile.Write(buf.Bytes()); err != nil {
		tmpFile.Close()
		return &RCFileError{Path: path, Message: "failed to write snippet", Cause: err}
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return &RCFileError{Path: path, Message: "failed to sync file", Cause: err}
	}
	if err := tmpFile.Close(); err != nil {
		return &RCFileError{Path: path, Message: "failed to close temporary file", Cause: err}
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return &RCFileError{Path: path, Message: "failed to set permissions", Cause: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &RCFileError{Path: path, Message: "failed to rename temp file", Cause: err}
	}
	return nil
}

// endsWithBlankLine reports whether the last line of content is empty,
// i.e. content ends in "\n\n" (or is a single "\n").
func endsWithBlankLine(content []byte) bool {
	trimmed := bytes.TrimSuffix(content, []byte("\n"))
	return len(trimmed) == 0 || bytes.HasSuffix(trimmed, []byte("\n"))
}

// RCFileExists checks if the RC file exists
func RCFileExists(rcPath string) (bool, error) {
	info, err := os.Stat(rcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, &RCFileError{
			Path:    rcPath,
			Message: "failed to stat file",
			Cause:   err,
		}
	}

	if !info.Mode().IsRegular() {
		return false, &RCFileError{
			Path:    rcPath,
			Message: "not a regular file",
		}
	}

	return true, nil
}

// CreateRCFile creates an empty RC file and any missing parent directories
func CreateRCFile(rcPath string) error {
	if err := os.MkdirAll(filepath.Dir(rcPath), 0o755); err != nil {
		return &RCFileError{
			Path:    rcPath,
			Message: "failed to create parent directory",
			Cause:   err,
		}
	}

	file, err := os.OpenFile(rcPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return &RCFileError{
			Path:    rcPath,
			Message: "failed to create file",
			Cause:   err,
		}
	}
	return file.Close()
}

// BackupRCFile copies the RC file to <path>.ssh-agent-setup-backup,
// replacing any earlier backup.
func BackupRCFile(rcPath string) (string, error) {
	content, err := os.ReadFile(rcPath)
	if err != nil {
		return "", &RCFileError{
			Path:    rcPath,
			Message: "failed to read file for backup",
			Cause:   err,
		}
	}

	backupPath := rcPath + BackupSuffix
	if err := os.WriteFile(backupPath, content, 0o600); err != nil {
		return "", &RCFileError{
			Path:    backupPath,
			Message: "failed to write backup file",
			Cause:   err,
		}
	}

	return backupPath, nil
}

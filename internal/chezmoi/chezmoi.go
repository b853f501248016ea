// Package chezmoi maps deployed dotfiles back to their chezmoi source files.
//
// When a shell RC file is managed by chezmoi, editing the deployed copy is
// pointless: the next `chezmoi apply` overwrites it. The mapping built here
// lets callers patch the source file instead.
package chezmoi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnavailable means chezmoi is not installed or could not be queried.
// Callers fall back to the deployed paths.
var ErrUnavailable = errors.New("dotfile manager unavailable")

// DefaultBinary is the command looked up on PATH.
const DefaultBinary = "chezmoi"

// managedArgs lists every managed regular file with all path styles.
var managedArgs = []string{"managed", "--include=files", "--path-style=all", "--format=yaml"}

// Entry is one record of `chezmoi managed --path-style=all`.
type Entry struct {
	Absolute       string `yaml:"absolute"`
	SourceAbsolute string `yaml:"sourceAbsolute"`
	SourceRelative string `yaml:"sourceRelative"`
	TargetRelative string `yaml:"targetRelative"`
}

// Mapping maps absolute deployed paths to absolute source paths.
type Mapping map[string]string

// Client queries a chezmoi binary.
type Client struct {
	bin      string
	logger   *slog.Logger
	lookPath func(string) (string, error)
}

// NewClient creates a client for bin, or DefaultBinary when bin is empty.
func NewClient(bin string, logger *slog.Logger) *Client {
	if bin == "" {
		bin = DefaultBinary
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{bin: bin, logger: logger, lookPath: exec.LookPath}
}

// Mapping queries the full managed-file inventory once. It returns
// ErrUnavailable, never a harder error, when chezmoi is missing or the
// query fails.
func (c *Client) Mapping(ctx context.Context) (Mapping, error) {
	bin, err := c.lookPath(c.bin)
	if err != nil {
		c.logger.Debug("chezmoi not installed", "binary", c.bin)
		return nil, ErrUnavailable
	}

	cmd := exec.CommandContext(ctx, bin, managedArgs...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		qerr := translateChezmoiError(err, stderr.String())
		c.logger.Warn("chezmoi query failed, using deployed paths", "error", qerr)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, qerr)
	}

	mapping, err := ParseManaged(out)
	if err != nil {
		c.logger.Warn("cannot parse chezmoi inventory, using deployed paths", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	c.logger.Debug("chezmoi inventory loaded", "files", len(mapping))
	return mapping, nil
}

// ParseManaged decodes the YAML inventory. chezmoi emits a document keyed
// by target-relative path; a plain list of entries is accepted too.
// Entries without both absolute paths are dropped.
func ParseManaged(data []byte) (Mapping, error) {
	var entries []Entry

	if len(bytes.TrimSpace(data)) > 0 {
		var keyed map[string]Entry
		if err := yaml.Unmarshal(data, &keyed); err == nil {
			for _, e := range keyed {
				entries = append(entries, e)
			}
		} else {
			var list []Entry
			if listErr := yaml.Unmarshal(data, &list); listErr != nil {
				return nil, fmt.Errorf("decode managed files: %w", err)
			}
			entries = list
		}
	}

	mapping := make(Mapping, len(entries))
	for _, e := range entries {
		if !filepath.IsAbs(e.Absolute) || !filepath.IsAbs(e.SourceAbsolute) {
			continue
		}
		mapping[filepath.Clean(e.Absolute)] = filepath.Clean(e.SourceAbsolute)
	}
	return mapping, nil
}

// Resolve returns the source file for target when the mapping knows it and
// the source exists, and target otherwise. A nil mapping is allowed.
func (m Mapping) Resolve(target string) string {
	source, ok := m[filepath.Clean(target)]
	if !ok {
		return target
	}
	info, err := os.Stat(source)
	if err != nil || !info.Mode().IsRegular() {
		return target
	}
	return source
}

// translateChezmoiError turns an exec failure into a short message.
func translateChezmoiError(err error, stderr string) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("operation cancelled: %w", context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("operation timed out: %w", context.DeadlineExceeded)
	}

	msg := strings.TrimSpace(stderr)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if msg == "" {
		return fmt.Errorf("chezmoi managed: %w", err)
	}
	return fmt.Errorf("chezmoi managed: %s: %w", redactSensitiveInfo(msg), err)
}

var homePattern = regexp.MustCompile(`/home/[^/\s]+`)

// redactSensitiveInfo shortens msg and hides home directories.
func redactSensitiveInfo(msg string) string {
	const maxLen = 200
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "..."
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		msg = strings.ReplaceAll(msg, home, "$HOME")
	}
	return homePattern.ReplaceAllString(msg, "/home/<user>")
}

package paths

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// errStrategyUnavailable reports that a strategy cannot run on this host.
var errStrategyUnavailable = errors.New("resolution strategy unavailable")

// UnresolvableSymlinkError is returned when a path is a symlink and no
// strategy could resolve it.
type UnresolvableSymlinkError struct {
	Path  string
	Cause error
}

func (e *UnresolvableSymlinkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot resolve symlink %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("cannot resolve symlink %s: no resolution tool available", e.Path)
}

func (e *UnresolvableSymlinkError) Unwrap() error {
	return e.Cause
}

// Strategy is one way of turning a path into its canonical form.
type Strategy struct {
	Name    string
	Resolve func(ctx context.Context, path string) (string, error)
}

// EvalSymlinksStrategy resolves in-process. It fails on dangling links.
func EvalSymlinksStrategy() Strategy {
	return Strategy{
		Name: "evalsymlinks",
		Resolve: func(_ context.Context, path string) (string, error) {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				return "", err
			}
			return filepath.Abs(resolved)
		},
	}
}

// CommandStrategy resolves by running an external tool that prints the
// canonical path. The strategy is unavailable if the tool is not on PATH.
func CommandStrategy(tool string, args ...string) Strategy {
	return Strategy{
		Name: tool,
		Resolve: func(ctx context.Context, path string) (string, error) {
			bin, err := exec.LookPath(tool)
			if err != nil {
				return "", errStrategyUnavailable
			}
			//nolint:gosec // G204: tool is one of a fixed set of resolution commands
			cmd := exec.CommandContext(ctx, bin, append(append([]string{}, args...), "--", path)...)
			out, err := cmd.Output()
			if err != nil {
				return "", fmt.Errorf("%s %s: %w", tool, path, err)
			}
			return strings.TrimRight(string(out), "\n"), nil
		},
	}
}

// DefaultStrategies are tried in order by NewResolver.
func DefaultStrategies() []Strategy {
	return []Strategy{
		EvalSymlinksStrategy(),
		CommandStrategy("realpath", "-e"),
		CommandStrategy("readlink", "-f"),
	}
}

// Resolver canonicalizes paths.
type Resolver struct {
	strategies []Strategy
}

// NewResolver returns a Resolver using the given strategies, or the
// defaults when none are given.
func NewResolver(strategies ...Strategy) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Resolver{strategies: strategies}
}

// Resolve returns the canonical form of path. When every strategy fails,
// a path that is not itself a symlink is returned unchanged, while a symlink
// yields an UnresolvableSymlinkError.
func (r *Resolver) Resolve(ctx context.Context, path string) (string, error) {
	var lastErr error
	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		resolved, err := s.Resolve(ctx, path)
		if err == nil && resolved != "" {
			return resolved, nil
		}
		if err != nil && !errors.Is(err, errStrategyUnavailable) {
			lastErr = err
		}
	}

	info, err := os.Lstat(path)
	if err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", &UnresolvableSymlinkError{Path: path, Cause: lastErr}
	}
	return path, nil
}

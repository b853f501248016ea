// Package git inspects the repository that holds a dotfile source file.
//
// After a managed RC file's source is patched, the dotfile repository has
// an uncommitted change. This package reports that so the user can be told
// to review, apply and commit it.
package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
)

// Common Git errors
var (
	ErrNotAGitRepo = errors.New("not a git repository")
	ErrInvalidRepo = errors.New("invalid git repository")
)

// FileStatus describes one file in its enclosing repository.
type FileStatus struct {
	// RepoRoot is the worktree root.
	RepoRoot string
	// RelPath is the file path relative to RepoRoot.
	RelPath string
	// Changed is true when the file differs from HEAD or the index.
	Changed bool
	// Untracked is true when git does not know the file.
	Untracked bool
	// DirtyFiles counts every changed or untracked file in the worktree.
	DirtyFiles int
}

// Client looks up repository state with go-git.
type Client struct{}

// NewClient creates a new Git client.
func NewClient() *Client {
	return &Client{}
}

// FileStatus finds the repository containing path, searching parent
// directories, and reports whether path has uncommitted changes.
// ErrNotAGitRepo is returned when path is outside any repository.
func (c *Client) FileStatus(ctx context.Context, path string) (*FileStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	repo, err := gogit.PlainOpenWithOptions(filepath.Dir(abs), &gogit.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, ErrNotAGitRepo
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRepo, err.Error())
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}
	root := worktree.Filesystem.Root()

	rel, err := relativeTo(root, abs)
	if err != nil {
		return nil, err
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}

	result := &FileStatus{RepoRoot: root, RelPath: rel}
	for name, fs := range status {
		if fs.Staging == gogit.Unmodified && fs.Worktree == gogit.Unmodified {
			continue
		}
		result.DirtyFiles++
		if name != rel {
			continue
		}
		result.Changed = true
		result.Untracked = fs.Worktree == gogit.Untracked
	}
	return result, nil
}

// relativeTo returns path relative to root in slash form, resolving
// symlinks on both sides so /tmp style aliases compare equal.
func relativeTo(root, path string) (string, error) {
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		path = filepath.Join(dir, filepath.Base(path))
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("path relative to repository: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

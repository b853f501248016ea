package unit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// GeneratedMode is the permission of the generated loader unit.
const GeneratedMode os.FileMode = 0o600

// ReadTemplate reads a template file.
func ReadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &TemplateMissingError{Path: path, Cause: err}
	}
	return string(data), nil
}

// CheckTemplates verifies every path is a readable regular file.
func CheckTemplates(paths ...string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return &TemplateMissingError{Path: path, Cause: err}
		}
		if !info.Mode().IsRegular() {
			return &TemplateMissingError{Path: path, Cause: errors.New("not a regular file")}
		}
	}
	return nil
}

// ExtractTemplates copies each file of fsys into dir unless a file of the
// same name is already there. It returns the names it wrote.
func ExtractTemplates(dir string, fsys fs.FS) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create template dir: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	var written []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		dst := filepath.Join(dir, entry.Name())
		if _, err := os.Lstat(dst); err == nil {
			continue
		}

		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return written, fmt.Errorf("read template %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return written, fmt.Errorf("write template %s: %w", dst, err)
		}
		written = append(written, entry.Name())
	}
	return written, nil
}

// WriteGenerated writes content to path with GeneratedMode. The file is
// written next to path and renamed into place, so readers never see a
// partial unit and the mode is never wider than GeneratedMode.
func WriteGenerated(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create unit dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".ssh-agent-setup-tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary unit: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if err := tmpFile.Chmod(GeneratedMode); err != nil {
		tmpFile.Close()
		return fmt.Errorf("set unit permissions: %w", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write unit: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("sync unit: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close unit: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("install unit %s: %w", path, err)
	}
	return nil
}

// LinkAgentUnit points link at target. An existing symlink is replaced;
// any other existing file is a ConflictError. It reports whether the link
// changed.
func LinkAgentUnit(link, target string) (bool, error) {
	info, err := os.Lstat(link)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return false, fmt.Errorf("inspect %s: %w", link, err)
	case info.Mode()&fs.ModeSymlink == 0:
		return false, &ConflictError{Path: link, Message: "exists and is not a symlink"}
	default:
		current, err := os.Readlink(link)
		if err == nil && current == target {
			return false, nil
		}
		if err := os.Remove(link); err != nil {
			return false, fmt.Errorf("remove stale link %s: %w", link, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return false, fmt.Errorf("create unit dir: %w", err)
	}
	if err := os.Symlink(target, link); err != nil {
		return false, fmt.Errorf("link %s: %w", link, err)
	}
	return true, nil
}

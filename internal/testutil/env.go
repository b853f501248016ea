// Package testutil isolates tests from the user's home directory.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/peppapig450/ssh-agent-setup/internal/paths"
)

// SetupTestEnv points HOME and the XDG base directories at a fresh temp
// directory, clears ZDOTDIR and SHELL, and returns the resulting Env.
// Nothing a test writes through the returned Env can reach real dotfiles
// or systemd units. Cleanup is handled by t.TempDir.
func SetupTestEnv(t *testing.T) paths.Env {
	t.Helper()

	tmpDir := t.TempDir()
	home := filepath.Join(tmpDir, "home")
	runtime := filepath.Join(tmpDir, "run")

	t.Setenv("HOME", home)
	t.Setenv(paths.EnvConfigHome, filepath.Join(home, ".config"))
	t.Setenv(paths.EnvDataHome, filepath.Join(home, ".local", "share"))
	t.Setenv(paths.EnvRuntimeDir, runtime)
	t.Setenv(paths.EnvZDotDir, "")
	t.Setenv(paths.EnvShell, "")

	dirs := []string{
		filepath.Join(home, ".config"),
		filepath.Join(home, ".local", "share"),
		runtime,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	env, err := paths.LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	return env
}

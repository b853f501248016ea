package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variable names consumed by ssh-agent-setup.
const (
	EnvConfigHome = "XDG_CONFIG_HOME"
	EnvDataHome   = "XDG_DATA_HOME"
	EnvRuntimeDir = "XDG_RUNTIME_DIR"
	EnvZDotDir    = "ZDOTDIR"
	EnvShell      = "SHELL"
)

// Env is the process environment as seen at startup.
type Env struct {
	Home       string
	ConfigHome string
	DataHome   string
	RuntimeDir string
	ZDotDir    string
	Shell      string
}

// LoadEnv reads the environment of the current process.
func LoadEnv() (Env, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("get home directory: %w", err)
	}
	return EnvFrom(home, os.LookupEnv), nil
}

// EnvFrom builds an Env from a home directory and a lookup function.
// XDG variables that are unset, empty, or relative fall back to their
// defaults under home.
func EnvFrom(home string, lookup func(string) (string, bool)) Env {
	get := func(key string) string {
		v, ok := lookup(key)
		if !ok {
			return ""
		}
		return v
	}

	return Env{
		Home:       home,
		ConfigHome: xdgDir(get(EnvConfigHome), filepath.Join(home, ".config")),
		DataHome:   xdgDir(get(EnvDataHome), filepath.Join(home, ".local", "share")),
		RuntimeDir: get(EnvRuntimeDir),
		ZDotDir:    get(EnvZDotDir),
		Shell:      get(EnvShell),
	}
}

func xdgDir(value, fallback string) string {
	if value == "" || !filepath.IsAbs(value) {
		return fallback
	}
	return filepath.Clean(value)
}

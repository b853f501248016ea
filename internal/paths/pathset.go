package paths

import (
	"os"
	"path/filepath"
)

// AppName is used for directory names, the attribution comment and logs.
const AppName = "ssh-agent-setup"

// Unit file names inside the service directory.
const (
	AgentUnitName  = "ssh-agent.service"
	LoaderUnitName = "ssh-add.service"
)

// SocketName is the agent socket file name under $XDG_RUNTIME_DIR.
const SocketName = "ssh-agent.socket"

// PathSet maps each role to an absolute path. It is built once and never
// modified afterwards.
type PathSet struct {
	// ServiceDir is the systemd user unit directory.
	ServiceDir string
	// TemplateDir holds the agent and loader unit templates.
	TemplateDir string
	// BundledTemplates is true when TemplateDir is the data directory that
	// the embedded templates are extracted into.
	BundledTemplates bool
	// AgentTemplate and LoaderTemplate are the template files.
	AgentTemplate  string
	LoaderTemplate string
	// AgentUnit is the symlink pointing at AgentTemplate.
	AgentUnit string
	// LoaderUnit is the generated loader unit.
	LoaderUnit string
	// ConfigFile is the optional Lua configuration file.
	ConfigFile string
	// Socket is the agent socket path; empty when XDG_RUNTIME_DIR is unset.
	Socket string
	// LockDir holds the run lock.
	LockDir string
}

// NewPathSet computes the PathSet. exeDir is the directory of the running
// executable and templateOverride an optional user-chosen template directory.
func NewPathSet(env Env, exeDir, templateOverride string) PathSet {
	serviceDir := filepath.Join(env.ConfigHome, "systemd", "user")

	ps := PathSet{
		ServiceDir: serviceDir,
		AgentUnit:  filepath.Join(serviceDir, AgentUnitName),
		LoaderUnit: filepath.Join(serviceDir, LoaderUnitName),
		ConfigFile: DefaultConfigFile(env),
	}
	if env.RuntimeDir != "" {
		ps.Socket = filepath.Join(env.RuntimeDir, SocketName)
		ps.LockDir = filepath.Join(env.RuntimeDir, AppName)
	} else {
		ps.LockDir = filepath.Join(env.DataHome, AppName)
	}

	switch {
	case templateOverride != "":
		ps.TemplateDir = absUnder(templateOverride, env.Home)
	case exeDir != "" && hasTemplates(filepath.Join(exeDir, "systemd")):
		ps.TemplateDir = filepath.Join(exeDir, "systemd")
	default:
		ps.TemplateDir = filepath.Join(env.DataHome, AppName, "systemd")
		ps.BundledTemplates = true
	}
	ps.AgentTemplate = filepath.Join(ps.TemplateDir, AgentUnitName)
	ps.LoaderTemplate = filepath.Join(ps.TemplateDir, LoaderUnitName)

	return ps
}

// DefaultConfigFile is where the Lua configuration is looked up when no
// path is given on the command line.
func DefaultConfigFile(env Env) string {
	return filepath.Join(env.ConfigHome, AppName, "config.lua")
}

// ExecutableDir returns the directory holding the running binary, with
// symlinks resolved. It returns "" when it cannot be determined.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// absUnder expands path and makes it absolute against the working
// directory, or against home when the working directory is gone.
func absUnder(path, home string) string {
	if abs, err := Abs(path, home); err == nil {
		return abs
	}
	return filepath.Join(home, ExpandHome(path, home))
}

func hasTemplates(dir string) bool {
	for _, name := range []string{AgentUnitName, LoaderUnitName} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || !info.Mode().IsRegular() {
			return false
		}
	}
	return true
}

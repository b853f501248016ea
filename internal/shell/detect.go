package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// parentProcess reports the name and executable of the process that
// started ssh-agent-setup. Replaced in tests.
var parentProcess = func(ctx context.Context) (name, exe string, err error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getppid())) //nolint:gosec // pids fit in int32
	if err != nil {
		return "", "", err
	}
	name, err = proc.NameWithContext(ctx)
	if err != nil {
		return "", "", err
	}
	exe, _ = proc.ExeWithContext(ctx)
	return name, exe, nil
}

// DetectShell identifies the shell ssh-agent-setup is running under.
//
// The parent process is checked first since it is the shell actually in
// use; $SHELL, the login shell, is the fallback. Only catalogue shells are
// recognized.
func DetectShell(ctx context.Context, shellEnv string) *DetectionResult {
	if name, exe, err := parentProcess(ctx); err == nil {
		if sh := parseShellFromPath(name); sh != Unknown {
			path := exe
			if path == "" {
				path = name
			}
			return &DetectionResult{
				Shell:      sh,
				Method:     "parent process",
				ShellPath:  path,
				Confidence: "high",
			}
		}
	}

	if shellEnv != "" {
		if sh := parseShellFromPath(shellEnv); sh != Unknown {
			return &DetectionResult{
				Shell:      sh,
				Method:     "$SHELL environment variable",
				ShellPath:  shellEnv,
				Confidence: "medium",
			}
		}
	}

	return &DetectionResult{
		Shell:      Unknown,
		Method:     "detection failed",
		Confidence: "none",
	}
}

// parseShellFromPath extracts the shell name from a binary path or process
// name. Login shells show up as "-bash", so a leading dash is dropped.
// Examples:
//   - /bin/bash -> bash
//   - -zsh -> zsh
//   - /usr/local/bin/elvish -> elvish
func parseShellFromPath(shellPath string) Name {
	base := strings.ToLower(filepath.Base(shellPath))
	base = strings.TrimPrefix(base, "-")

	switch Name(base) {
	case Bash, Zsh, Fish, Elvish:
		return Name(base)
	default:
		return Unknown
	}
}

// Package keys validates the private key files handed to ssh-agent-setup.
package keys

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/peppapig450/ssh-agent-setup/internal/paths"
)

// KeyUnreadableError reports a key reference that does not name an
// existing, readable regular file.
type KeyUnreadableError struct {
	Path    string
	Message string
	Cause   error
}

func (e *KeyUnreadableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("key %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("key %s: %s", e.Path, e.Message)
}

func (e *KeyUnreadableError) Unwrap() error {
	return e.Cause
}

// Validator expands and checks key references.
type Validator struct {
	home   string
	logger *slog.Logger
}

// NewValidator returns a Validator expanding "~" against home.
func NewValidator(home string, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{home: home, logger: logger}
}

// Validate returns the absolute paths of raw in input order. The first
// unusable entry aborts validation with a KeyUnreadableError.
func (v *Validator) Validate(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		path, err := v.validateOne(r)
		if err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, nil
}

func (v *Validator) validateOne(raw string) (string, error) {
	if raw == "" {
		return "", &KeyUnreadableError{Path: raw, Message: "empty path"}
	}

	path, err := paths.Abs(raw, v.home)
	if err != nil {
		return "", &KeyUnreadableError{Path: raw, Message: "cannot make path absolute", Cause: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", &KeyUnreadableError{Path: path, Message: "cannot stat", Cause: err}
	}
	if !info.Mode().IsRegular() {
		return "", &KeyUnreadableError{Path: path, Message: "not a regular file"}
	}

	data, err := os.ReadFile(path) //nolint:gosec // user-provided key path expected
	if err != nil {
		return "", &KeyUnreadableError{Path: path, Message: "cannot read", Cause: err}
	}

	v.checkFormat(path, data)
	return filepath.Clean(path), nil
}

// checkFormat warns about files that do not parse as an SSH private key.
// ssh-add is the authority on what it accepts, so this never fails.
func (v *Validator) checkFormat(path string, data []byte) {
	_, err := ssh.ParseRawPrivateKey(data)
	if err == nil {
		return
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		v.logger.Debug("key is passphrase protected", "key", path)
		return
	}
	v.logger.Warn("file does not look like an SSH private key", "key", path, "error", err)
}

package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Config holds the user's settings.
type Config struct {
	// Picker is the multi-select command; empty disables it.
	Picker string
	// Dotfiles enables chezmoi source lookup for RC files.
	Dotfiles bool
	// Backup copies RC files aside before appending.
	Backup bool
	// TemplateDir overrides where unit templates are read from.
	TemplateDir string
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		Picker:   DefaultPicker,
		Dotfiles: true,
		Backup:   true,
	}
}

// Validate performs basic validation on a Config.
func (c *Config) Validate() error {
	if strings.ContainsAny(c.Picker, " \t\n/") && !strings.HasPrefix(c.Picker, "/") {
		return &ValidationError{
			Field:   luaFieldPicker,
			Message: fmt.Sprintf("must be a command name or absolute path, got %q", c.Picker),
		}
	}
	if strings.ContainsRune(c.TemplateDir, 0) {
		return &ValidationError{Field: luaFieldTemplateDir, Message: "contains a NUL byte"}
	}
	if c.TemplateDir != "" && !isAbsOrHome(c.TemplateDir) {
		return &ValidationError{
			Field:   luaFieldTemplateDir,
			Message: fmt.Sprintf("must be absolute or start with ~/, got %q", c.TemplateDir),
		}
	}
	return nil
}

func isAbsOrHome(path string) bool {
	return filepath.IsAbs(path) || path == "~" || strings.HasPrefix(path, "~/")
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

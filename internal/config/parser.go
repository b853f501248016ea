package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/peppapig450/ssh-agent-setup/internal/platform"
)

// Parser represents a Lua config parser with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
// A nil detector leaves `platform` undefined in the config.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// Load reads the config at path. A missing file is not an error: it
// returns Default() and found=false.
func (p *Parser) Load(ctx context.Context, path string) (cfg *Config, found bool, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("stat config: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, false, &ParseError{Message: "config is not a regular file", Detail: path}
	}
	if info.Size() > MaxConfigSize {
		return nil, false, &ParseError{
			Message: "config file too large",
			Detail:  fmt.Sprintf("%s is %d bytes, maximum is %d", path, info.Size(), MaxConfigSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read config: %w", err)
	}

	cfg, err = p.ParseString(ctx, string(data))
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// ParseString parses a Lua config from a string.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	ctx, cancel := context.WithTimeout(ctx, ParseTimeout)
	defer cancel()

	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		platformInfo, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, platformInfo); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctx.Err() != nil {
			return nil, &ParseError{Message: "config evaluation timed out", Detail: err.Error()}
		}
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractConfig(L)
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig reads the global "setup" table. Without one the defaults
// apply.
func extractConfig(L *lua.LState) (*Config, error) {
	config := Default()

	setupVal := L.GetGlobal(luaGlobalSetup)
	switch setupVal.Type() {
	case lua.LTNil:
		return config, nil
	case lua.LTTable:
	default:
		return nil, &ParseError{
			Message: "invalid 'setup' table",
			Detail:  fmt.Sprintf("expected table, got %s", setupVal.Type()),
		}
	}
	table := setupVal.(*lua.LTable)

	switch v := table.RawGetString(luaFieldPicker); v.Type() {
	case lua.LTNil:
	case lua.LTString:
		config.Picker = strings.TrimSpace(v.String())
	case lua.LTBool:
		if !lua.LVAsBool(v) {
			config.Picker = ""
		}
	default:
		return nil, fieldTypeError(luaFieldPicker, "string or false", v)
	}

	var err error
	if config.Dotfiles, err = optionalBool(table, luaFieldDotfiles, config.Dotfiles); err != nil {
		return nil, err
	}
	if config.Backup, err = optionalBool(table, luaFieldBackup, config.Backup); err != nil {
		return nil, err
	}

	switch v := table.RawGetString(luaFieldTemplateDir); v.Type() {
	case lua.LTNil:
	case lua.LTString:
		config.TemplateDir = v.String()
	default:
		return nil, fieldTypeError(luaFieldTemplateDir, "string", v)
	}

	if err := config.Validate(); err != nil {
		return nil, &ParseError{
			Message: "config validation failed",
			Detail:  err.Error(),
		}
	}
	return config, nil
}

func optionalBool(table *lua.LTable, field string, def bool) (bool, error) {
	v := table.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
		return def, nil
	case lua.LTBool:
		return lua.LVAsBool(v), nil
	default:
		return false, fieldTypeError(field, "boolean", v)
	}
}

func fieldTypeError(field, want string, got lua.LValue) error {
	return &ParseError{
		Message: "config validation failed",
		Detail:  (&ValidationError{Field: field, Message: fmt.Sprintf("expected %s, got %s", want, got.Type())}).Error(),
	}
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}

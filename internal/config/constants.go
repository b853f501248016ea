package config

import "time"

// Lua schema field names and globals
const (
	luaGlobalSetup      = "setup"
	luaFieldPicker      = "picker"
	luaFieldDotfiles    = "dotfiles"
	luaFieldBackup      = "backup"
	luaFieldTemplateDir = "template_dir"
)

// Limits applied to user configuration.
const (
	MaxConfigSize = 1 << 20
	ParseTimeout  = 5 * time.Second
	// DefaultPicker is used unless the config disables or replaces it.
	DefaultPicker = "fzf"
)

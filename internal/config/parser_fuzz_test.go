package config

import (
	"context"
	"testing"
)

func FuzzParser_ParseString(f *testing.F) {
	f.Add(`setup = { picker = "fzf" }`)
	f.Add(`setup = { picker = false, dotfiles = false }`)
	f.Add(`setup = { template_dir = "~/units" }`)

	parser := NewParser(nil)

	f.Fuzz(func(t *testing.T, luaCode string) {
		cfg, err := parser.ParseString(context.Background(), luaCode)
		if err == nil && cfg == nil {
			t.Errorf("ParseString(%q) returned nil config without error", luaCode)
		}
	})
}

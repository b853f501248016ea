// Package config loads the optional ssh-agent-setup configuration file.
//
// The file is Lua, evaluated in a sandboxed gopher-lua VM with os, io,
// debug and every code-loading function removed. A read-only `platform`
// table describing the host is available, so settings can depend on the
// distribution:
//
//	setup = {
//	    picker = platform.is_arch_family and "fzf" or false,
//	    dotfiles = true,
//	    backup = true,
//	    template_dir = "~/.local/share/ssh-agent-setup/units",
//	}
//
// Every field is optional. A missing file yields Default(). Parse and
// validation failures are ParseError values; callers treat them as fatal.
//
// Resource limits: the file may be at most MaxConfigSize bytes and must
// finish evaluating within ParseTimeout.
package config

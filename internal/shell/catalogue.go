package shell

import (
	"path/filepath"
	"sort"

	"github.com/peppapig450/ssh-agent-setup/internal/paths"
)

// Catalogue returns every supported shell with its RC path resolved
// against env, sorted by name.
func Catalogue(env paths.Env) []Descriptor {
	zdotdir := env.ZDotDir
	if zdotdir == "" || !filepath.IsAbs(zdotdir) {
		zdotdir = env.Home
	}

	posix := `export ` + EnvMarker + `="$XDG_RUNTIME_DIR/` + paths.SocketName + `"`

	list := []Descriptor{
		{
			Name:    Bash,
			RCFile:  filepath.Join(env.Home, ".bash_profile"),
			Snippet: posix,
		},
		{
			Name:    Elvish,
			RCFile:  filepath.Join(env.ConfigHome, "elvish", "rc.elv"),
			Snippet: `set-env ` + EnvMarker + ` $E:XDG_RUNTIME_DIR/` + paths.SocketName,
		},
		{
			Name:    Fish,
			RCFile:  filepath.Join(env.ConfigHome, "fish", "config.fish"),
			Snippet: `set -gx ` + EnvMarker + ` "$XDG_RUNTIME_DIR/` + paths.SocketName + `"`,
		},
		{
			Name:    Zsh,
			RCFile:  filepath.Join(zdotdir, ".zshenv"),
			Snippet: posix,
		},
	}
	SortByName(list)
	return list
}

// Lookup returns the descriptor for name from list.
func Lookup(list []Descriptor, name Name) (Descriptor, bool) {
	for _, d := range list {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// SortByName orders descriptors by shell name in place.
func SortByName(list []Descriptor) {
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
}

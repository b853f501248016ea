package paths

import (
	"path/filepath"
	"strings"
)

// ExpandHome replaces a leading "~" or "~/" with home. Other forms such as
// "~user/" are returned unchanged.
func ExpandHome(path, home string) string {
	switch {
	case path == "~":
		return home
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(home, path[2:])
	default:
		return path
	}
}

// Abs expands the home shorthand and makes the result absolute.
func Abs(path, home string) (string, error) {
	return filepath.Abs(ExpandHome(path, home))
}

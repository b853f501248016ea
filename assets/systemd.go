// Package assets embeds the systemd unit templates shipped with
// ssh-agent-setup.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed systemd/ssh-agent.service systemd/ssh-add.service
var systemdFiles embed.FS

// SystemdTemplates returns the unit templates, rooted so that file names
// are bare unit names such as "ssh-add.service".
func SystemdTemplates() fs.FS {
	sub, err := fs.Sub(systemdFiles, "systemd")
	if err != nil {
		// Embedded at compile time; a failure here is a build bug.
		panic("embedded systemd templates missing: " + err.Error())
	}
	return sub
}

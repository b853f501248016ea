// Package platform detects the host ssh-agent-setup runs on and exposes
// it to the Lua configuration as a read-only `platform` table.
//
// Only Linux hosts booted with systemd are supported: the agent runs as a
// systemd user unit. Distribution details come from gopsutil and are
// informational; detection failures there are not fatal.
package platform

import (
	"context"
	"fmt"
)

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info contains platform detection information.
type Info struct {
	OS       string // runtime.GOOS
	Arch     string // "amd64", "arm64", or GOARCH as is
	Platform string // distro ID, e.g. "ubuntu", "arch"
	Family   string // canonical family, e.g. "debian"
	Version  string // distro version, e.g. "24.04"
	Kernel   string // kernel release
	// Systemd is true when the host was booted with systemd as init.
	Systemd bool
}

// Distro contains Linux distribution information.
type Distro struct {
	ID      string
	Family  string
	Version string
}

// GetDistro returns distro information, or nil when it is unknown.
func (i *Info) GetDistro() *Distro {
	if !i.IsLinux() || i.Platform == "" {
		return nil
	}
	return &Distro{ID: i.Platform, Family: i.Family, Version: i.Version}
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// InFamily reports whether the host is a Linux distribution of family.
func (i *Info) InFamily(family string) bool {
	return i.IsLinux() && i.Family == family
}

// UnsupportedError means the host cannot run systemd user units.
type UnsupportedError struct {
	OS     string
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported platform %s: %s", e.OS, e.Reason)
}

// CheckSupported returns an UnsupportedError unless the host is Linux
// booted with systemd.
func (i *Info) CheckSupported() error {
	if !i.IsLinux() {
		return &UnsupportedError{OS: i.OS, Reason: "systemd user units require Linux"}
	}
	if !i.Systemd {
		return &UnsupportedError{OS: i.OS, Reason: "host was not booted with systemd"}
	}
	return nil
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

package platform

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// systemdRunDir exists only while systemd is PID 1, see sd_booted(3).
const systemdRunDir = "/run/systemd/system"

// RealDetector implements Detector using actual platform detection.
type RealDetector struct {
	systemdDir string
}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{systemdDir: systemdRunDir}
}

// Detect reports OS and architecture from the runtime, plus distribution
// and kernel details from gopsutil on Linux.
//
// Distribution detection failures leave those fields empty; only context
// cancellation is an error.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:   runtime.GOOS,
		Arch: normalizeArch(runtime.GOARCH),
	}
	if !info.IsLinux() {
		return info, nil
	}

	info.Systemd = isDir(d.systemdDir)

	platform, family, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
	} else if platform = normalizePlatform(platform); platform != "" {
		info.Platform = platform
		info.Family = mapFamily(family)
		info.Version = normalizePlatform(version)
	}

	if kernel, err := host.KernelVersionWithContext(ctx); err == nil {
		info.Kernel = kernel
	}

	return info, nil
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

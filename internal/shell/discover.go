package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ParseValidShells reads a valid-shells declaration: one absolute path per
// line, with blank lines and '#' comments ignored. Relative entries are
// skipped. The result maps each basename to its preferred path.
func ParseValidShells(r io.Reader) (map[string]string, error) {
	best := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			continue
		}
		path := filepath.Clean(line)
		base := filepath.Base(path)

		current, seen := best[base]
		if !seen || (filepath.Dir(current) == MinimalBinDir && filepath.Dir(path) != MinimalBinDir) {
			best[base] = path
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return best, nil
}

// ReadValidShells parses the declaration at path. A missing, unreadable or
// empty declaration is a NoValidShellsError.
func ReadValidShells(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &NoValidShellsError{Path: path, Cause: err}
	}
	defer file.Close()

	shells, err := ParseValidShells(file)
	if err != nil {
		return nil, &NoValidShellsError{Path: path, Cause: err}
	}
	if len(shells) == 0 {
		return nil, &NoValidShellsError{Path: path}
	}
	return shells, nil
}

// Resolver canonicalizes a binary path.
type Resolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

// Discoverer intersects the catalogue with what the host provides.
type Discoverer struct {
	validShellsFile string
	lookPath        func(string) (string, error)
	resolver        Resolver
	logger          *slog.Logger
}

// NewDiscoverer returns a Discoverer reading validShellsFile (default
// /etc/shells) and resolving binaries with resolver.
func NewDiscoverer(validShellsFile string, resolver Resolver, logger *slog.Logger) *Discoverer {
	if validShellsFile == "" {
		validShellsFile = ValidShellsFile
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Discoverer{
		validShellsFile: validShellsFile,
		lookPath:        exec.LookPath,
		resolver:        resolver,
		logger:          logger,
	}
}

// Discover returns the catalogue entries that are installed and declared
// valid, sorted by name. Shells that fail either check are logged and
// skipped; only a missing or empty declaration is an error.
func (d *Discoverer) Discover(ctx context.Context, catalogue []Descriptor) ([]Descriptor, error) {
	valid, err := ReadValidShells(d.validShellsFile)
	if err != nil {
		return nil, err
	}

	declared := make(map[string]bool, len(valid))
	for _, p := range valid {
		declared[p] = true
	}

	var enabled []Descriptor
	for _, desc := range catalogue {
		bin, err := d.lookPath(desc.Name.String())
		if err != nil {
			d.logger.Info("shell not installed, skipping", "shell", desc.Name)
			continue
		}

		candidates := []string{bin}
		if d.resolver != nil {
			resolved, err := d.resolver.Resolve(ctx, bin)
			if err != nil {
				d.logger.Warn("cannot resolve shell binary", "shell", desc.Name, "path", bin, "error", err)
			} else if resolved != bin {
				candidates = append(candidates, resolved)
			}
		}

		if !anyDeclared(declared, candidates) {
			d.logger.Warn("shell binary not declared valid, skipping",
				"shell", desc.Name,
				"path", strings.Join(candidates, " -> "),
				"declaration", d.validShellsFile,
				"expected", valid[desc.Name.String()])
			continue
		}

		d.logger.Debug("shell enabled", "shell", desc.Name, "path", bin)
		enabled = append(enabled, desc)
	}

	SortByName(enabled)
	return enabled, nil
}

func anyDeclared(declared map[string]bool, candidates []string) bool {
	for _, c := range candidates {
		if declared[c] {
			return true
		}
	}
	return false
}

// String describes a descriptor for listings.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.RCFile)
}

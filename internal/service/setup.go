package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"

	"github.com/peppapig450/ssh-agent-setup/internal/agent"
	"github.com/peppapig450/ssh-agent-setup/internal/chezmoi"
	"github.com/peppapig450/ssh-agent-setup/internal/git"
	"github.com/peppapig450/ssh-agent-setup/internal/paths"
	"github.com/peppapig450/ssh-agent-setup/internal/platform"
	"github.com/peppapig450/ssh-agent-setup/internal/prompt"
	"github.com/peppapig450/ssh-agent-setup/internal/shell"
	"github.com/peppapig450/ssh-agent-setup/internal/unit"
)

// RequiredCommands must be on PATH before anything is written.
var RequiredCommands = []string{"systemctl", "ssh-agent", "ssh-add"}

// KeyValidator checks key references.
type KeyValidator interface {
	Validate(raw []string) ([]string, error)
}

// UnitGenerator renders the loader unit.
type UnitGenerator interface {
	Generate(template string, keys []string) (text string, found bool, err error)
}

// ShellDiscoverer finds the usable catalogue shells.
type ShellDiscoverer interface {
	Discover(ctx context.Context, catalogue []shell.Descriptor) ([]shell.Descriptor, error)
}

// ShellSelector asks which shells to configure.
type ShellSelector interface {
	Select(ctx context.Context, enabled []shell.Descriptor, current shell.Name) ([]shell.Descriptor, error)
}

// PathResolver canonicalizes RC paths.
type PathResolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

// DotfileMapper maps deployed files to their managed sources.
type DotfileMapper interface {
	Mapping(ctx context.Context) (chezmoi.Mapping, error)
}

// RCPatcher appends the export snippet to one file.
type RCPatcher interface {
	Patch(desc shell.Descriptor, target string) (*shell.PatchResult, error)
}

// Activator reloads systemd and starts units.
type Activator interface {
	Activate(ctx context.Context, units ...string) error
}

// AgentProber asks the running agent for its keys.
type AgentProber interface {
	Probe(ctx context.Context, socket string) (*agent.Status, error)
}

// RepoInspector reports uncommitted changes to a file.
type RepoInspector interface {
	FileStatus(ctx context.Context, path string) (*git.FileStatus, error)
}

// Locker serializes runs.
type Locker interface {
	Lock(ctx context.Context) (unlock func() error, err error)
}

// Dependencies are the collaborators of SetupService. Dotfiles, Repo,
// Prober, Platform and Locker may be nil; the steps using them are then
// skipped.
type Dependencies struct {
	Keys       KeyValidator
	Generator  UnitGenerator
	Discoverer ShellDiscoverer
	Selector   ShellSelector
	Resolver   PathResolver
	Dotfiles   DotfileMapper
	Patcher    RCPatcher
	Activator  Activator
	Prober     AgentProber
	Repo       RepoInspector
	Platform   platform.Detector
	// Locker is taken after key validation, before anything is written.
	Locker Locker
	// Templates are extracted into the template directory when it is the
	// bundled location.
	Templates fs.FS
	Logger    *slog.Logger
	// LookPath defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

// SetupService orchestrates one provisioning run.
type SetupService struct {
	deps Dependencies
}

// NewSetupService creates a SetupService.
func NewSetupService(deps Dependencies) *SetupService {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.LookPath == nil {
		deps.LookPath = exec.LookPath
	}
	return &SetupService{deps: deps}
}

// SetupRequest contains the parameters of one run.
type SetupRequest struct {
	// Keys are raw key paths as typed by the user.
	Keys  []string
	Env   paths.Env
	Paths paths.PathSet
	// Current is the shell the user is running.
	Current shell.Name
}

// SetupResult reports what the run did.
type SetupResult struct {
	Keys       []string
	LoaderUnit string
	// MarkerMissing is true when the loader template had no key marker.
	MarkerMissing bool
	AgentLinked   bool
	Enabled       []shell.Descriptor
	Selected      []shell.Descriptor
	// SelectionAborted is true when the user chose to configure no shells.
	SelectionAborted bool
	Patches          []*shell.PatchResult
	Activated        bool
	Agent            *agent.Status
	// Hints are follow-up actions for the user.
	Hints []string
}

// Execute runs the workflow. Precondition and validation failures return
// before anything is written, the run lock included. RC file failures are collected and returned
// together after activation; systemd failures are returned immediately.
func (s *SetupService) Execute(ctx context.Context, req SetupRequest) (*SetupResult, error) {
	log := s.deps.Logger
	result := &SetupResult{LoaderUnit: req.Paths.LoaderUnit}

	if err := s.checkPreconditions(ctx, req); err != nil {
		return nil, err
	}

	// 1. Keys
	keys, err := s.deps.Keys.Validate(req.Keys)
	if err != nil {
		return nil, err
	}
	result.Keys = keys
	log.Info("keys validated", "count", len(keys))

	if s.deps.Locker != nil {
		unlock, err := s.deps.Locker.Lock(ctx)
		if err != nil {
			return nil, &PreconditionError{Reason: "cannot take run lock", Cause: err}
		}
		defer func() {
			if err := unlock(); err != nil {
				log.Warn("cannot release run lock", "error", err)
			}
		}()
	}

	// 2. Units
	if err := s.installUnits(req, result); err != nil {
		return nil, err
	}

	// 3. Shells
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("operation cancelled: %w", err)
	}
	failures, err := s.configureShells(ctx, req, result)
	if err != nil {
		return nil, err
	}

	// 4. Activation
	if err := s.deps.Activator.Activate(ctx, paths.AgentUnitName, paths.LoaderUnitName); err != nil {
		return nil, err
	}
	result.Activated = true

	if s.deps.Prober != nil {
		status, err := s.deps.Prober.Probe(ctx, req.Paths.Socket)
		if err != nil {
			log.Warn("cannot reach ssh-agent after activation", "socket", req.Paths.Socket, "error", err)
		} else {
			result.Agent = status
			log.Info("ssh-agent is running", "socket", status.Socket, "identities", len(status.Identities))
			if len(status.Identities) < len(keys) {
				log.Warn("agent holds fewer keys than configured; passphrase-protected keys need an askpass program",
					"loaded", len(status.Identities), "configured", len(keys))
			}
		}
	}

	return result, errors.Join(failures...)
}

func (s *SetupService) checkPreconditions(ctx context.Context, req SetupRequest) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("operation cancelled: %w", err)
	}

	if s.deps.Platform != nil {
		info, err := s.deps.Platform.Detect(ctx)
		if err != nil {
			return &PreconditionError{Reason: "cannot detect platform", Cause: err}
		}
		if err := info.CheckSupported(); err != nil {
			return &PreconditionError{Reason: "unsupported host", Cause: err}
		}
		s.deps.Logger.Debug("platform detected",
			"os", info.OS, "arch", info.Arch, "distro", info.Platform, "family", info.Family, "kernel", info.Kernel)
	}

	for _, name := range RequiredCommands {
		if _, err := s.deps.LookPath(name); err != nil {
			return &PreconditionError{Reason: "required command " + name + " not found", Cause: err}
		}
	}

	if len(req.Keys) == 0 {
		return &PreconditionError{Reason: "no key paths given"}
	}
	return nil
}

// installUnits generates the loader unit and links the agent unit.
func (s *SetupService) installUnits(req SetupRequest, result *SetupResult) error {
	log := s.deps.Logger
	ps := req.Paths

	if ps.BundledTemplates && s.deps.Templates != nil {
		written, err := unit.ExtractTemplates(ps.TemplateDir, s.deps.Templates)
		if err != nil {
			return &PreconditionError{Reason: "cannot install bundled unit templates", Cause: err}
		}
		if len(written) > 0 {
			log.Info("installed bundled unit templates", "dir", ps.TemplateDir, "files", written)
		}
	}
	if err := unit.CheckTemplates(ps.AgentTemplate, ps.LoaderTemplate); err != nil {
		return &PreconditionError{Reason: "unit templates unavailable", Cause: err}
	}

	template, err := unit.ReadTemplate(ps.LoaderTemplate)
	if err != nil {
		return &PreconditionError{Reason: "unit templates unavailable", Cause: err}
	}

	text, found, err := s.deps.Generator.Generate(template, result.Keys)
	if err != nil {
		return err
	}
	if !found {
		result.MarkerMissing = true
		log.Warn("loader template has no "+unit.Marker+" line; no keys will be loaded", "template", ps.LoaderTemplate)
	}

	changed, err := unit.LinkAgentUnit(ps.AgentUnit, ps.AgentTemplate)
	if err != nil {
		var conflict *unit.ConflictError
		if errors.As(err, &conflict) {
			return &PreconditionError{Reason: "agent unit path is occupied", Cause: err}
		}
		return fmt.Errorf("link agent unit: %w", err)
	}
	result.AgentLinked = changed
	if changed {
		log.Info("agent unit linked", "link", ps.AgentUnit, "target", ps.AgentTemplate)
	}

	if err := unit.WriteGenerated(ps.LoaderUnit, text); err != nil {
		return fmt.Errorf("write loader unit: %w", err)
	}
	log.Info("loader unit written", "path", ps.LoaderUnit, "keys", len(result.Keys))
	return nil
}

// configureShells runs discovery, selection and patching. It returns the
// per-file failures separately from fatal errors.
func (s *SetupService) configureShells(ctx context.Context, req SetupRequest, result *SetupResult) ([]error, error) {
	log := s.deps.Logger

	enabled, err := s.deps.Discoverer.Discover(ctx, shell.Catalogue(req.Env))
	if err != nil {
		return nil, err
	}
	result.Enabled = enabled
	if len(enabled) == 0 {
		log.Warn("no supported shells are installed and declared valid")
		return nil, nil
	}

	selected, err := s.deps.Selector.Select(ctx, enabled, req.Current)
	if errors.Is(err, prompt.ErrSelectionAborted) {
		result.SelectionAborted = true
		log.Info("no shells selected, leaving RC files untouched")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select shells: %w", err)
	}
	result.Selected = selected
	if len(selected) == 0 {
		log.Info("empty shell selection")
		return nil, nil
	}

	mapping := s.dotfileMapping(ctx)

	var failures []error
	patchedBy := make(map[string]shell.Name)
	for _, desc := range selected {
		target, managed, err := s.resolveTarget(ctx, desc, mapping)
		if err != nil {
			log.Warn("cannot resolve RC file, skipping", "shell", desc.Name, "file", desc.RCFile, "error", err)
			result.Patches = append(result.Patches, &shell.PatchResult{
				Shell: desc.Name, Path: desc.RCFile, Outcome: shell.Skipped, Reason: err.Error(),
			})
			continue
		}

		if owner, seen := patchedBy[target]; seen {
			log.Info("RC file shared with another shell", "shell", desc.Name, "file", target, "with", owner)
			result.Patches = append(result.Patches, &shell.PatchResult{
				Shell: desc.Name, Path: target, Outcome: shell.Skipped, Reason: "same file as " + owner.String(),
			})
			continue
		}
		patchedBy[target] = desc.Name

		res, err := s.deps.Patcher.Patch(desc, target)
		if err != nil {
			log.Error("cannot update RC file", "shell", desc.Name, "file", target, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", desc.Name, err))
			continue
		}
		result.Patches = append(result.Patches, res)
		log.Info("RC file "+res.Outcome.String(), "shell", desc.Name, "file", target)

		if managed && res.Outcome == shell.Appended {
			s.addRepoHint(ctx, target, result)
		}
	}

	return failures, nil
}

// dotfileMapping returns nil when chezmoi is disabled or unavailable.
func (s *SetupService) dotfileMapping(ctx context.Context) chezmoi.Mapping {
	if s.deps.Dotfiles == nil {
		return nil
	}
	mapping, err := s.deps.Dotfiles.Mapping(ctx)
	if err != nil {
		s.deps.Logger.Debug("dotfile mapping unavailable", "error", err)
		return nil
	}
	return mapping
}

// resolveTarget returns the file to patch for desc: its RC file with
// symlinks resolved, or the managed source of that file. managed reports
// the latter.
func (s *SetupService) resolveTarget(ctx context.Context, desc shell.Descriptor, mapping chezmoi.Mapping) (target string, managed bool, err error) {
	canonical, err := s.deps.Resolver.Resolve(ctx, desc.RCFile)
	if err != nil {
		return "", false, err
	}
	target = mapping.Resolve(canonical)
	if target == canonical {
		return canonical, false, nil
	}
	s.deps.Logger.Info("RC file is managed by chezmoi, editing source", "shell", desc.Name, "file", canonical, "source", target)
	return target, true, nil
}

func (s *SetupService) addRepoHint(ctx context.Context, source string, result *SetupResult) {
	if s.deps.Repo == nil {
		return
	}
	status, err := s.deps.Repo.FileStatus(ctx, source)
	if err != nil {
		s.deps.Logger.Debug("cannot inspect dotfile repository", "file", source, "error", err)
		return
	}
	if status.Changed {
		result.Hints = append(result.Hints, fmt.Sprintf(
			"%s changed in %s (%d uncommitted files); run `chezmoi apply` and commit it",
			status.RelPath, status.RepoRoot, status.DirtyFiles))
	}
}

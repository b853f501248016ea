package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/peppapig450/ssh-agent-setup/assets"
	"github.com/peppapig450/ssh-agent-setup/internal/agent"
	"github.com/peppapig450/ssh-agent-setup/internal/chezmoi"
	"github.com/peppapig450/ssh-agent-setup/internal/git"
	"github.com/peppapig450/ssh-agent-setup/internal/paths"
	"github.com/peppapig450/ssh-agent-setup/internal/platform"
	"github.com/peppapig450/ssh-agent-setup/internal/prompt"
	"github.com/peppapig450/ssh-agent-setup/internal/shell"
	"github.com/peppapig450/ssh-agent-setup/internal/unit"
)

type fakeKeys struct {
	err error
}

func (f fakeKeys) Validate(raw []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return raw, nil
}

type fakeGenerator struct{}

func (fakeGenerator) Generate(template string, keys []string) (string, bool, error) {
	if !strings.Contains(template, unit.Marker) {
		return template, false, nil
	}
	text, found := unit.Render(template, keys, "/usr/bin/ssh-add")
	return text, found, nil
}

type fakeDiscoverer struct {
	enabled []shell.Descriptor
	err     error
}

func (f fakeDiscoverer) Discover(_ context.Context, _ []shell.Descriptor) ([]shell.Descriptor, error) {
	return f.enabled, f.err
}

type fakeSelector struct {
	err    error
	called bool
}

func (f *fakeSelector) Select(_ context.Context, enabled []shell.Descriptor, _ shell.Name) ([]shell.Descriptor, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return enabled, nil
}

// mapResolver resolves through a fixed table and fails for paths listed
// in broken.
type mapResolver struct {
	links  map[string]string
	broken map[string]bool
}

func (r mapResolver) Resolve(_ context.Context, path string) (string, error) {
	if r.broken[path] {
		return "", &paths.UnresolvableSymlinkError{Path: path}
	}
	if target, ok := r.links[path]; ok {
		return target, nil
	}
	return path, nil
}

type fakeMapper struct {
	mapping chezmoi.Mapping
	err     error
}

func (f fakeMapper) Mapping(context.Context) (chezmoi.Mapping, error) {
	return f.mapping, f.err
}

type recordingPatcher struct {
	targets []string
	fail    map[string]error
}

func (p *recordingPatcher) Patch(desc shell.Descriptor, target string) (*shell.PatchResult, error) {
	p.targets = append(p.targets, target)
	if err := p.fail[target]; err != nil {
		return nil, err
	}
	return &shell.PatchResult{Shell: desc.Name, Path: target, Outcome: shell.Appended}, nil
}

type fakeActivator struct {
	units []string
	err   error
}

func (a *fakeActivator) Activate(_ context.Context, units ...string) error {
	a.units = units
	return a.err
}

type fakeProber struct {
	status *agent.Status
	err    error
}

func (p fakeProber) Probe(context.Context, string) (*agent.Status, error) {
	return p.status, p.err
}

type fakeRepo struct {
	status *git.FileStatus
}

func (r fakeRepo) FileStatus(context.Context, string) (*git.FileStatus, error) {
	if r.status == nil {
		return nil, git.ErrNotAGitRepo
	}
	return r.status, nil
}

type fakePlatform struct {
	info *platform.Info
}

func (p fakePlatform) Detect(context.Context) (*platform.Info, error) {
	return p.info, nil
}

// dirLocker records lock activity and, like the real lock, creates a
// file so tests can tell whether anything was written.
type dirLocker struct {
	path     string
	err      error
	locked   int
	released int
}

func (l *dirLocker) Lock(context.Context) (func() error, error) {
	if l.err != nil {
		return nil, l.err
	}
	if err := os.WriteFile(l.path, nil, 0o600); err != nil {
		return nil, err
	}
	l.locked++
	return func() error {
		l.released++
		return os.Remove(l.path)
	}, nil
}

func foundAll(string) (string, error) { return "/usr/bin/x", nil }

type fixture struct {
	home      string
	paths     paths.PathSet
	env       paths.Env
	patcher   *recordingPatcher
	activator *fakeActivator
	selector  *fakeSelector
	deps      Dependencies
	shells    []shell.Descriptor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	home := t.TempDir()
	env := paths.EnvFrom(home, func(string) (string, bool) { return "", false })
	env.RuntimeDir = filepath.Join(home, "run")
	ps := paths.NewPathSet(env, "", "")

	shells := []shell.Descriptor{
		{Name: shell.Bash, RCFile: filepath.Join(home, ".bashrc"), Snippet: "export X=1"},
		{Name: shell.Zsh, RCFile: filepath.Join(home, ".zshrc"), Snippet: "export X=1"},
	}

	f := &fixture{
		home:      home,
		paths:     ps,
		env:       env,
		patcher:   &recordingPatcher{},
		activator: &fakeActivator{},
		selector:  &fakeSelector{},
		shells:    shells,
	}
	f.deps = Dependencies{
		Keys:       fakeKeys{},
		Generator:  fakeGenerator{},
		Discoverer: fakeDiscoverer{enabled: shells},
		Selector:   f.selector,
		Resolver:   mapResolver{},
		Patcher:    f.patcher,
		Activator:  f.activator,
		Templates:  assets.SystemdTemplates(),
		LookPath:   foundAll,
	}
	return f
}

func (f *fixture) request() SetupRequest {
	return SetupRequest{
		Keys:    []string{filepath.Join(f.home, ".ssh", "id_ed25519")},
		Env:     f.env,
		Paths:   f.paths,
		Current: shell.Bash,
	}
}

func TestExecute_FullRun(t *testing.T) {
	f := newFixture(t)
	f.deps.Prober = fakeProber{status: &agent.Status{Socket: f.paths.Socket, Identities: []agent.Identity{{Type: "ssh-ed25519"}}}}

	result, err := NewSetupService(f.deps).Execute(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	loader, err := os.ReadFile(f.paths.LoaderUnit)
	if err != nil {
		t.Fatalf("loader unit not written: %v", err)
	}
	if strings.Contains(string(loader), unit.Marker) {
		t.Error("loader unit still contains the marker")
	}
	if !strings.Contains(string(loader), "ExecStart=/usr/bin/ssh-add "+f.request().Keys[0]) {
		t.Errorf("loader unit missing key line:\n%s", loader)
	}
	info, err := os.Stat(f.paths.LoaderUnit)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != unit.GeneratedMode {
		t.Errorf("loader unit mode = %o, want %o", info.Mode().Perm(), unit.GeneratedMode)
	}

	link, err := os.Readlink(f.paths.AgentUnit)
	if err != nil {
		t.Fatalf("agent unit is not a symlink: %v", err)
	}
	if link != f.paths.AgentTemplate {
		t.Errorf("agent unit -> %s, want %s", link, f.paths.AgentTemplate)
	}
	if !result.AgentLinked {
		t.Error("AgentLinked = false on first run")
	}

	wantTargets := []string{f.shells[0].RCFile, f.shells[1].RCFile}
	if diff := cmp.Diff(wantTargets, f.patcher.targets); diff != "" {
		t.Errorf("patched files mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{paths.AgentUnitName, paths.LoaderUnitName}, f.activator.units); diff != "" {
		t.Errorf("activated units mismatch (-want +got):\n%s", diff)
	}
	if !result.Activated || result.Agent == nil {
		t.Errorf("Activated = %v, Agent = %v", result.Activated, result.Agent)
	}
}

func TestExecute_ValidationFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	keyErr := errors.New("unreadable")
	f.deps.Keys = fakeKeys{err: keyErr}

	_, err := NewSetupService(f.deps).Execute(context.Background(), f.request())
	if !errors.Is(err, keyErr) {
		t.Fatalf("Execute() error = %v, want key error", err)
	}
	if _, err := os.Stat(f.paths.LoaderUnit); !os.IsNotExist(err) {
		t.Errorf("loader unit written despite validation failure: %v", err)
	}
	if len(f.patcher.targets) != 0 || f.activator.units != nil {
		t.Error("later stages ran after validation failure")
	}
}

func TestExecute_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*testing.T, *fixture, *SetupRequest)
	}{
		{
			name: "missing command",
			modify: func(t *testing.T, f *fixture, _ *SetupRequest) {
				f.deps.LookPath = func(name string) (string, error) {
					if name == "ssh-agent" {
						return "", errors.New("not found")
					}
					return "/usr/bin/" + name, nil
				}
			},
		},
		{
			name:   "no keys",
			modify: func(_ *testing.T, _ *fixture, req *SetupRequest) { req.Keys = nil },
		},
		{
			name: "not linux",
			modify: func(t *testing.T, f *fixture, _ *SetupRequest) {
				f.deps.Platform = fakePlatform{info: &platform.Info{OS: "darwin"}}
			},
		},
		{
			name: "no systemd",
			modify: func(t *testing.T, f *fixture, _ *SetupRequest) {
				f.deps.Platform = fakePlatform{info: &platform.Info{OS: "linux"}}
			},
		},
		{
			name: "agent unit occupied",
			modify: func(t *testing.T, f *fixture, _ *SetupRequest) {
				if err := os.MkdirAll(f.paths.ServiceDir, 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(f.paths.AgentUnit, []byte("[Unit]\n"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "template missing",
			modify: func(_ *testing.T, f *fixture, req *SetupRequest) {
				req.Paths = paths.NewPathSet(f.env, "", filepath.Join(f.home, "nowhere"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request()
			tt.modify(t, f, &req)

			_, err := NewSetupService(f.deps).Execute(context.Background(), req)
			var pe *PreconditionError
			if !errors.As(err, &pe) {
				t.Fatalf("Execute() error = %v, want PreconditionError", err)
			}
			if f.activator.units != nil {
				t.Error("units activated after precondition failure")
			}
		})
	}
}

func TestExecute_SelectionAbortedStillActivates(t *testing.T) {
	f := newFixture(t)
	f.selector.err = prompt.ErrSelectionAborted

	result, err := NewSetupService(f.deps).Execute(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.SelectionAborted {
		t.Error("SelectionAborted = false")
	}
	if len(f.patcher.targets) != 0 {
		t.Errorf("patched %v after abort", f.patcher.targets)
	}
	if !result.Activated {
		t.Error("units not activated after aborted selection")
	}
}

func TestExecute_NoEnabledShellsSkipsSelection(t *testing.T) {
	f := newFixture(t)
	f.deps.Discoverer = fakeDiscoverer{}

	result, err := NewSetupService(f.deps).Execute(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if f.selector.called {
		t.Error("selector called with no enabled shells")
	}
	if !result.Activated {
		t.Error("units not activated")
	}
}

func TestExecute_DiscoveryFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.deps.Discoverer = fakeDiscoverer{err: &shell.NoValidShellsError{Path: "/etc/shells"}}

	_, err := NewSetupService(f.deps).Execute(context.Background(), f.request())
	var nv *shell.NoValidShellsError
	if !errors.As(err, &nv) {
		t.Fatalf("Execute() error = %v, want NoValidShellsError", err)
	}
	if f.activator.units != nil {
		t.Error("units activated after discovery failure")
	}
}

func TestExecute_SharedRCFilePatchedOnce(t *testing.T) {
	f := newFixture(t)
	shared := filepath.Join(f.home, "dotfiles", "shellrc")
	f.deps.Resolver = mapResolver{links: map[string]string{
		f.shells[0].RCFile: shared,
		f.shells[1].RCFile: shared,
	}}

	result, err := NewSetupService(f.deps).Execute(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if diff := cmp.Diff([]string{shared}, f.patcher.targets); diff != "" {
		t.Errorf("patched files mismatch (-want +got):\n%s", diff)
	}
	if len(result.Patches) != 2 {
		t.Fatalf("got %d patch results, want 2", len(result.Patches))
	}
	dup := result.Patches[1]
	if dup.Outcome != shell.Skipped || dup.Reason != "same file as bash" {
		t.Errorf("duplicate result = %+v", dup)
	}
}

func TestExecute_UnresolvableRCFileIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.deps.Resolver = mapResolver{broken: map[string]bool{f.shells[0].RCFile: true}}

	result, err := NewSetupService(f.deps).Execute(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if diff := cmp.Diff([]string{f.shells[1].RCFile}, f.patcher.targets); diff != "" {
		t.Errorf("patched files mismatch (-want +got):\n%s", diff)
	}
	if result.Patches[0].Outcome != shell.Skipped {
		t.Errorf("unresolvable RC file outcome = %v, want skipped", result.Patches[0].Outcome)
	}
}

func TestExecute_ManagedSourceIsPatched(t *testing.T) {
	f := newFixture(t)
	source := filepath.Join(f.home, ".local", "share", "chezmoi", "dot_bashrc")
	if err := os.MkdirAll(filepath.Dir(source), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(source, []byte("# bashrc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f.deps.Dotfiles = fakeMapper{mapping: chezmoi.Mapping{f.shells[0].RCFile: source}}
	f.deps.Repo = fakeRepo{status: &git.FileStatus{
		RepoRoot: filepath.Dir(source), RelPath: "dot_bashrc", Changed: true, DirtyFiles: 1,
	}}

	result, err := NewSetupService(f.deps).Execute(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if diff := cmp.Diff([]string{source, f.shells[1].RCFile}, f.patcher.targets); diff != "" {
		t.Errorf("patched files mismatch (-want +got):\n%s", diff)
	}
	if len(result.Hints) != 1 || !strings.Contains(result.Hints[0], "chezmoi apply") {
		t.Errorf("Hints = %v", result.Hints)
	}
}

func TestExecute_DotfilesUnavailableFallsBack(t *testing.T) {
	f := newFixture(t)
	f.deps.Dotfiles = fakeMapper{err: chezmoi.ErrUnavailable}

	if _, err := NewSetupService(f.deps).Execute(context.Background(), f.request()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if diff := cmp.Diff([]string{f.shells[0].RCFile, f.shells[1].RCFile}, f.patcher.targets); diff != "" {
		t.Errorf("patched files mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_PatchFailuresAreCollected(t *testing.T) {
	f := newFixture(t)
	patchErr := errors.New("disk full")
	f.patcher.fail = map[string]error{f.shells[0].RCFile: patchErr}

	result, err := NewSetupService(f.deps).Execute(context.Background(), f.request())
	if !errors.Is(err, patchErr) {
		t.Fatalf("Execute() error = %v, want patch error", err)
	}
	if result == nil || !result.Activated {
		t.Fatal("units not activated after a patch failure")
	}
	if diff := cmp.Diff([]string{f.shells[0].RCFile, f.shells[1].RCFile}, f.patcher.targets); diff != "" {
		t.Errorf("patched files mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_ActivationFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.activator.err = errors.New("daemon-reload failed")

	result, err := NewSetupService(f.deps).Execute(context.Background(), f.request())
	if err == nil || result != nil {
		t.Fatalf("Execute() = %v, %v; want activation error", result, err)
	}
}

func TestExecute_ProbeFailureOnlyWarns(t *testing.T) {
	f := newFixture(t)
	f.deps.Prober = fakeProber{err: agent.ErrNoSocket}

	result, err := NewSetupService(f.deps).Execute(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Agent != nil {
		t.Errorf("Agent = %v, want nil", result.Agent)
	}
}

func TestExecute_MissingMarker(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	dir := filepath.Join(f.home, "templates")
	req.Paths = paths.NewPathSet(f.env, "", dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{paths.AgentUnitName, paths.LoaderUnitName} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[Service]\nType=oneshot\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	result, err := NewSetupService(f.deps).Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.MarkerMissing {
		t.Error("MarkerMissing = false")
	}
	got, err := os.ReadFile(req.Paths.LoaderUnit)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "[Service]\nType=oneshot\n" {
		t.Errorf("loader unit = %q, want template unchanged", got)
	}
}

func TestExecute_Idempotent(t *testing.T) {
	f := newFixture(t)
	svc := NewSetupService(f.deps)

	if _, err := svc.Execute(context.Background(), f.request()); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	first, err := os.ReadFile(f.paths.LoaderUnit)
	if err != nil {
		t.Fatal(err)
	}

	result, err := svc.Execute(context.Background(), f.request())
	if err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}
	second, err := os.ReadFile(f.paths.LoaderUnit)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("loader unit changed between runs:\n%s\n---\n%s", first, second)
	}
	if result.AgentLinked {
		t.Error("AgentLinked = true on second run")
	}
}

func TestExecute_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSetupService(f.deps).Execute(ctx, f.request())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestExecute_LockTakenAfterValidation(t *testing.T) {
	f := newFixture(t)
	locker := &dirLocker{path: filepath.Join(f.home, "run.lock")}
	f.deps.Locker = locker
	f.deps.Keys = fakeKeys{err: errors.New("unreadable")}

	if _, err := NewSetupService(f.deps).Execute(context.Background(), f.request()); err == nil {
		t.Fatal("Execute() error = nil, want key error")
	}
	if locker.locked != 0 {
		t.Error("run lock taken before keys were validated")
	}
	if _, err := os.Stat(locker.path); !os.IsNotExist(err) {
		t.Errorf("lock file written despite validation failure: %v", err)
	}
}

func TestExecute_LockReleased(t *testing.T) {
	f := newFixture(t)
	locker := &dirLocker{path: filepath.Join(f.home, "run.lock")}
	f.deps.Locker = locker

	if _, err := NewSetupService(f.deps).Execute(context.Background(), f.request()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if locker.locked != 1 || locker.released != 1 {
		t.Errorf("locked %d, released %d; want 1, 1", locker.locked, locker.released)
	}
}

func TestExecute_LockHeldElsewhere(t *testing.T) {
	f := newFixture(t)
	f.deps.Locker = &dirLocker{err: errors.New("another run is in progress")}

	_, err := NewSetupService(f.deps).Execute(context.Background(), f.request())
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("Execute() error = %v, want PreconditionError", err)
	}
	if _, err := os.Stat(f.paths.LoaderUnit); !os.IsNotExist(err) {
		t.Errorf("loader unit written while locked out: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/peppapig450/ssh-agent-setup/assets"
	"github.com/peppapig450/ssh-agent-setup/internal/agent"
	"github.com/peppapig450/ssh-agent-setup/internal/chezmoi"
	"github.com/peppapig450/ssh-agent-setup/internal/config"
	"github.com/peppapig450/ssh-agent-setup/internal/git"
	"github.com/peppapig450/ssh-agent-setup/internal/keys"
	"github.com/peppapig450/ssh-agent-setup/internal/lock"
	"github.com/peppapig450/ssh-agent-setup/internal/logging"
	"github.com/peppapig450/ssh-agent-setup/internal/paths"
	"github.com/peppapig450/ssh-agent-setup/internal/platform"
	"github.com/peppapig450/ssh-agent-setup/internal/prompt"
	"github.com/peppapig450/ssh-agent-setup/internal/service"
	"github.com/peppapig450/ssh-agent-setup/internal/shell"
	"github.com/peppapig450/ssh-agent-setup/internal/systemd"
	"github.com/peppapig450/ssh-agent-setup/internal/unit"
)

// run is the whole program minus process exit. Every fatal path logs
// before returning a non-zero code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		// Help and usage errors have already been printed.
		return exitUsage
	}

	if opts.version {
		fmt.Fprintf(stdout, "%s %s\n", paths.AppName, Version)
		return exitOK
	}

	logger := logging.New(logging.Options{Prog: paths.AppName, Verbose: opts.verbose, Out: stderr})
	prompter := prompt.NewPrompter(stdin, stderr)

	keyArgs := opts.keys
	if len(keyArgs) == 0 {
		if !prompter.Interactive() {
			fs := newFlagSet(&options{}, stderr)
			printUsage(stderr, fs)
			logger.Error("no key paths given and input is not interactive")
			return exitUsage
		}
		keyArgs, err = prompter.ReadKeyPaths()
		if err != nil {
			logger.Error("cannot read key paths", "error", err)
			return exitFatal
		}
	}

	env, err := paths.LoadEnv()
	if err != nil {
		logger.Error("cannot determine home directory", "error", err)
		return exitFatal
	}

	detector := platform.NewDetector()
	cfg, err := loadConfig(ctx, opts, env, detector, logger)
	if err != nil {
		logger.Error("cannot load configuration", "error", config.FormatError(err, opts.verbose))
		return exitFatal
	}

	ps := paths.NewPathSet(env, paths.ExecutableDir(), cfg.TemplateDir)
	logger.Debug("paths",
		"service_dir", ps.ServiceDir, "template_dir", ps.TemplateDir, "bundled", ps.BundledTemplates, "socket", ps.Socket)

	current := shell.DetectShell(ctx, env.Shell)
	logger.Debug("current shell", "shell", current.Shell, "method", current.Method, "path", current.ShellPath)

	svc := service.NewSetupService(dependencies(env, ps, cfg, prompter, stdout, stderr, detector, logger))
	result, err := svc.Execute(ctx, service.SetupRequest{
		Keys:    keyArgs,
		Env:     env,
		Paths:   ps,
		Current: current.Shell,
	})
	if result != nil {
		printResult(stdout, result)
	}
	if err != nil {
		logFatal(logger, err)
		return exitFatal
	}
	return exitOK
}

func loadConfig(ctx context.Context, opts *options, env paths.Env, detector platform.Detector, logger *slog.Logger) (*config.Config, error) {
	path := opts.configFile
	if path == "" {
		path = paths.DefaultConfigFile(env)
	} else {
		path = paths.ExpandHome(path, env.Home)
	}

	cfg, found, err := config.NewParser(detector).Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if found {
		logger.Debug("configuration loaded", "path", path)
	} else if opts.configFile != "" {
		logger.Warn("config file not found, using defaults", "path", path)
	}

	if opts.noPicker {
		cfg.Picker = ""
	}
	if opts.noDotfiles {
		cfg.Dotfiles = false
	}
	return cfg, nil
}

func dependencies(env paths.Env, ps paths.PathSet, cfg *config.Config, prompter *prompt.Prompter, stdout, stderr io.Writer, detector platform.Detector, logger *slog.Logger) service.Dependencies {
	resolver := paths.NewResolver()

	deps := service.Dependencies{
		Keys:       keys.NewValidator(env.Home, logger),
		Generator:  unit.NewGenerator(""),
		Discoverer: shell.NewDiscoverer("", resolver, logger),
		Selector: prompt.NewSelector(prompter, prompt.SelectorOptions{
			Picker: cfg.Picker,
			Out:    stderr,
			Logger: logger,
		}),
		Resolver: resolver,
		Patcher: shell.NewPatcher(shell.PatcherOptions{
			Confirm: prompter,
			Out:     stdout,
			Backup:  cfg.Backup,
			Logger:  logger,
		}),
		Activator: systemd.NewActivator("", logger),
		Prober:    agent.NewProber(),
		Platform:  detector,
		Locker:    lock.Locker{Dir: ps.LockDir},
		Templates: assets.SystemdTemplates(),
		Logger:    logger,
	}
	if cfg.Dotfiles {
		deps.Dotfiles = chezmoi.NewClient("", logger)
		deps.Repo = git.NewClient()
	}
	return deps
}

// logFatal reports err with the context its type carries.
func logFatal(logger *slog.Logger, err error) {
	var (
		precondition *service.PreconditionError
		keyErr       *keys.KeyUnreadableError
		activation   *systemd.ActivationError
		noShells     *shell.NoValidShellsError
	)
	switch {
	case errors.As(err, &precondition):
		logger.Error("precondition failed", "reason", precondition.Reason, "error", precondition.Cause)
	case errors.As(err, &keyErr):
		logger.Error("key validation failed, nothing was written", "key", keyErr.Path, "error", err)
	case errors.As(err, &activation):
		logger.Error("systemd activation failed", "step", activation.Step, "units", activation.Units, "output", activation.Output)
	case errors.As(err, &noShells):
		logger.Error("cannot discover shells", "file", noShells.Path, "error", err)
	case errors.Is(err, context.Canceled):
		logger.Error("interrupted")
	default:
		logger.Error("setup failed", "error", err)
	}
}

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/peppapig450/ssh-agent-setup/internal/paths"
)

// errHelp is returned by parseArgs when usage was requested.
var errHelp = errors.New("help requested")

type options struct {
	help       bool
	verbose    bool
	version    bool
	configFile string
	noPicker   bool
	noDotfiles bool
	keys       []string
}

func newFlagSet(opts *options, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(paths.AppName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	fs.BoolVarP(&opts.help, "help", "h", false, "Show this help message")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug details")
	fs.BoolVar(&opts.version, "version", false, "Print version information")
	fs.StringVar(&opts.configFile, "config", "", "Lua config file (default $XDG_CONFIG_HOME/ssh-agent-setup/config.lua)")
	fs.BoolVar(&opts.noPicker, "no-picker", false, "Choose shells from a numbered list instead of the picker")
	fs.BoolVar(&opts.noDotfiles, "no-dotfiles", false, "Edit deployed RC files even when chezmoi manages them")

	fs.Usage = func() { printUsage(stderr, fs) }
	return fs
}

// parseArgs parses the command line. Usage errors have already been
// reported to stderr when an error other than errHelp is returned.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := newFlagSet(opts, stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, errHelp
		}
		return nil, err
	}
	if opts.help {
		fs.Usage()
		return nil, errHelp
	}
	opts.keys = fs.Args()
	return opts, nil
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s [options] [--] [private-key...]\n", paths.AppName)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Install systemd user units that start ssh-agent and load the given keys,")
	fmt.Fprintln(w, "then export SSH_AUTH_SOCK from the startup files of the selected shells.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintf(w, "  %s ~/.ssh/id_ed25519\n", paths.AppName)
	fmt.Fprintf(w, "  %s --no-picker ~/.ssh/id_ed25519 ~/.ssh/work_rsa\n", paths.AppName)
	fmt.Fprintf(w, "  %s -- -oddly-named-key\n", paths.AppName)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "With no key arguments on a terminal, key paths are read interactively.")
}

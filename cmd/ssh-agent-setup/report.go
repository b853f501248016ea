package main

import (
	"fmt"
	"io"

	"github.com/peppapig450/ssh-agent-setup/internal/service"
	"github.com/peppapig450/ssh-agent-setup/internal/shell"
)

// printResult writes the end-of-run summary.
func printResult(w io.Writer, r *service.SetupResult) {
	fmt.Fprintln(w)
	if len(r.Keys) > 0 {
		fmt.Fprintf(w, "Keys (%d):\n", len(r.Keys))
		for _, k := range r.Keys {
			fmt.Fprintf(w, "  ✓ %s\n", k)
		}
	}
	if r.LoaderUnit != "" {
		fmt.Fprintf(w, "Loader unit: %s\n", r.LoaderUnit)
	}

	switch {
	case r.SelectionAborted:
		fmt.Fprintln(w, "Shells: none selected, RC files left untouched")
	case len(r.Patches) > 0:
		fmt.Fprintln(w, "Shells:")
		for _, p := range r.Patches {
			fmt.Fprintf(w, "  %s %-7s %s (%s)\n", outcomeGlyph(p.Outcome), p.Shell, p.Path, describe(p))
		}
	}

	if r.Activated {
		fmt.Fprintln(w, "Units enabled and started.")
	}
	if r.Agent != nil {
		fmt.Fprintf(w, "Agent: %s (%d keys loaded)\n", r.Agent.Socket, len(r.Agent.Identities))
	}

	if len(r.Hints) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Next steps:")
		for _, h := range r.Hints {
			fmt.Fprintf(w, "  - %s\n", h)
		}
	}
}

func outcomeGlyph(o shell.Outcome) string {
	switch o {
	case shell.Appended:
		return "✓"
	case shell.AlreadyPresent:
		return "="
	default:
		return "-"
	}
}

func describe(p *shell.PatchResult) string {
	s := p.Outcome.String()
	if p.Reason != "" {
		s += ": " + p.Reason
	}
	if p.Created {
		s += ", created"
	}
	if p.BackupPath != "" {
		s += ", backup " + p.BackupPath
	}
	return s
}

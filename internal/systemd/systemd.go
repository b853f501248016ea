// Package systemd drives the user-scope systemd instance.
package systemd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// DefaultBinary is the systemd control command.
const DefaultBinary = "systemctl"

// ActivationError is a failed systemctl invocation. Activation has no
// partial success: either step failing is fatal.
type ActivationError struct {
	Step   string
	Units  []string
	Output string
	Cause  error
}

func (e *ActivationError) Error() string {
	msg := fmt.Sprintf("systemctl --user %s failed", e.Step)
	if len(e.Units) > 0 {
		msg += " for " + strings.Join(e.Units, ", ")
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

func (e *ActivationError) Unwrap() error {
	return e.Cause
}

// Activator reloads and starts user units.
type Activator struct {
	bin    string
	logger *slog.Logger
}

// NewActivator returns an Activator running bin, or DefaultBinary when bin
// is empty.
func NewActivator(bin string, logger *slog.Logger) *Activator {
	if bin == "" {
		bin = DefaultBinary
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Activator{bin: bin, logger: logger}
}

// Activate reloads the user daemon and then enables and starts all units
// in a single call.
func (a *Activator) Activate(ctx context.Context, units ...string) error {
	if err := a.run(ctx, "daemon-reload", nil); err != nil {
		return err
	}
	return a.run(ctx, "enable", units, "--now")
}

func (a *Activator) run(ctx context.Context, step string, units []string, flags ...string) error {
	args := append([]string{"--user", step}, flags...)
	args = append(args, units...)

	a.logger.Debug("running systemctl", "args", args)

	cmd := exec.CommandContext(ctx, a.bin, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return &ActivationError{
			Step:   step,
			Units:  units,
			Output: strings.TrimSpace(out.String()),
			Cause:  err,
		}
	}
	a.logger.Info("systemctl "+step+" done", "units", units)
	return nil
}

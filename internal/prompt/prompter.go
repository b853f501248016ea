package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks questions on a line-oriented input stream.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewPrompter constructs a prompter. A nil in or out means stdin or stderr.
// The prompter is interactive only when in is a terminal.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	return &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: IsTerminal(in),
	}
}

// IsTerminal reports whether r is a file attached to a terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// Interactive reports whether the input stream is a terminal.
func (p *Prompter) Interactive() bool {
	return p.interactive
}

// Confirm asks a y/N question. Anything other than y or yes is a no.
func (p *Prompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	line = strings.ToLower(line)
	return line == "y" || line == "yes", nil
}

// ReadKeyPaths asks for space-separated private key paths.
func (p *Prompter) ReadKeyPaths() ([]string, error) {
	fmt.Fprint(p.out, "Private key paths to load (space separated): ")
	line, err := p.readLine()
	if err != nil {
		return nil, err
	}
	return strings.Fields(line), nil
}

// readLine returns one trimmed line. A final line without a newline is
// accepted; end of input with nothing read is io.EOF.
func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

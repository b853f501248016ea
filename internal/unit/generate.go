package unit

import (
	"os/exec"
	"strings"
)

// Marker is the template line replaced by the key invocations. Surrounding
// whitespace is ignored when matching.
const Marker = "@SSH_ADD_KEYS@"

// DefaultAgentBinary loads a key into the running agent.
const DefaultAgentBinary = "ssh-add"

// Generator renders the loader unit.
type Generator struct {
	binary   string
	lookPath func(string) (string, error)
}

// NewGenerator returns a Generator invoking binary, or DefaultAgentBinary
// when binary is empty.
func NewGenerator(binary string) *Generator {
	if binary == "" {
		binary = DefaultAgentBinary
	}
	return &Generator{binary: binary, lookPath: exec.LookPath}
}

// AgentPath locates the key-loading binary.
func (g *Generator) AgentPath() (string, error) {
	path, err := g.lookPath(g.binary)
	if err != nil {
		return "", &AgentBinaryNotFoundError{Binary: g.binary, Cause: err}
	}
	return path, nil
}

// Generate locates the agent binary and renders template for keys. found
// is false when the template has no marker line.
func (g *Generator) Generate(template string, keys []string) (text string, found bool, err error) {
	agent, err := g.AgentPath()
	if err != nil {
		return "", false, err
	}
	text, found = Render(template, keys, agent)
	return text, found, nil
}

// Render replaces the first marker line of template with one ExecStart=
// line per key, in order. Every other byte is kept. The second return
// value reports whether a marker was found; without one template is
// returned unchanged.
func Render(template string, keys []string, agentPath string) (string, bool) {
	lines := strings.Split(template, "\n")

	for i, line := range lines {
		if strings.TrimSpace(line) != Marker {
			continue
		}

		generated := make([]string, 0, len(keys))
		for _, key := range keys {
			generated = append(generated, ExecLine(agentPath, key))
		}

		out := make([]string, 0, len(lines)-1+len(generated))
		out = append(out, lines[:i]...)
		out = append(out, generated...)
		out = append(out, lines[i+1:]...)
		return strings.Join(out, "\n"), true
	}

	return template, false
}

// ExecLine is the unit line that loads key.
func ExecLine(agentPath, key string) string {
	return "ExecStart=" + quoteArg(agentPath) + " " + quoteArg(key)
}

// quoteArg escapes systemd specifiers and variable references, and
// double-quotes arguments holding whitespace or quotes.
func quoteArg(arg string) string {
	arg = strings.ReplaceAll(arg, "%", "%%")
	arg = strings.ReplaceAll(arg, "$", "$$")

	if !strings.ContainsAny(arg, " \t\"'\\") {
		return arg
	}
	arg = strings.ReplaceAll(arg, `\`, `\\`)
	arg = strings.ReplaceAll(arg, `"`, `\"`)
	return `"` + arg + `"`
}

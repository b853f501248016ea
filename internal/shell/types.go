package shell

import "fmt"

// Name identifies a shell in the catalogue.
type Name string

const (
	// Bash is GNU bash.
	Bash Name = "bash"
	// Zsh is the Z shell.
	Zsh Name = "zsh"
	// Fish is the friendly interactive shell.
	Fish Name = "fish"
	// Elvish is the elvish shell.
	Elvish Name = "elvish"
	// Unknown is any shell outside the catalogue.
	Unknown Name = "unknown"
)

// String returns the string representation of the shell name
func (n Name) String() string {
	return string(n)
}

// Descriptor is a catalogue entry.
type Descriptor struct {
	Name Name
	// RCFile is the absolute path of the startup file to patch.
	RCFile string
	// Snippet is the single line that exports SSH_AUTH_SOCK.
	Snippet string
}

// DetectionResult contains the result of shell detection
type DetectionResult struct {
	// Shell is the detected shell
	Shell Name
	// Method describes how the shell was detected
	Method string
	// ShellPath is the filesystem path or process name of the shell
	ShellPath string
	// Confidence is the confidence level (high, medium, none)
	Confidence string
}

// NoValidShellsError means the valid-shells declaration is missing, empty
// or unusable. Discovery cannot continue without it.
type NoValidShellsError struct {
	Path  string
	Cause error
}

func (e *NoValidShellsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("no valid shells declared in %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("no valid shells declared in %s", e.Path)
}

func (e *NoValidShellsError) Unwrap() error {
	return e.Cause
}

// RCFileError represents an error with shell rc file operations
type RCFileError struct {
	Path    string
	Message string
	Cause   error
}

func (e *RCFileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rc file error (%s): %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("rc file error (%s): %s", e.Path, e.Message)
}

func (e *RCFileError) Unwrap() error {
	return e.Cause
}

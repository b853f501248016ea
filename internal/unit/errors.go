package unit

import "fmt"

// AgentBinaryNotFoundError means the key-loading binary is not on PATH.
type AgentBinaryNotFoundError struct {
	Binary string
	Cause  error
}

func (e *AgentBinaryNotFoundError) Error() string {
	return fmt.Sprintf("%s not found in PATH", e.Binary)
}

func (e *AgentBinaryNotFoundError) Unwrap() error {
	return e.Cause
}

// TemplateMissingError means a unit template cannot be read.
type TemplateMissingError struct {
	Path  string
	Cause error
}

func (e *TemplateMissingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unit template %s missing: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("unit template %s missing", e.Path)
}

func (e *TemplateMissingError) Unwrap() error {
	return e.Cause
}

// ConflictError means a unit path is occupied by something ssh-agent-setup
// did not create and will not replace.
type ConflictError struct {
	Path    string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unit conflict (%s): %s", e.Path, e.Message)
}

package service

import "fmt"

// PreconditionError means the run cannot start or continue: a required
// command or template is missing, the host is unsupported, or there is
// nothing to do.
type PreconditionError struct {
	Reason string
	Cause  error
}

func (e *PreconditionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

func (e *PreconditionError) Unwrap() error {
	return e.Cause
}

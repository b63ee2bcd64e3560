package workflow

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the caller is not the allow-listed user.
// The check runs before anything else and never touches session state.
var ErrUnauthorized = errors.New("caller is not the allow-listed user")

// InvalidArgumentError reports malformed command input. No state change.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Reason
}

// NotReadyError reports that a stage was invoked before its precondition
// stage produced anything. Stage names the command that has to run first.
type NotReadyError struct {
	Stage string
}

func (e *NotReadyError) Error() string {
	return "not ready: run " + e.Stage + " first"
}

// AdapterError wraps a failure of an external service. The session is left
// exactly as it was before the call.
type AdapterError struct {
	Op  string
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

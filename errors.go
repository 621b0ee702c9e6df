package team

import (
	"errors"
	"fmt"
)

// Standard errors
var (
	// ErrTemplateNotFound is returned when a template name is not registered.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrRoleNotFound is returned when a roster has no member with the role.
	ErrRoleNotFound = errors.New("role not found")

	// ErrAgentNotFound is returned when an instance ID is unknown.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrToolLoopExceeded is returned when an agent keeps requesting tools
	// past its iteration limit.
	ErrToolLoopExceeded = errors.New("tool call loop exceeded maximum iterations")

	// ErrAllDispatchesFailed is returned when every specialist a request was
	// routed to failed to produce a reply.
	ErrAllDispatchesFailed = errors.New("all dispatches failed")
)

// ValidationError reports an invalid template or configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InferenceError reports a failure in the builder's meta-agent inference:
// the model call failed or its output could not be parsed. The caller gets
// the error rather than a silently defaulted agent.
type InferenceError struct {
	Stage string // "completion" or "parse"
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("agent inference failed (%s): %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// DispatchError reports a single specialist's failure during a fan-out.
type DispatchError struct {
	Role string
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s: %v", e.Role, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

package model

import "fmt"

const VALIDATION_NO_START_NODE string = "NO_START_NODE"
const VALIDATION_MULTIPLE_START_NODES string = "MULTIPLE_START_NODES"
const VALIDATION_NO_END_NODE string = "NO_END_NODE"
const VALIDATION_NODE_NOT_FOUND string = "NODE_NOT_FOUND"
const VALIDATION_BAD_EDGE string = "BAD_EDGE"
const VALIDATION_BAD_GRAPH string = "BAD_GRAPH"

const EXECUTION_NO_MATCHING_BRANCH string = "NO_MATCHING_BRANCH"
const EXECUTION_NODE_FAILED string = "NODE_FAILED"

// ValidationError rejects an operation on a malformed or incomplete
// graph without mutating any state.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error %s: %s", e.Code, e.Message)
}

func NewValidationError(code string, format string, args ...any) ValidationError {
	return ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// StateError rejects an instance operation attempted from a state that
// does not allow it. The instance is left unchanged.
type StateError struct {
	InstanceId string
	Status     InstanceStatus
	Operation  string
}

func (e StateError) Error() string {
	return fmt.Sprintf("illegal transition: can not %s instance %s in state %s", e.Operation, e.InstanceId, e.Status)
}

// ExecutionError reports a node execution failure with the underlying
// cause attached.
type ExecutionError struct {
	Code    string
	NodeId  string
	Message string
	Cause   error
}

func (e ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("execution error %s at node %s: %s: %v", e.Code, e.NodeId, e.Message, e.Cause)
	}
	return fmt.Sprintf("execution error %s at node %s: %s", e.Code, e.NodeId, e.Message)
}

func (e ExecutionError) Unwrap() error {
	return e.Cause
}

type ExecutorNotFoundError struct {
	NodeType NodeType
}

func (e ExecutorNotFoundError) Error() string {
	return fmt.Sprintf("no executor registered for node type %s", e.NodeType)
}

type HandlerNotFoundError struct {
	EventType string
}

func (e HandlerNotFoundError) Error() string {
	return fmt.Sprintf("no handler registered for event type %s", e.EventType)
}

type NotFoundError struct {
	Kind string
	Id   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Id)
}

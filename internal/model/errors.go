package model

import "fmt"

// Error categories, per the error taxonomy (spec.md §7).
const (
	CategoryInvalidCmd      = "InvalidCmd"
	CategoryMalformedSerde  = "MalformedSerde"
	CategoryUnknownTaskType = "UnknownTaskType"
	CategoryGeneric         = "Generic"
	CategoryDBError         = "DBError"
	CategoryChannelDropped  = "ChannelDropped"
)

// TaskExecError is the business-error type produced by the scheduling
// pipeline and the Workload Adapters. ChannelDropped instances are fatal
// and terminate the process; the rest are recorded as a TaskError row
// or returned to an API caller as 4xx/5xx JSON (spec.md §7).
type TaskExecError struct {
	Category string
	Message  string
}

func (e *TaskExecError) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Fatal reports whether this error must terminate the process.
func (e *TaskExecError) Fatal() bool {
	return e.Category == CategoryChannelDropped
}

func NewInvalidCmd(msg string) *TaskExecError {
	return &TaskExecError{Category: CategoryInvalidCmd, Message: msg}
}

func NewMalformedSerde(msg string) *TaskExecError {
	return &TaskExecError{Category: CategoryMalformedSerde, Message: msg}
}

func NewUnknownTaskType(kind string) *TaskExecError {
	return &TaskExecError{Category: CategoryUnknownTaskType, Message: fmt.Sprintf("no adapter registered for task type %q", kind)}
}

func NewGeneric(msg string) *TaskExecError {
	return &TaskExecError{Category: CategoryGeneric, Message: msg}
}

func NewDBError(err error) *TaskExecError {
	return &TaskExecError{Category: CategoryDBError, Message: err.Error()}
}

func NewChannelDropped(subsystem string) *TaskExecError {
	return &TaskExecError{Category: CategoryChannelDropped, Message: fmt.Sprintf("%s receiver has been dropped", subsystem)}
}

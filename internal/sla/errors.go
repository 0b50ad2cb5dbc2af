package sla

import "fmt"

// StateError reports an illegal lifecycle transition. These are
// programming errors in the caller and are never retried.
type StateError struct {
	Op        string
	Attempted State
	Actual    State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: cannot transition to %s from %s", e.Op, e.Attempted, e.Actual)
}

// ValidationError reports a rejected SLA configuration.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

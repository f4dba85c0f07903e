package runspace

import "fmt"

// UnexpectedStateError reports an operation attempted against the pool's
// current State that is only valid in a different one (e.g. invoking a
// pipeline before NegotiationSucceeded has been observed).
type UnexpectedStateError struct {
	Op    string
	State State
}

func (e *UnexpectedStateError) Error() string {
	return fmt.Sprintf("runspace: %s: invalid in state %s", e.Op, e.State)
}

// UnknownPipelineError reports a PipelineHandle the pool has no record of.
type UnknownPipelineError struct {
	Handle PipelineHandle
}

func (e *UnknownPipelineError) Error() string {
	return fmt.Sprintf("runspace: unknown pipeline %s", e.Handle.ID)
}

package runspace

import (
	"github.com/google/uuid"
	"github.com/oleiade/psrp/psrpmsg"
	"github.com/oleiade/psrp/psrpval"
)

// PipelineHandle identifies a pipeline by the client-assigned UUID that
// correlates requests and events for its whole lifetime.
type PipelineHandle struct {
	ID uuid.UUID
}

// HostCallScope identifies whether a host call targets the runspace pool
// itself or a specific running pipeline.
type HostCallScope struct {
	Pipeline  bool
	CommandID uuid.UUID // meaningful only when Pipeline is true
}

// Event is the discriminated result of feeding a server response through
// Pool.AcceptResponse.
type Event interface{ event() }

// ReceiveResponseEvent reports that the server acknowledged a Receive
// request and named the streams it will push data for.
type ReceiveResponseEvent struct {
	DesiredStreams []string
}

// PipelineCreatedEvent reports that the server confirmed a pipeline the
// client previously requested via InvokePipelineRequest.
type PipelineCreatedEvent struct {
	Handle PipelineHandle
}

// PipelineFinishedEvent reports a pipeline reaching a terminal PipelineState,
// carrying any ErrorRecords accumulated since the pipeline started running.
type PipelineFinishedEvent struct {
	Handle PipelineHandle
	State  psrpmsg.PipelineState
	Errors []psrpmsg.ErrorRecord
}

// PipelineOutputEvent carries one deserialized output object from a running
// pipeline.
type PipelineOutputEvent struct {
	Handle PipelineHandle
	Output psrpval.Value
}

// HostCallEvent carries a host method invocation the consumer must answer
// with SendPipelineHostResponse / SendRunspacePoolHostResponse.
type HostCallEvent struct {
	Scope HostCallScope
	Call  psrpmsg.HostCall
}

func (ReceiveResponseEvent) event() {}
func (PipelineCreatedEvent) event()  {}
func (PipelineFinishedEvent) event() {}
func (PipelineOutputEvent) event()   {}
func (HostCallEvent) event()         {}

package psrpmsg

// RunspacePoolState mirrors System.Management.Automation.Runspaces.RunspacePoolState.
type RunspacePoolState int32

const (
	RunspacePoolBeforeOpen RunspacePoolState = iota
	RunspacePoolOpening
	RunspacePoolOpened
	RunspacePoolClosed
	RunspacePoolClosing
	RunspacePoolBroken
	RunspacePoolNegotiationSent
	RunspacePoolNegotiationSucceeded
	RunspacePoolConnecting
	RunspacePoolDisconnected
)

func (s RunspacePoolState) String() string {
	names := [...]string{
		"BeforeOpen", "Opening", "Opened", "Closed", "Closing",
		"Broken", "NegotiationSent", "NegotiationSucceeded", "Connecting", "Disconnected",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "RunspacePoolState(invalid)"
	}
	return names[s]
}

// Terminal reports whether s ends the runspace pool's lifecycle.
func (s RunspacePoolState) Terminal() bool {
	return s == RunspacePoolClosed || s == RunspacePoolBroken
}

// PipelineState mirrors System.Management.Automation.PSInvocationState.
type PipelineState int32

const (
	PipelineNotStarted PipelineState = iota
	PipelineRunning
	PipelineStopping
	PipelineStopped
	PipelineCompleted
	PipelineFailed
	PipelineDisconnected
)

func (s PipelineState) String() string {
	names := [...]string{
		"NotStarted", "Running", "Stopping", "Stopped", "Completed", "Failed", "Disconnected",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "PipelineState(invalid)"
	}
	return names[s]
}

// Terminal reports whether s ends a pipeline's lifecycle.
func (s PipelineState) Terminal() bool {
	switch s {
	case PipelineCompleted, PipelineFailed, PipelineStopped:
		return true
	default:
		return false
	}
}

// ProgressRecordType discriminates a ProgressRecord's Type field.
type ProgressRecordType int32

const (
	ProgressProcessing ProgressRecordType = iota
	ProgressCompleted
)

func (t ProgressRecordType) String() string {
	if t == ProgressCompleted {
		return "Completed"
	}
	return "Processing"
}

// HostCall method identifiers (subset required for routing per §4.C).
const (
	HostMethodReadLine          = 11
	HostMethodWrite             = 13
	HostMethodWriteLine         = 16
	HostMethodWriteErrorLine    = 18
	HostMethodWriteDebugLine    = 19
	HostMethodWriteProgress     = 20
	HostMethodWriteVerboseLine  = 21
	HostMethodWriteWarningLine  = 22
	HostMethodPromptForChoice   = 26
	HostMethodGetBufferSize     = 37
)

package psrpmsg

import "fmt"

// MessageType is the closed 32-bit PSRP message type enumeration (§6). Wire
// values must not drift from this table.
//
// Constants are suffixed Msg where the bare name would otherwise collide
// with the Go struct carrying that message's payload (e.g. CreatePipelineMsg
// the wire tag vs. CreatePipeline the payload struct).
type MessageType uint32

const (
	SessionCapabilityMsg     MessageType = 0x00010002
	InitRunspacePoolMsg      MessageType = 0x00010004
	PublicKeyMsg             MessageType = 0x00010005
	EncryptedSessionKeyMsg   MessageType = 0x00010006
	PublicKeyRequestMsg      MessageType = 0x00010007
	ConnectRunspacePoolMsg   MessageType = 0x00010008
	RunspacePoolInitData     MessageType = 0x0002100B
	ResetRunspaceStateMsg    MessageType = 0x0002100C
	SetMaxRunspacesMsg       MessageType = 0x00021002
	SetMinRunspacesMsg       MessageType = 0x00021003
	RunspaceAvailabilityMsg  MessageType = 0x00021004
	RunspacePoolStateMsg     MessageType = 0x00021005
	CreatePipelineMsg        MessageType = 0x00021006
	GetAvailableRunspacesMsg MessageType = 0x00021007
	UserEventMsg             MessageType = 0x00021008
	ApplicationPrivateDataMsg MessageType = 0x00021009
	GetCommandMetadataMsg    MessageType = 0x0002100A
	RunspacePoolHostCall     MessageType = 0x00021100
	RunspacePoolHostResponse MessageType = 0x00021101
	PipelineInputMsg         MessageType = 0x00041002
	EndOfPipelineInputMsg    MessageType = 0x00041003
	PipelineOutputMsg        MessageType = 0x00041004
	ErrorRecordMsg           MessageType = 0x00041005
	PipelineStateMsg         MessageType = 0x00041006
	DebugRecordMsg           MessageType = 0x00041007
	VerboseRecordMsg         MessageType = 0x00041008
	WarningRecordMsg         MessageType = 0x00041009
	ProgressRecordMsg        MessageType = 0x00041010
	InformationRecordMsg     MessageType = 0x00041011
	PipelineHostCall         MessageType = 0x00041100
	PipelineHostResponse     MessageType = 0x00041101
)

var messageTypeNames = map[MessageType]string{
	SessionCapabilityMsg:      "SessionCapability",
	InitRunspacePoolMsg:       "InitRunspacePool",
	PublicKeyMsg:              "PublicKey",
	EncryptedSessionKeyMsg:    "EncryptedSessionKey",
	PublicKeyRequestMsg:       "PublicKeyRequest",
	ConnectRunspacePoolMsg:    "ConnectRunspacePool",
	RunspacePoolInitData:      "RunspacePoolInitData",
	ResetRunspaceStateMsg:     "ResetRunspaceState",
	SetMaxRunspacesMsg:        "SetMaxRunspaces",
	SetMinRunspacesMsg:        "SetMinRunspaces",
	RunspaceAvailabilityMsg:   "RunspaceAvailability",
	RunspacePoolStateMsg:      "RunspacePoolState",
	CreatePipelineMsg:         "CreatePipeline",
	GetAvailableRunspacesMsg:  "GetAvailableRunspaces",
	UserEventMsg:              "UserEvent",
	ApplicationPrivateDataMsg: "ApplicationPrivateData",
	GetCommandMetadataMsg:     "GetCommandMetadata",
	RunspacePoolHostCall:      "RunspacePoolHostCall",
	RunspacePoolHostResponse:  "RunspacePoolHostResponse",
	PipelineInputMsg:          "PipelineInput",
	EndOfPipelineInputMsg:     "EndOfPipelineInput",
	PipelineOutputMsg:         "PipelineOutput",
	ErrorRecordMsg:            "ErrorRecord",
	PipelineStateMsg:          "PipelineState",
	DebugRecordMsg:            "DebugRecord",
	VerboseRecordMsg:          "VerboseRecord",
	WarningRecordMsg:          "WarningRecord",
	ProgressRecordMsg:         "ProgressRecord",
	InformationRecordMsg:      "InformationRecord",
	PipelineHostCall:          "PipelineHostCall",
	PipelineHostResponse:      "PipelineHostResponse",
}

func (t MessageType) String() string {
	if n, ok := messageTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("MessageType(0x%08X)", uint32(t))
}

// Known reports whether t is one of the enumerated message types.
func (t MessageType) Known() bool {
	_, ok := messageTypeNames[t]
	return ok
}

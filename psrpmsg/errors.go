package psrpmsg

import "fmt"

// MissingPropertyError reports a required property absent from a message's
// property bag while decoding try_from(value)-style.
type MissingPropertyError struct {
	Message  string
	Property string
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("psrpmsg: %s: missing property %q", e.Message, e.Property)
}

// UnknownMessageTypeError reports a wire message_type not in the §6 table.
type UnknownMessageTypeError struct {
	Type uint32
}

func (e *UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("psrpmsg: unknown message type 0x%08X", e.Type)
}

// InvalidEnumOrdinalError reports a backing integer that does not correspond
// to a known variant of the named enum (RunspacePoolState, PSInvocationState, ...).
type InvalidEnumOrdinalError struct {
	EnumType string
	Ordinal  int64
}

func (e *InvalidEnumOrdinalError) Error() string {
	return fmt.Sprintf("psrpmsg: %s: invalid ordinal %d", e.EnumType, e.Ordinal)
}

// TruncatedHeaderError reports a byte slice shorter than the 40-byte PSRP
// message header.
type TruncatedHeaderError struct {
	Len int
}

func (e *TruncatedHeaderError) Error() string {
	return fmt.Sprintf("psrpmsg: truncated header: %d bytes", e.Len)
}

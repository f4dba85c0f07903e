package psrpmsg

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/oleiade/psrp/psrpval"
)

// SessionCapability is the first message exchanged on a runspace pool,
// announcing PSRP/PowerShell/serialization protocol versions.
type SessionCapability struct {
	PSVersion             string
	ProtocolVersion       string
	SerializationVersion  string
	TimeZone              []byte // optional serialized TimeZoneInfo, nil if absent
}

func (m SessionCapability) ToObj() *psrpval.Obj {
	o := newMsgObj("System.Management.Automation.Remoting.RemoteSessionCapability")
	setStr(o.Extended, "PSVersion", m.PSVersion)
	setStr(o.Extended, "protocolversion", m.ProtocolVersion)
	setStr(o.Extended, "SerializationVersion", m.SerializationVersion)
	if m.TimeZone != nil {
		setBytes(o.Extended, "TimeZone", m.TimeZone)
	}
	return o
}

func SessionCapabilityFromValue(v psrpval.Value) (SessionCapability, error) {
	const msg = "SessionCapability"
	o, err := asObj(msg, v)
	if err != nil {
		return SessionCapability{}, err
	}
	var m SessionCapability
	if m.PSVersion, err = getStr(o.Extended, msg, "PSVersion"); err != nil {
		return m, err
	}
	if m.ProtocolVersion, err = getStr(o.Extended, msg, "protocolversion"); err != nil {
		return m, err
	}
	if m.SerializationVersion, err = getStr(o.Extended, msg, "SerializationVersion"); err != nil {
		return m, err
	}
	if tz, ok := o.Extended.Get("TimeZone"); ok && tz.Prim != nil {
		m.TimeZone = tz.Prim.Bytes
	}
	return m, nil
}

// InitRunspacePool opens negotiation: min/max runspace counts, the client's
// host announcement, and optional PSVersionTable-style application arguments.
type InitRunspacePool struct {
	MinRunspaces int32
	MaxRunspaces int32
	HostInfo     HostInfo
	ApplicationArguments map[string]psrpval.Value // nil => Nil on the wire
}

func (m InitRunspacePool) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setI32(o.Extended, "MinRunspaces", m.MinRunspaces)
	setI32(o.Extended, "MaxRunspaces", m.MaxRunspaces)
	o.Extended.Set("PSThreadOptions", psrpval.FromObj(psrpval.NewEnumObj(
		[]string{"System.Management.Automation.Runspaces.PSThreadOptions"}, "Default", 0)))
	o.Extended.Set("ApartmentState", psrpval.FromObj(psrpval.NewEnumObj(
		[]string{"System.Threading.ApartmentState"}, "Unknown", 2)))
	o.Extended.Set("HostInfo", psrpval.FromObj(m.HostInfo.toObj()))
	o.Extended.Set("ApplicationArguments", applicationArgumentsValue(m.ApplicationArguments))
	return o
}

func InitRunspacePoolFromValue(v psrpval.Value) (InitRunspacePool, error) {
	const msg = "InitRunspacePool"
	o, err := asObj(msg, v)
	if err != nil {
		return InitRunspacePool{}, err
	}
	var m InitRunspacePool
	if m.MinRunspaces, err = getI32(o.Extended, msg, "MinRunspaces"); err != nil {
		return m, err
	}
	if m.MaxRunspaces, err = getI32(o.Extended, msg, "MaxRunspaces"); err != nil {
		return m, err
	}
	hostVal, ok := o.Extended.Get("HostInfo")
	if !ok {
		return m, &MissingPropertyError{Message: msg, Property: "HostInfo"}
	}
	hostObj, err := asObj(msg, hostVal)
	if err != nil {
		return m, err
	}
	if m.HostInfo, err = hostInfoFromObj(hostObj); err != nil {
		return m, err
	}
	if argsVal, ok := o.Extended.Get("ApplicationArguments"); ok {
		m.ApplicationArguments, err = applicationArgumentsFromValue(argsVal)
		if err != nil {
			return m, err
		}
	}
	return m, nil
}

// applicationArgumentsValue renders a PSPrimitiveDictionary-shaped container,
// or an explicit Nil primitive when args is empty (matching the original
// client's "no application arguments" behavior).
func applicationArgumentsValue(args map[string]psrpval.Value) psrpval.Value {
	if len(args) == 0 {
		return psrpval.FromPrimitive(psrpval.Nil())
	}
	o := newMsgObj("System.Management.Automation.PSPrimitiveDictionary", "System.Collections.Hashtable", "System.Object")
	entries := make([]psrpval.DictEntry, 0, len(args))
	for k, val := range args {
		entries = append(entries, psrpval.DictEntry{Key: psrpval.FromPrimitive(psrpval.String(k)), Val: val})
	}
	o.Content = psrpval.Content{Kind: psrpval.ContentContainer, Container: &psrpval.Container{Kind: psrpval.ContainerDictionary, Entries: entries}}
	return psrpval.FromObj(o)
}

func applicationArgumentsFromValue(v psrpval.Value) (map[string]psrpval.Value, error) {
	if v.Prim != nil && v.Prim.Tag == psrpval.TagNil {
		return nil, nil
	}
	o, err := asObj("ApplicationArguments", v)
	if err != nil {
		return nil, err
	}
	if o.Content.Kind != psrpval.ContentContainer || o.Content.Container == nil {
		return nil, fmt.Errorf("psrpmsg: ApplicationArguments: expected dictionary content")
	}
	out := make(map[string]psrpval.Value, len(o.Content.Container.Entries))
	for _, e := range o.Content.Container.Entries {
		if e.Key.Prim == nil {
			return nil, fmt.Errorf("psrpmsg: ApplicationArguments: non-string key")
		}
		out[e.Key.Prim.Str] = e.Val
	}
	return out, nil
}

// ConnectRunspacePool re-announces runspace bounds when reconnecting to an
// existing pool (encoded here for wire completeness; the reconnect workflow
// itself is out of scope).
type ConnectRunspacePool struct {
	MinRunspaces *int32
	MaxRunspaces *int32
}

func (m ConnectRunspacePool) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setOptI32(o.Extended, "MinRunspaces", m.MinRunspaces)
	setOptI32(o.Extended, "MaxRunspaces", m.MaxRunspaces)
	return o
}

func ConnectRunspacePoolFromValue(v psrpval.Value) (ConnectRunspacePool, error) {
	o, err := asObj("ConnectRunspacePool", v)
	if err != nil {
		return ConnectRunspacePool{}, err
	}
	return ConnectRunspacePool{
		MinRunspaces: getOptI32(o.Extended, "MinRunspaces"),
		MaxRunspaces: getOptI32(o.Extended, "MaxRunspaces"),
	}, nil
}

// ApplicationPrivateData carries server-defined key/value data delivered
// once negotiation succeeds; the client treats it opaquely.
type ApplicationPrivateData struct {
	Data map[string]psrpval.Value
}

func (m ApplicationPrivateData) ToObj() *psrpval.Obj {
	o := newMsgObj()
	o.Extended.Set("ApplicationPrivateData", applicationArgumentsValue(m.Data))
	return o
}

func ApplicationPrivateDataFromValue(v psrpval.Value) (ApplicationPrivateData, error) {
	const msg = "ApplicationPrivateData"
	o, err := asObj(msg, v)
	if err != nil {
		return ApplicationPrivateData{}, err
	}
	dataVal, ok := o.Extended.Get("ApplicationPrivateData")
	if !ok {
		return ApplicationPrivateData{}, nil
	}
	data, err := applicationArgumentsFromValue(dataVal)
	return ApplicationPrivateData{Data: data}, err
}

// RunspacePoolStateMessage reports a RunspacePoolState transition.
type RunspacePoolStateMessage struct {
	State           RunspacePoolState
	ErrorRecordData psrpval.Value // present only alongside Broken
}

func (m RunspacePoolStateMessage) ToObj() *psrpval.Obj {
	o := newMsgObj()
	o.Extended.Set("RunspaceState", psrpval.FromPrimitive(psrpval.I32(int32(m.State))))
	if m.ErrorRecordData.Prim != nil || m.ErrorRecordData.Obj != nil {
		o.Extended.Set("ExceptionAsErrorRecord", m.ErrorRecordData)
	}
	return o
}

func RunspacePoolStateMessageFromValue(v psrpval.Value) (RunspacePoolStateMessage, error) {
	const msg = "RunspacePoolState"
	o, err := asObj(msg, v)
	if err != nil {
		return RunspacePoolStateMessage{}, err
	}
	ordinal, err := getI32(o.Extended, msg, "RunspaceState")
	if err != nil {
		return RunspacePoolStateMessage{}, err
	}
	state := RunspacePoolState(ordinal)
	if state < RunspacePoolBeforeOpen || state > RunspacePoolDisconnected {
		return RunspacePoolStateMessage{}, &InvalidEnumOrdinalError{EnumType: "RunspacePoolState", Ordinal: int64(ordinal)}
	}
	m := RunspacePoolStateMessage{State: state}
	if ex, ok := o.Extended.Get("ExceptionAsErrorRecord"); ok {
		m.ErrorRecordData = ex
	}
	return m, nil
}

// ResetRunspaceState requests the server discard pipeline-scoped state and
// return the pool to a clean Opened baseline.
type ResetRunspaceState struct {
	CallID int64
}

func (m ResetRunspaceState) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setI64(o.Extended, "ciOBJ", m.CallID)
	return o
}

func ResetRunspaceStateFromValue(v psrpval.Value) (ResetRunspaceState, error) {
	o, err := asObj("ResetRunspaceState", v)
	if err != nil {
		return ResetRunspaceState{}, err
	}
	id, err := getI64(o.Extended, "ResetRunspaceState", "ciOBJ")
	return ResetRunspaceState{CallID: id}, err
}

// SetMaxRunspaces requests a new upper bound; the server replies with
// RunspaceAvailability carrying the call correlation id.
type SetMaxRunspaces struct {
	MaxRunspaces int32
	CallID       int64
}

func (m SetMaxRunspaces) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setI32(o.Extended, "MaxRunspaces", m.MaxRunspaces)
	setI64(o.Extended, "ci", m.CallID)
	return o
}

func SetMaxRunspacesFromValue(v psrpval.Value) (SetMaxRunspaces, error) {
	const msg = "SetMaxRunspaces"
	o, err := asObj(msg, v)
	if err != nil {
		return SetMaxRunspaces{}, err
	}
	var m SetMaxRunspaces
	var err2 error
	if m.MaxRunspaces, err2 = getI32(o.Extended, msg, "MaxRunspaces"); err2 != nil {
		return m, err2
	}
	m.CallID, err2 = getI64(o.Extended, msg, "ci")
	return m, err2
}

// SetMinRunspaces is SetMaxRunspaces's lower-bound counterpart.
type SetMinRunspaces struct {
	MinRunspaces int32
	CallID       int64
}

func (m SetMinRunspaces) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setI32(o.Extended, "MinRunspaces", m.MinRunspaces)
	setI64(o.Extended, "ci", m.CallID)
	return o
}

func SetMinRunspacesFromValue(v psrpval.Value) (SetMinRunspaces, error) {
	const msg = "SetMinRunspaces"
	o, err := asObj(msg, v)
	if err != nil {
		return SetMinRunspaces{}, err
	}
	var m SetMinRunspaces
	var err2 error
	if m.MinRunspaces, err2 = getI32(o.Extended, msg, "MinRunspaces"); err2 != nil {
		return m, err2
	}
	m.CallID, err2 = getI64(o.Extended, msg, "ci")
	return m, err2
}

// RunspaceAvailability answers GetAvailableRunspaces or a Set{Max,Min}Runspaces
// request; SetMaxRunspaces/SetMinRunspaces replies carry a bool success flag
// instead of a count, distinguished by the caller via CallID correlation.
type RunspaceAvailability struct {
	CallID      int64
	Count       *int64
	SetSucceeded *bool
}

func (m RunspaceAvailability) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setI64(o.Extended, "ci", m.CallID)
	switch {
	case m.Count != nil:
		o.Extended.Set("SetMaxMinRunspacesResponse", psrpval.FromPrimitive(psrpval.I64(*m.Count)))
	case m.SetSucceeded != nil:
		o.Extended.Set("SetMaxMinRunspacesResponse", psrpval.FromPrimitive(psrpval.Bool(*m.SetSucceeded)))
	}
	return o
}

func RunspaceAvailabilityFromValue(v psrpval.Value) (RunspaceAvailability, error) {
	const msg = "RunspaceAvailability"
	o, err := asObj(msg, v)
	if err != nil {
		return RunspaceAvailability{}, err
	}
	m := RunspaceAvailability{}
	if m.CallID, err = getI64(o.Extended, msg, "ci"); err != nil {
		return m, err
	}
	resp, ok := o.Extended.Get("SetMaxMinRunspacesResponse")
	if !ok {
		return m, &MissingPropertyError{Message: msg, Property: "SetMaxMinRunspacesResponse"}
	}
	if resp.Prim == nil {
		return m, &MissingPropertyError{Message: msg, Property: "SetMaxMinRunspacesResponse"}
	}
	switch resp.Prim.Tag {
	case psrpval.TagBool:
		b := resp.Prim.Bool
		m.SetSucceeded = &b
	default:
		c := resp.Prim.Int
		m.Count = &c
	}
	return m, nil
}

// GetAvailableRunspaces requests the pool's current available-runspace count.
type GetAvailableRunspaces struct {
	CallID int64
}

func (m GetAvailableRunspaces) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setI64(o.Extended, "ci", m.CallID)
	return o
}

func GetAvailableRunspacesFromValue(v psrpval.Value) (GetAvailableRunspaces, error) {
	o, err := asObj("GetAvailableRunspaces", v)
	if err != nil {
		return GetAvailableRunspaces{}, err
	}
	id, err := getI64(o.Extended, "GetAvailableRunspaces", "ci")
	return GetAvailableRunspaces{CallID: id}, err
}

// UserEvent carries an Register-EngineEvent-style notification from server
// to client.
type UserEvent struct {
	EventIdentifier  int32
	SourceIdentifier string
	TimeGenerated    string
	Sender           psrpval.Value
	SourceArgs       psrpval.Value
	MessageData      psrpval.Value
	ComputerName     string
	RunspaceID       uuid.UUID
}

func (m UserEvent) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setI32(o.Extended, "PSEventArgs.EventIdentifier", m.EventIdentifier)
	setStr(o.Extended, "PSEventArgs.SourceIdentifier", m.SourceIdentifier)
	setStr(o.Extended, "PSEventArgs.TimeGenerated", m.TimeGenerated)
	setValue(o.Extended, "PSEventArgs.Sender", m.Sender)
	setValue(o.Extended, "PSEventArgs.SourceArgs", m.SourceArgs)
	setValue(o.Extended, "PSEventArgs.MessageData", m.MessageData)
	setStr(o.Extended, "PSEventArgs.ComputerName", m.ComputerName)
	setGUID(o.Extended, "PSEventArgs.RunspaceId", m.RunspaceID)
	return o
}

func UserEventFromValue(v psrpval.Value) (UserEvent, error) {
	const msg = "UserEvent"
	o, err := asObj(msg, v)
	if err != nil {
		return UserEvent{}, err
	}
	var m UserEvent
	if m.EventIdentifier, err = getI32(o.Extended, msg, "PSEventArgs.EventIdentifier"); err != nil {
		return m, err
	}
	if m.SourceIdentifier, err = getStr(o.Extended, msg, "PSEventArgs.SourceIdentifier"); err != nil {
		return m, err
	}
	if m.TimeGenerated, err = getStr(o.Extended, msg, "PSEventArgs.TimeGenerated"); err != nil {
		return m, err
	}
	m.Sender, _ = o.Extended.Get("PSEventArgs.Sender")
	m.SourceArgs, _ = o.Extended.Get("PSEventArgs.SourceArgs")
	m.MessageData, _ = o.Extended.Get("PSEventArgs.MessageData")
	if m.ComputerName, err = getStr(o.Extended, msg, "PSEventArgs.ComputerName"); err != nil {
		return m, err
	}
	if m.RunspaceID, err = getGUID(o.Extended, msg, "PSEventArgs.RunspaceId"); err != nil {
		return m, err
	}
	return m, nil
}

// PublicKey, EncryptedSessionKey and PublicKeyRequest are encoded for wire
// completeness; the session-key exchange crypto flow is a documented
// extension point, not exercised end-to-end (§9 open question iii).

// PublicKey carries the client's RSA public key as base64 DER.
type PublicKey struct {
	KeyDER []byte
}

func (m PublicKey) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setBytes(o.Extended, "PublicKey", m.KeyDER)
	return o
}

func PublicKeyFromValue(v psrpval.Value) (PublicKey, error) {
	o, err := asObj("PublicKey", v)
	if err != nil {
		return PublicKey{}, err
	}
	der, err := getBytes(o.Extended, "PublicKey", "PublicKey")
	return PublicKey{KeyDER: der}, err
}

// EncryptedSessionKey carries the server's AES session key, RSA-encrypted
// with the client's public key and base64-encoded.
type EncryptedSessionKey struct {
	Encrypted []byte
}

func (m EncryptedSessionKey) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setBytes(o.Extended, "EncryptedSessionKey", m.Encrypted)
	return o
}

func EncryptedSessionKeyFromValue(v psrpval.Value) (EncryptedSessionKey, error) {
	o, err := asObj("EncryptedSessionKey", v)
	if err != nil {
		return EncryptedSessionKey{}, err
	}
	b, err := getBytes(o.Extended, "EncryptedSessionKey", "EncryptedSessionKey")
	return EncryptedSessionKey{Encrypted: b}, err
}

// PublicKeyRequest is an empty message: the server asking the client to send
// PublicKey so it can encrypt SecureString payloads.
type PublicKeyRequest struct{}

func (m PublicKeyRequest) ToObj() *psrpval.Obj { return newMsgObj() }

func PublicKeyRequestFromValue(v psrpval.Value) (PublicKeyRequest, error) {
	if _, err := asObj("PublicKeyRequest", v); err != nil {
		return PublicKeyRequest{}, err
	}
	return PublicKeyRequest{}, nil
}

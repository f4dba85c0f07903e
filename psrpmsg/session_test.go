package psrpmsg

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oleiade/psrp/psrpval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCapabilityRoundTrip(t *testing.T) {
	sc := SessionCapability{PSVersion: "5.1", ProtocolVersion: "2.3", SerializationVersion: "1.1.0.1"}
	got := roundTripVal(t, psrpval.FromObj(sc.ToObj()))
	out, err := SessionCapabilityFromValue(got)
	require.NoError(t, err)
	assert.Equal(t, sc, out)
}

func TestInitRunspacePoolRoundTrip(t *testing.T) {
	irp := InitRunspacePool{
		MinRunspaces: 1,
		MaxRunspaces: 1,
		HostInfo:     HostInfoAllNull(),
	}
	got := roundTripVal(t, psrpval.FromObj(irp.ToObj()))
	out, err := InitRunspacePoolFromValue(got)
	require.NoError(t, err)
	assert.Equal(t, int32(1), out.MinRunspaces)
	assert.Equal(t, int32(1), out.MaxRunspaces)
	assert.Nil(t, out.ApplicationArguments)
	assert.True(t, out.HostInfo.UseRunspaceHost)
}

func TestInitRunspacePoolWithApplicationArguments(t *testing.T) {
	irp := InitRunspacePool{
		MinRunspaces: 1,
		MaxRunspaces: 5,
		HostInfo:     HostInfoAllNull(),
		ApplicationArguments: map[string]psrpval.Value{
			"PSVersionTable": psrpval.FromPrimitive(psrpval.String("5.1.19041.1")),
		},
	}
	got := roundTripVal(t, psrpval.FromObj(irp.ToObj()))
	out, err := InitRunspacePoolFromValue(got)
	require.NoError(t, err)
	require.NotNil(t, out.ApplicationArguments)
	assert.Equal(t, "5.1.19041.1", out.ApplicationArguments["PSVersionTable"].Prim.Str)
}

func TestRunspacePoolStateMessageRoundTrip(t *testing.T) {
	msg := RunspacePoolStateMessage{State: RunspacePoolOpened}
	got := roundTripVal(t, psrpval.FromObj(msg.ToObj()))
	out, err := RunspacePoolStateMessageFromValue(got)
	require.NoError(t, err)
	assert.Equal(t, RunspacePoolOpened, out.State)
	assert.False(t, out.State.Terminal())
}

func TestRunspacePoolStateMessageInvalidOrdinal(t *testing.T) {
	o := newMsgObj()
	o.Extended.Set("RunspaceState", psrpval.FromPrimitive(psrpval.I32(999)))
	_, err := RunspacePoolStateMessageFromValue(psrpval.FromObj(o))
	require.Error(t, err)
}

func TestRunspaceAvailabilityCountRoundTrip(t *testing.T) {
	count := int64(3)
	ra := RunspaceAvailability{CallID: 7, Count: &count}
	got := roundTripVal(t, psrpval.FromObj(ra.ToObj()))
	out, err := RunspaceAvailabilityFromValue(got)
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.CallID)
	require.NotNil(t, out.Count)
	assert.Equal(t, int64(3), *out.Count)
	assert.Nil(t, out.SetSucceeded)
}

func TestRunspaceAvailabilitySetSucceededRoundTrip(t *testing.T) {
	succeeded := true
	ra := RunspaceAvailability{CallID: 9, SetSucceeded: &succeeded}
	got := roundTripVal(t, psrpval.FromObj(ra.ToObj()))
	out, err := RunspaceAvailabilityFromValue(got)
	require.NoError(t, err)
	require.NotNil(t, out.SetSucceeded)
	assert.True(t, *out.SetSucceeded)
	assert.Nil(t, out.Count)
}

func TestSetMaxMinRunspacesRoundTrip(t *testing.T) {
	smax := SetMaxRunspaces{MaxRunspaces: 10, CallID: 1}
	got := roundTripVal(t, psrpval.FromObj(smax.ToObj()))
	outMax, err := SetMaxRunspacesFromValue(got)
	require.NoError(t, err)
	assert.Equal(t, int32(10), outMax.MaxRunspaces)
	assert.Equal(t, int64(1), outMax.CallID)

	smin := SetMinRunspaces{MinRunspaces: 2, CallID: 2}
	got2 := roundTripVal(t, psrpval.FromObj(smin.ToObj()))
	outMin, err := SetMinRunspacesFromValue(got2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), outMin.MinRunspaces)
	assert.Equal(t, int64(2), outMin.CallID)
}

func TestUserEventRoundTrip(t *testing.T) {
	rsID := uuid.New()
	ue := UserEvent{
		EventIdentifier:  1,
		SourceIdentifier: "MyEvent",
		TimeGenerated:    "2026-07-30T00:00:00Z",
		Sender:           psrpval.FromPrimitive(psrpval.Nil()),
		SourceArgs:       psrpval.FromPrimitive(psrpval.Nil()),
		MessageData:      psrpval.FromPrimitive(psrpval.String("payload")),
		ComputerName:     "HOST1",
		RunspaceID:       rsID,
	}
	got := roundTripVal(t, psrpval.FromObj(ue.ToObj()))
	out, err := UserEventFromValue(got)
	require.NoError(t, err)
	assert.Equal(t, "MyEvent", out.SourceIdentifier)
	assert.Equal(t, "payload", out.MessageData.Prim.Str)
	assert.Equal(t, rsID, out.RunspaceID)
}

func TestPublicKeyExchangeRoundTrip(t *testing.T) {
	pk := PublicKey{KeyDER: []byte{0x30, 0x82, 0x01}}
	got := roundTripVal(t, psrpval.FromObj(pk.ToObj()))
	outPK, err := PublicKeyFromValue(got)
	require.NoError(t, err)
	assert.Equal(t, pk.KeyDER, outPK.KeyDER)

	esk := EncryptedSessionKey{Encrypted: []byte{1, 2, 3, 4}}
	got2 := roundTripVal(t, psrpval.FromObj(esk.ToObj()))
	outESK, err := EncryptedSessionKeyFromValue(got2)
	require.NoError(t, err)
	assert.Equal(t, esk.Encrypted, outESK.Encrypted)

	got3 := roundTripVal(t, psrpval.FromObj(PublicKeyRequest{}.ToObj()))
	_, err = PublicKeyRequestFromValue(got3)
	require.NoError(t, err)
}

func TestApplicationPrivateDataRoundTrip(t *testing.T) {
	apd := ApplicationPrivateData{Data: map[string]psrpval.Value{
		"ApplicationVersion": psrpval.FromPrimitive(psrpval.Version("2.3")),
	}}
	got := roundTripVal(t, psrpval.FromObj(apd.ToObj()))
	out, err := ApplicationPrivateDataFromValue(got)
	require.NoError(t, err)
	require.Contains(t, out.Data, "ApplicationVersion")
}

package psrpmsg

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oleiade/psrp/psrpval"
	"github.com/oleiade/psrp/xmltree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTripMsg(t *testing.T, msg *Message) *Message {
	t.Helper()
	data, err := msg.Encode()
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	return got
}

// roundTripVal serializes v to CLI-XML and parses it back, exercising the
// same codec path a message's payload travels without the envelope header.
func roundTripVal(t *testing.T, v psrpval.Value) psrpval.Value {
	t.Helper()
	el, err := psrpval.Serialize(v)
	require.NoError(t, err)
	out, err := xmltree.Write(el)
	require.NoError(t, err)
	parsed, err := xmltree.Parse(out)
	require.NoError(t, err)
	got, err := psrpval.Deserialize(parsed)
	require.NoError(t, err)
	return got
}

func TestMessageEnvelopeRoundTrip(t *testing.T) {
	rs := uuid.New()
	pl := uuid.New()
	msg := &Message{
		Destination: DestinationServer,
		Type:        SessionCapabilityMsg,
		RunspaceID:  rs,
		PipelineID:  pl,
		Payload: psrpval.FromObj(SessionCapability{
			PSVersion:            "5.1.19041.1",
			ProtocolVersion:      "2.3",
			SerializationVersion: "1.1.0.1",
		}.ToObj()),
	}
	got := roundTripMsg(t, msg)
	assert.Equal(t, DestinationServer, got.Destination)
	assert.Equal(t, SessionCapabilityMsg, got.Type)
	assert.Equal(t, rs, got.RunspaceID)
	assert.Equal(t, pl, got.PipelineID)

	decoded, err := SessionCapabilityFromValue(got.Payload)
	require.NoError(t, err)
	assert.Equal(t, "5.1.19041.1", decoded.PSVersion)
	assert.Equal(t, "2.3", decoded.ProtocolVersion)
}

func TestMessageEnvelopeZeroPipelineID(t *testing.T) {
	msg := &Message{
		Destination: DestinationClient,
		Type:        RunspacePoolStateMsg,
		RunspaceID:  uuid.New(),
		Payload:     psrpval.FromObj(RunspacePoolStateMessage{State: RunspacePoolOpened}.ToObj()),
	}
	got := roundTripMsg(t, msg)
	assert.Equal(t, uuid.UUID{}, got.PipelineID)
}

func TestDecodeTruncatedHeader(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	require.Error(t, err)
	var truncErr *TruncatedHeaderError
	require.ErrorAs(t, err, &truncErr)
}

func TestNetGUIDByteReversal(t *testing.T) {
	id := uuid.MustParse("01020304-0506-0708-090a-0b0c0d0e0f10")
	net := netGUIDBytes(id)
	// time_low reversed
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, net[0:4])
	// time_mid reversed
	assert.Equal(t, []byte{0x06, 0x05}, net[4:6])
	// time_hi_and_version reversed
	assert.Equal(t, []byte{0x08, 0x07}, net[6:8])
	// trailing bytes unchanged
	assert.Equal(t, []byte{0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}, net[8:16])

	back := guidFromNetBytes(net)
	assert.Equal(t, id, back)
}

func TestMessageTypeKnown(t *testing.T) {
	assert.True(t, CreatePipelineMsg.Known())
	assert.False(t, MessageType(0xDEADBEEF).Known())
	assert.Equal(t, "CreatePipeline", CreatePipelineMsg.String())
}

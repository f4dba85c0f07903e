// Package psrpmsg implements the PSRP message layer: the typed envelope that
// carries a CLI-XML payload between a runspace pool and its pipelines, and
// the strongly typed structs for every message_type in the §6 table.
package psrpmsg

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/oleiade/psrp/psrpval"
	"github.com/oleiade/psrp/xmltree"
)

// Destination identifies the sender/intended-recipient side of a message.
type Destination uint32

const (
	DestinationClient Destination = 0x00000001
	DestinationServer Destination = 0x00000002
)

func (d Destination) String() string {
	switch d {
	case DestinationClient:
		return "Client"
	case DestinationServer:
		return "Server"
	default:
		return fmt.Sprintf("Destination(0x%08X)", uint32(d))
	}
}

// headerLen is the fixed size of the PSRP message header preceding the
// UTF-8 CLI-XML body.
const headerLen = 4 + 4 + 16 + 16

// Message is the PSRP wire envelope: a typed header plus a single top-level
// CLI-XML value.
type Message struct {
	Destination Destination
	Type        MessageType
	RunspaceID  uuid.UUID
	PipelineID  uuid.UUID // zero value when absent
	Payload     psrpval.Value
}

// Encode renders m as header bytes followed by its UTF-8 CLI-XML body.
func (m *Message) Encode() ([]byte, error) {
	el, err := psrpval.Serialize(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("psrpmsg: encode %s: %w", m.Type, err)
	}
	body, err := xmltree.Write(el)
	if err != nil {
		return nil, fmt.Errorf("psrpmsg: encode %s: %w", m.Type, err)
	}

	out := make([]byte, headerLen+len(body))
	binary.LittleEndian.PutUint32(out[0:4], uint32(m.Destination))
	binary.LittleEndian.PutUint32(out[4:8], uint32(m.Type))
	rs := netGUIDBytes(m.RunspaceID)
	copy(out[8:24], rs[:])
	pl := netGUIDBytes(m.PipelineID)
	copy(out[24:40], pl[:])
	copy(out[headerLen:], body)
	return out, nil
}

// Decode parses the header and CLI-XML body of a single reassembled PSRP
// message.
func Decode(data []byte) (*Message, error) {
	if len(data) < headerLen {
		return nil, &TruncatedHeaderError{Len: len(data)}
	}

	m := &Message{
		Destination: Destination(binary.LittleEndian.Uint32(data[0:4])),
		Type:        MessageType(binary.LittleEndian.Uint32(data[4:8])),
	}
	var rs, pl [16]byte
	copy(rs[:], data[8:24])
	copy(pl[:], data[24:40])
	m.RunspaceID = guidFromNetBytes(rs)
	m.PipelineID = guidFromNetBytes(pl)

	el, err := xmltree.Parse(data[headerLen:])
	if err != nil {
		return nil, fmt.Errorf("psrpmsg: decode %s: %w", m.Type, err)
	}
	v, err := psrpval.Deserialize(el)
	if err != nil {
		return nil, fmt.Errorf("psrpmsg: decode %s: %w", m.Type, err)
	}
	m.Payload = v
	return m, nil
}

// Package fragment implements the PSRP fragmentation layer: the
// variable-size binary framing that splits a serialized PSRP message across
// WS-Management envelope boundaries and reassembles it on the far side,
// tolerating interleaving across multiple concurrent objects.
package fragment

import (
	"encoding/binary"
)

// headerLen is the fixed size of a fragment header preceding its payload.
const headerLen = 8 + 8 + 1 + 4

const (
	flagStart byte = 1 << 0
	flagEnd   byte = 1 << 1
)

// Fragment is the atomic unit of PSRP wire framing. Multiple fragments can
// belong to different ObjectIDs and be arbitrarily interleaved on the wire;
// ObjectID is monotonic within a sender.
type Fragment struct {
	ObjectID   uint64
	FragmentID uint64
	Start      bool
	End        bool
	Payload    []byte
}

// Encode renders f as its 21-byte big-endian header followed by Payload.
func (f Fragment) Encode() []byte {
	out := make([]byte, headerLen+len(f.Payload))
	binary.BigEndian.PutUint64(out[0:8], f.ObjectID)
	binary.BigEndian.PutUint64(out[8:16], f.FragmentID)
	var flags byte
	if f.Start {
		flags |= flagStart
	}
	if f.End {
		flags |= flagEnd
	}
	out[16] = flags
	binary.BigEndian.PutUint32(out[17:21], uint32(len(f.Payload)))
	copy(out[headerLen:], f.Payload)
	return out
}

// decodeOne parses a single fragment from the front of data, returning the
// fragment and the number of bytes it consumed.
func decodeOne(data []byte) (Fragment, int, error) {
	if len(data) < headerLen {
		return Fragment{}, 0, &TruncatedHeaderError{Len: len(data)}
	}
	objectID := binary.BigEndian.Uint64(data[0:8])
	fragmentID := binary.BigEndian.Uint64(data[8:16])
	flags := data[16]
	payloadLen := binary.BigEndian.Uint32(data[17:21])
	end := headerLen + int(payloadLen)
	if end > len(data) {
		return Fragment{}, 0, &TruncatedPayloadError{ObjectID: objectID, FragmentID: fragmentID, Want: int(payloadLen), Have: len(data) - headerLen}
	}
	f := Fragment{
		ObjectID:   objectID,
		FragmentID: fragmentID,
		Start:      flags&flagStart != 0,
		End:        flags&flagEnd != 0,
		Payload:    data[headerLen:end],
	}
	return f, end, nil
}

// Fragmenter splits a serialized message into a sequence of fragments no
// larger than MaxSize each, assigning successive ObjectIDs to successive
// calls to Fragment.
type Fragmenter struct {
	MaxSize int
	nextID  uint64
}

// NewFragmenter returns a Fragmenter bounding each fragment's total encoded
// size (header + payload) to maxSize. A maxSize of 21 bytes (the header
// length) or less leaves no room for payload; Fragment then emits the whole
// body as one fragment, whatever its size.
func NewFragmenter(maxSize int) *Fragmenter {
	return &Fragmenter{MaxSize: maxSize}
}

// Fragment splits body into one or more Fragments under a freshly allocated
// ObjectID, returning their wire-encoded bytes in order.
func (fr *Fragmenter) Fragment(body []byte) [][]byte {
	objectID := fr.nextID
	fr.nextID++

	chunkSize := fr.MaxSize - headerLen
	if chunkSize <= 0 {
		chunkSize = len(body)
		if chunkSize == 0 {
			chunkSize = 1
		}
	}

	if len(body) == 0 {
		return [][]byte{Fragment{ObjectID: objectID, FragmentID: 0, Start: true, End: true}.Encode()}
	}

	var out [][]byte
	var fragmentID uint64
	for offset := 0; offset < len(body); offset += chunkSize {
		last := offset+chunkSize >= len(body)
		end := offset + chunkSize
		if end > len(body) {
			end = len(body)
		}
		f := Fragment{
			ObjectID:   objectID,
			FragmentID: fragmentID,
			Start:      fragmentID == 0,
			End:        last,
			Payload:    body[offset:end],
		}
		out = append(out, f.Encode())
		fragmentID++
	}
	return out
}

// Group concatenates consecutive fragment byte strings into one network
// payload, as long as the combined size does not exceed maxSize; it never
// splits an individual fragment across groups.
func Group(fragments [][]byte, maxSize int) [][]byte {
	var groups [][]byte
	var current []byte
	for _, f := range fragments {
		if len(current) > 0 && len(current)+len(f) > maxSize {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, f...)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

type objectBuffer struct {
	buf     []byte
	nextID  uint64
	started bool
}

// Defragmenter reassembles an opaque byte stream — one WS-Management
// stream's base64-decoded content — back into complete message bodies,
// tracking per-ObjectID reassembly state across arbitrarily many Feed calls.
type Defragmenter struct {
	objects map[uint64]*objectBuffer

	// pending holds bytes left over from the previous Feed call that did not
	// amount to a full fragment header+payload yet.
	pending []byte
}

// NewDefragmenter returns an empty Defragmenter.
func NewDefragmenter() *Defragmenter {
	return &Defragmenter{objects: make(map[uint64]*objectBuffer)}
}

// PendingCount reports the number of objects with an open, incomplete
// reassembly buffer.
func (d *Defragmenter) PendingCount() int { return len(d.objects) }

// Feed consumes every fragment encoded back-to-back in data — a single
// fragment, several fragments of one object, or fragments of several
// interleaved objects — and returns the reassembled message body for every
// object whose fragment sequence completes (End=true) during this call, in
// completion order. data may be a partial fragment; Feed does not require
// chunk boundaries to align with fragment boundaries.
func (d *Defragmenter) Feed(data []byte) ([][]byte, error) {
	if len(d.pending) > 0 {
		data = append(d.pending, data...)
		d.pending = nil
	}

	var completed [][]byte
	for len(data) > 0 {
		f, n, err := decodeOne(data)
		if err != nil {
			switch err.(type) {
			case *TruncatedHeaderError, *TruncatedPayloadError:
				// Not enough bytes yet to decode the next fragment; keep
				// them and wait for the rest on a later Feed call.
				d.pending = append([]byte(nil), data...)
				return completed, nil
			default:
				return completed, err
			}
		}
		data = data[n:]

		ob, exists := d.objects[f.ObjectID]
		if f.FragmentID == 0 {
			if !f.Start {
				return completed, &MissingStartError{ObjectID: f.ObjectID}
			}
			if exists {
				return completed, &DuplicateFragmentError{ObjectID: f.ObjectID, FragmentID: f.FragmentID}
			}
			ob = &objectBuffer{started: true}
			d.objects[f.ObjectID] = ob
		} else {
			if !exists {
				return completed, &OutOfOrderError{ObjectID: f.ObjectID, FragmentID: f.FragmentID, Expected: 0}
			}
			if f.FragmentID < ob.nextID {
				return completed, &DuplicateFragmentError{ObjectID: f.ObjectID, FragmentID: f.FragmentID}
			}
			if f.FragmentID != ob.nextID {
				return completed, &OutOfOrderError{ObjectID: f.ObjectID, FragmentID: f.FragmentID, Expected: ob.nextID}
			}
		}

		ob.buf = append(ob.buf, f.Payload...)
		ob.nextID = f.FragmentID + 1

		if f.End {
			completed = append(completed, ob.buf)
			delete(d.objects, f.ObjectID)
		}
	}
	return completed, nil
}

package fragment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip fragments body under a fresh Fragmenter/Defragmenter pair and
// returns whatever the Defragmenter reassembles.
func roundTrip(t *testing.T, body []byte, maxSize int) [][]byte {
	t.Helper()
	fr := NewFragmenter(maxSize)
	chunks := fr.Fragment(body)

	var wire []byte
	for _, c := range chunks {
		wire = append(wire, c...)
	}

	df := NewDefragmenter()
	out, err := df.Feed(wire)
	require.NoError(t, err)
	assert.Equal(t, 0, df.PendingCount())
	return out
}

func TestFragmentDefragmentRoundTripSingleMessage(t *testing.T) {
	body := []byte("a small negotiation payload")
	out := roundTrip(t, body, 4096)
	require.Len(t, out, 1)
	assert.Equal(t, body, out[0])
}

func TestFragmentDefragmentRoundTripLargeMessage(t *testing.T) {
	body := []byte(strings.Repeat("x", 20000))
	fr := NewFragmenter(5000)
	chunks := fr.Fragment(body)
	require.GreaterOrEqual(t, len(chunks), 5)

	for i, c := range chunks {
		f, n, err := decodeOne(c)
		require.NoError(t, err)
		assert.Equal(t, len(c), n)
		assert.Equal(t, i == 0, f.Start)
		assert.Equal(t, i == len(chunks)-1, f.End)
	}

	var wire []byte
	for _, c := range chunks {
		wire = append(wire, c...)
	}
	df := NewDefragmenter()
	out, err := df.Feed(wire)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, body, out[0])
}

// TestOrderedSequencePreserved exercises invariant 3: a sequence of messages
// fragmented and concatenated reassembles in the same order.
func TestOrderedSequencePreserved(t *testing.T) {
	fr := NewFragmenter(16)
	msgs := [][]byte{[]byte("first message"), []byte("second message"), []byte("third")}

	var wire []byte
	for _, m := range msgs {
		for _, c := range fr.Fragment(m) {
			wire = append(wire, c...)
		}
	}

	df := NewDefragmenter()
	out, err := df.Feed(wire)
	require.NoError(t, err)
	require.Len(t, out, len(msgs))
	for i, m := range msgs {
		assert.Equal(t, m, out[i])
	}
}

// TestChunkAdditivity exercises invariant 4: splitting the wire stream at
// arbitrary byte boundaries and feeding chunk-by-chunk must not change the
// result versus feeding it all at once.
func TestChunkAdditivity(t *testing.T) {
	fr := NewFragmenter(40)
	body := []byte(strings.Repeat("chunked payload data ", 10))
	chunks := fr.Fragment(body)
	require.Greater(t, len(chunks), 1, "fixture must force genuine multi-fragment splitting")

	var wire []byte
	for _, c := range chunks {
		wire = append(wire, c...)
	}

	for _, splitAt := range []int{1, 3, 7, 13, len(wire) / 2, len(wire) - 1} {
		if splitAt <= 0 || splitAt >= len(wire) {
			continue
		}
		df := NewDefragmenter()
		first, err := df.Feed(wire[:splitAt])
		require.NoError(t, err)
		assert.Empty(t, first)
		second, err := df.Feed(wire[splitAt:])
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.Equal(t, body, second[0])
		assert.Equal(t, 0, df.PendingCount())
	}
}

// TestInterleavedObjectsComplete exercises invariant 5 and scenario S3: two
// interleaved objects, each with monotone fragment_ids, complete
// independently with no cross-contamination and no leftover pending state.
func TestInterleavedObjectsComplete(t *testing.T) {
	obj1a := Fragment{ObjectID: 1, FragmentID: 0, Start: true, Payload: []byte("one-")}.Encode()
	obj2a := Fragment{ObjectID: 2, FragmentID: 0, Start: true, Payload: []byte("two-")}.Encode()
	obj1b := Fragment{ObjectID: 1, FragmentID: 1, End: true, Payload: []byte("a")}.Encode()
	obj2b := Fragment{ObjectID: 2, FragmentID: 1, End: true, Payload: []byte("b")}.Encode()

	df := NewDefragmenter()

	out, err := df.Feed(obj1a)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, df.PendingCount())

	out, err = df.Feed(obj2a)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 2, df.PendingCount())

	out, err = df.Feed(obj1b)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []byte("one-a"), out[0])
	assert.Equal(t, 1, df.PendingCount())

	out, err = df.Feed(obj2b)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []byte("two-b"), out[0])
	assert.Equal(t, 0, df.PendingCount())
}

// TestTruncatedHeaderBuffered exercises scenario S4: fewer than 21 bytes is
// buffered rather than rejected, and completes once the rest of the header
// and payload arrive on a later Feed call.
func TestTruncatedHeaderBuffered(t *testing.T) {
	f := Fragment{ObjectID: 1, FragmentID: 0, Start: true, End: true, Payload: []byte("hi")}
	wire := f.Encode()

	df := NewDefragmenter()
	out, err := df.Feed(wire[:10])
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, df.PendingCount())

	out, err = df.Feed(wire[10:])
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []byte("hi"), out[0])
}

// TestTruncatedPayloadBuffered is TestTruncatedHeaderBuffered's counterpart
// for a split landing after the header but before the full payload.
func TestTruncatedPayloadBuffered(t *testing.T) {
	f := Fragment{ObjectID: 1, FragmentID: 0, Start: true, End: true, Payload: []byte("hello world")}
	wire := f.Encode()

	df := NewDefragmenter()
	out, err := df.Feed(wire[:len(wire)-3])
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = df.Feed(wire[len(wire)-3:])
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []byte("hello world"), out[0])
}

func TestMissingStartRejected(t *testing.T) {
	f := Fragment{ObjectID: 1, FragmentID: 0, Start: false, Payload: []byte("x")}
	df := NewDefragmenter()
	_, err := df.Feed(f.Encode())
	require.Error(t, err)
	var missing *MissingStartError
	require.ErrorAs(t, err, &missing)
}

func TestOutOfOrderFragmentRejected(t *testing.T) {
	start := Fragment{ObjectID: 1, FragmentID: 0, Start: true, Payload: []byte("a")}.Encode()
	skip := Fragment{ObjectID: 1, FragmentID: 2, End: true, Payload: []byte("c")}.Encode()

	df := NewDefragmenter()
	_, err := df.Feed(start)
	require.NoError(t, err)

	_, err = df.Feed(skip)
	require.Error(t, err)
	var outOfOrder *OutOfOrderError
	require.ErrorAs(t, err, &outOfOrder)
}

func TestDuplicateFragmentRejected(t *testing.T) {
	start := Fragment{ObjectID: 1, FragmentID: 0, Start: true, Payload: []byte("a")}.Encode()

	df := NewDefragmenter()
	_, err := df.Feed(start)
	require.NoError(t, err)

	_, err = df.Feed(start)
	require.Error(t, err)
	var dup *DuplicateFragmentError
	require.ErrorAs(t, err, &dup)
}

// TestGroupKeepsUnderMaxSize exercises the grouping helper used when packing
// several small fragments into one WS-Management Send body.
func TestGroupKeepsUnderMaxSize(t *testing.T) {
	fr := NewFragmenter(4096)
	a := fr.Fragment([]byte("negotiation one"))
	b := fr.Fragment([]byte("negotiation two"))

	groups := Group(append(a, b...), 4096)
	require.Len(t, groups, 1)

	df := NewDefragmenter()
	out, err := df.Feed(groups[0])
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []byte("negotiation one"), out[0])
	assert.Equal(t, []byte("negotiation two"), out[1])
}

// TestScenarioS1NegotiationRoundTrip mirrors the spec's negotiation
// round-trip scenario: two single-fragment messages packed into one wire
// payload under a fixed max envelope size.
func TestScenarioS1NegotiationRoundTrip(t *testing.T) {
	const maxEnvelope = 143600
	fr := NewFragmenter(maxEnvelope)

	sessionCapability := []byte("<Obj RefId=\"0\">session capability payload</Obj>")
	initRunspacePool := []byte("<Obj RefId=\"0\">init runspace pool payload</Obj>")

	chunksA := fr.Fragment(sessionCapability)
	chunksB := fr.Fragment(initRunspacePool)
	require.Len(t, chunksA, 1)
	require.Len(t, chunksB, 1)

	var wire []byte
	wire = append(wire, chunksA[0]...)
	wire = append(wire, chunksB[0]...)

	df := NewDefragmenter()
	out, err := df.Feed(wire)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, sessionCapability, out[0])
	assert.Equal(t, initRunspacePool, out[1])
}

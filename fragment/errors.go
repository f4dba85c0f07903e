package fragment

import "fmt"

// TruncatedHeaderError reports a byte stream shorter than one fragment
// header, so not even object_id/fragment_id/flags/payload_len could be read.
type TruncatedHeaderError struct {
	Len int
}

func (e *TruncatedHeaderError) Error() string {
	return fmt.Sprintf("fragment: truncated header: got %d bytes, need %d", e.Len, headerLen)
}

// TruncatedPayloadError reports a header whose declared payload_len runs
// past the end of the supplied bytes.
type TruncatedPayloadError struct {
	ObjectID   uint64
	FragmentID uint64
	Want       int
	Have       int
}

func (e *TruncatedPayloadError) Error() string {
	return fmt.Sprintf("fragment: truncated payload for object %d fragment %d: want %d bytes, have %d", e.ObjectID, e.FragmentID, e.Want, e.Have)
}

// MissingStartError reports a fragment_id=0 fragment whose start flag is not
// set.
type MissingStartError struct {
	ObjectID uint64
}

func (e *MissingStartError) Error() string {
	return fmt.Sprintf("fragment: missing start fragment for object %d", e.ObjectID)
}

// OutOfOrderError reports a fragment whose fragment_id does not match the
// next one expected for its object_id's reassembly buffer. A fragment_id>0
// fragment arriving with no open buffer for its object_id is reported this
// way too, with Expected 0.
type OutOfOrderError struct {
	ObjectID   uint64
	FragmentID uint64
	Expected   uint64
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("fragment: out-of-order fragment for object %d: got %d, expected %d", e.ObjectID, e.FragmentID, e.Expected)
}

// DuplicateFragmentError reports a fragment_id already consumed for its
// object_id: a fragment_id=0 fragment arriving while a buffer is already
// open, or a fragment_id less than the next expected one.
type DuplicateFragmentError struct {
	ObjectID   uint64
	FragmentID uint64
}

func (e *DuplicateFragmentError) Error() string {
	return fmt.Sprintf("fragment: duplicate fragment %d for object %d", e.FragmentID, e.ObjectID)
}

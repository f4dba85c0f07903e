package psrpmsg

import "github.com/google/uuid"

// netGUIDBytes renders u in the little-endian .NET Guid wire layout used by
// the PSRP message header: the first three fields (time_low, time_mid,
// time_hi_and_version) are byte-reversed relative to RFC 4122's big-endian
// textual form; the trailing clock-sequence and node bytes are unchanged.
func netGUIDBytes(u uuid.UUID) [16]byte {
	var out [16]byte
	out[0], out[1], out[2], out[3] = u[3], u[2], u[1], u[0]
	out[4], out[5] = u[5], u[4]
	out[6], out[7] = u[7], u[6]
	copy(out[8:], u[8:])
	return out
}

// guidFromNetBytes reverses netGUIDBytes.
func guidFromNetBytes(b [16]byte) uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:])
	return u
}

package utils

import (
	"encoding/binary"
)

// AppendUint64 appends a uint64 to the buffer in big-endian order.
// Big-endian keeps numerically ordered values byte-ordered, which the
// report store relies on for its epoch-keyed iteration.
func AppendUint64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

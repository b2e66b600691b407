package varint

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxLen is the longest canonical encoding of a uint32.
const MaxLen = 5

// Size returns the number of bytes Encode(v) produces.
func Size(v uint32) int {
	return protowire.SizeVarint(uint64(v))
}

// Append appends the canonical encoding of v to dst.
func Append(dst []byte, v uint32) []byte {
	return protowire.AppendVarint(dst, uint64(v))
}

// Encode returns the canonical encoding of v.
func Encode(v uint32) []byte {
	return Append(make([]byte, 0, Size(v)), v)
}

// Decode reads a length prefix from the start of b.
//
// The returned n is the number of bytes consumed when n > 0. A value of
// n == 0 means b does not yet contain a complete varint (it is empty, or the
// continuation bit is still set on its last byte). A negative n means the
// prefix can never become valid: it runs longer than MaxLen bytes or its
// value does not fit into 32 bits.
func Decode(b []byte) (v uint32, n int) {
	if len(b) > MaxLen {
		b = b[:MaxLen]
	}

	value, n := protowire.ConsumeVarint(b)
	if n < 0 {
		// protowire only reports overflow after ten bytes, so any failure
		// below MaxLen is a truncated prefix
		if len(b) < MaxLen {
			return 0, 0
		}
		return 0, -1
	}

	if value > math.MaxUint32 {
		return 0, -1
	}
	return uint32(value), n
}

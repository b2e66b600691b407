package framer

import "github.com/ValentinKolb/glidecore/lib/varint"

// AppendFrame appends body prefixed with its varint length to dst
func AppendFrame(dst, body []byte) []byte {
	dst = varint.Append(dst, uint32(len(body)))
	return append(dst, body...)
}

// FrameSize returns the encoded size of a frame carrying a body of n bytes
func FrameSize(n int) int {
	return varint.Size(uint32(n)) + n
}

// Package varint implements the length prefix codec used by the request
// framing protocol. Lengths are unsigned 32-bit integers written as
// little-endian base-128 groups (LEB128), seven payload bits per byte with
// the high bit set on every byte except the last.
//
// The codec is a thin layer over google.golang.org/protobuf/encoding/protowire
// so that frame prefixes and the protobuf bodies they announce share one
// varint implementation.
//
// Key Components:
//
//   - Decode: reads a prefix from the head of a partially filled buffer and
//     distinguishes "complete", "needs more bytes" and "corrupt" without
//     ever panicking on truncated input.
//
//   - Encode / Append / Size: canonical minimal-length encoding. Decoding any
//     value produced by Encode yields the original value and consumes exactly
//     Size(value) bytes.
package varint

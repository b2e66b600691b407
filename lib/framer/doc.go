// Package framer splits a byte stream into length-prefixed frames and hands
// every complete frame body to a parser.
//
// Wire format:
//
//	frame := varint(uint32 len(body)) || body
//
// The length prefix is an unsigned LEB128 varint of at most five bytes (see
// lib/varint). The body is an opaque byte string, in practice a serialized
// request.CommandRequest or request.Response.
//
// Decoding:
//
//	A Decoder owns nothing but a reference to the connection's RotatingBuffer.
//	Each call to Decode drains every complete frame currently buffered, in
//	order, and leaves a trailing partial frame (or partial length prefix)
//	untouched for the next call. Results therefore do not depend on how the
//	stream was chunked by the transport.
//
//	Frame bodies are split off the buffer without copying. A parser may return
//	values that alias the body; the buffer guarantees those bytes are never
//	overwritten.
//
// Errors:
//
//	Insufficient data is never an error. A length prefix that can never become
//	valid yields ErrMalformedLength, a body the parser rejects yields a
//	*MalformedFrameError. Both are fatal for the stream: there is no way to
//	find the next frame boundary, so the caller is expected to close the
//	connection.
//
// Usage:
//
//	buf := buffer.NewRotatingBuffer(64 * 1024)
//	dec := framer.NewDecoder(buf, request.UnmarshalRequest)
//	for {
//	    if _, err := buf.Fill(conn); err != nil {
//	        return err
//	    }
//	    reqs, err := dec.Decode()
//	    // handle reqs, then err
//	}
package framer

package framer

import (
	"fmt"

	"github.com/ValentinKolb/glidecore/lib/buffer"
	"github.com/ValentinKolb/glidecore/lib/varint"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var Logger = logger.GetLogger("framer")

// ErrMalformedLength is returned when a length prefix is longer than five
// bytes or does not fit into 32 bits
var ErrMalformedLength = errors.New("framer: malformed length prefix")

// MalformedFrameError is returned when a complete frame body could not be parsed
type MalformedFrameError struct {
	// Length is the declared body length
	Length uint32
	Err    error
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("framer: malformed frame body (%d bytes): %v", e.Length, e.Err)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }

// UnmarshalFunc parses one frame body
type UnmarshalFunc[T any] func(body []byte) (T, error)

// Decoder extracts frames from a RotatingBuffer
type Decoder[T any] struct {
	buf       *buffer.RotatingBuffer
	unmarshal UnmarshalFunc[T]
}

// NewDecoder creates a decoder reading from buf
func NewDecoder[T any](buf *buffer.RotatingBuffer, unmarshal UnmarshalFunc[T]) *Decoder[T] {
	return &Decoder[T]{
		buf:       buf,
		unmarshal: unmarshal,
	}
}

// Buffer returns the buffer the decoder reads from. The transport appends
// incoming bytes to it.
func (d *Decoder[T]) Buffer() *buffer.RotatingBuffer {
	return d.buf
}

// Decode returns every complete frame currently buffered in arrival order.
// An incomplete trailing frame stays in the buffer. On error the values decoded
// before the failing frame are returned together with the error.
func (d *Decoder[T]) Decode() ([]T, error) {
	var values []T
	for {
		v, ok, err := d.Next()
		if err != nil {
			return values, err
		}
		if !ok {
			return values, nil
		}
		values = append(values, v)
	}
}

// Next decodes a single frame. ok is false if no complete frame is buffered.
func (d *Decoder[T]) Next() (value T, ok bool, err error) {
	pending := d.buf.Bytes()

	length, n := varint.Decode(pending)
	switch {
	case n == 0:
		return value, false, nil
	case n < 0:
		Logger.Errorf("invalid length prefix % x", pending[:min(len(pending), varint.MaxLen)])
		return value, false, ErrMalformedLength
	}

	// compare in 64 bit, a declared length may exceed int on 32 bit platforms
	if uint64(len(pending)) < uint64(n)+uint64(length) {
		return value, false, nil
	}

	frame := d.buf.Next(n + int(length))
	value, err = d.unmarshal(frame[n:])
	if err != nil {
		Logger.Errorf("failed to parse frame body of %d bytes: %v", length, err)
		var zero T
		return zero, false, &MalformedFrameError{Length: length, Err: err}
	}
	return value, true, nil
}

package buffer

import (
	"io"
)

const (
	// DefaultCapacity is used when a buffer is created with a non-positive capacity
	DefaultCapacity = 64 * 1024 // 64 KB
)

// RotatingBuffer is a growable byte buffer with O(1) front splits.
// The unconsumed bytes are buf[r:w], the free tail is buf[w:].
//
// Reservation is copy-on-reserve: once Next has split off a region, the
// next reserve copies the live bytes into a fresh array and the old one
// stays alive for as long as split regions reference it. The consumed
// prefix is only reclaimed in place while no region was handed out.
type RotatingBuffer struct {
	buf             []byte
	r               int
	w               int
	initialCapacity int

	// shared is set once Next handed out a region of buf. The consumed
	// prefix must not be overwritten while shared is set.
	shared bool
}

// NewRotatingBuffer creates a buffer with the given initial capacity
func NewRotatingBuffer(initialCapacity int) *RotatingBuffer {
	if initialCapacity <= 0 {
		initialCapacity = DefaultCapacity
	}
	return &RotatingBuffer{
		buf:             make([]byte, initialCapacity),
		initialCapacity: initialCapacity,
	}
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Len returns the number of unconsumed bytes
func (b *RotatingBuffer) Len() int { return b.w - b.r }

// Cap returns the size of the current allocation
func (b *RotatingBuffer) Cap() int { return len(b.buf) }

// Free returns the number of bytes that can be appended without reserving
func (b *RotatingBuffer) Free() int { return len(b.buf) - b.w }

// InitialCapacity returns the capacity the buffer was created with
func (b *RotatingBuffer) InitialCapacity() int { return b.initialCapacity }

// Bytes returns the unconsumed bytes. The slice is only valid until the next
// call that appends to or reserves space in the buffer.
func (b *RotatingBuffer) Bytes() []byte {
	return b.buf[b.r:b.w]
}

// --------------------------------------------------------------------------
// Writing
// --------------------------------------------------------------------------

// AppendTarget returns the writable free tail of the buffer. It first makes
// sure the tail holds at least a quarter of the initial capacity.
// Bytes written into the target become visible after Commit.
func (b *RotatingBuffer) AppendTarget() []byte {
	if b.Free() < b.lowWatermark() {
		b.reserve(b.initialCapacity)
	}
	return b.buf[b.w:]
}

// Commit marks n bytes of the last append target as written.
// It panics if n exceeds the free tail.
func (b *RotatingBuffer) Commit(n int) {
	if n < 0 || n > b.Free() {
		panic("buffer: commit out of range")
	}
	b.w += n
}

// Grow makes sure at least n bytes can be appended without another reservation
func (b *RotatingBuffer) Grow(n int) {
	if n > b.Free() {
		b.reserve(max(n, b.initialCapacity))
	}
}

// Write appends p to the buffer. It never returns an error.
func (b *RotatingBuffer) Write(p []byte) (int, error) {
	b.Grow(len(p))
	n := copy(b.buf[b.w:], p)
	b.w += n
	return n, nil
}

// Fill performs a single Read from r into the append target and commits
// whatever was read.
func (b *RotatingBuffer) Fill(r io.Reader) (int, error) {
	target := b.AppendTarget()
	n, err := r.Read(target)
	if n < 0 || n > len(target) {
		return 0, io.ErrShortBuffer
	}
	b.w += n
	return n, err
}

// --------------------------------------------------------------------------
// Consuming
// --------------------------------------------------------------------------

// Next splits off the first n unconsumed bytes. The returned slice is owned by
// the caller and is never modified by the buffer afterwards.
// It panics if fewer than n bytes are buffered.
func (b *RotatingBuffer) Next(n int) []byte {
	if n < 0 || n > b.Len() {
		panic("buffer: split out of range")
	}
	head := b.buf[b.r : b.r+n : b.r+n]
	b.r += n
	if n > 0 {
		b.shared = true
	}
	return head
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// lowWatermark is the minimum free tail AppendTarget hands out
func (b *RotatingBuffer) lowWatermark() int {
	return max(b.initialCapacity/4, 1)
}

// reserve makes room for at least additional bytes behind the unconsumed data
func (b *RotatingBuffer) reserve(additional int) {
	live := b.Len()

	// reclaim the consumed prefix in place if nobody holds a view into it,
	// after a split this always falls through to a fresh array
	if !b.shared && len(b.buf)-live >= additional {
		copy(b.buf, b.buf[b.r:b.w])
		b.r, b.w = 0, live
		return
	}

	size := len(b.buf)
	if live+additional > size {
		size = max(live+additional, 2*size)
	}

	fresh := make([]byte, size)
	copy(fresh, b.buf[b.r:b.w])
	b.buf, b.r, b.w = fresh, 0, live
	b.shared = false
}

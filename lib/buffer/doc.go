// Package buffer provides the per-connection backing buffer that accumulates
// bytes read from a transport until they form complete frames.
//
// A RotatingBuffer is a single contiguous allocation with a read cursor and a
// write cursor. New bytes are only ever appended behind the write cursor and
// consumed bytes are split off the front in O(1) by advancing the read cursor.
//
// Aliasing rules:
//
//   - Slices returned by Next are never written again. As soon as a region has
//     been handed out, the buffer stops reclaiming space in place and instead
//     moves the unconsumed tail into a fresh allocation the next time it has to
//     reserve room. Frame bodies and any zero-copy views into them therefore
//     remain valid for as long as the caller keeps them.
//
//   - Without outstanding splits the consumed prefix is reclaimed by moving the
//     tail to offset 0, so read/parse cycles with no retained data never
//     allocate.
//
// Growth policy:
//
//	Before handing out the free tail (AppendTarget), the buffer ensures at least
//	a quarter of its initial capacity is writable. If not, it reserves another
//	initial capacity worth of space, doubling the allocation when it has to
//	grow. Capacity never shrinks for the life of the buffer.
//
// Thread Safety:
//
//	A RotatingBuffer is owned by exactly one reader goroutine and is not safe
//	for concurrent use.
package buffer

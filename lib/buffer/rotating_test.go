package buffer

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBufferHasRequestedCapacity(t *testing.T) {
	b := NewRotatingBuffer(128)
	assert.GreaterOrEqual(t, len(b.AppendTarget()), 128)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 128, b.InitialCapacity())
}

func TestNewBufferDefaultCapacity(t *testing.T) {
	b := NewRotatingBuffer(0)
	assert.Equal(t, DefaultCapacity, b.Cap())
}

func TestAppendTargetReservesBelowQuarter(t *testing.T) {
	b := NewRotatingBuffer(16)

	// leave 3 free bytes, below the 16/4 watermark
	_, _ = b.Write(make([]byte, 13))
	require.Equal(t, 3, b.Free())

	target := b.AppendTarget()
	assert.GreaterOrEqual(t, len(target), 16)
	assert.Equal(t, 13, b.Len())
}

func TestAppendTargetKeepsCapacityAboveQuarter(t *testing.T) {
	b := NewRotatingBuffer(16)
	_, _ = b.Write(make([]byte, 8))

	target := b.AppendTarget()
	assert.Len(t, target, 8)
	assert.Equal(t, 16, b.Cap())
}

func TestCommitPublishesWrittenBytes(t *testing.T) {
	b := NewRotatingBuffer(8)
	target := b.AppendTarget()
	n := copy(target, "abc")
	b.Commit(n)

	assert.Equal(t, []byte("abc"), b.Bytes())
	assert.Panics(t, func() { b.Commit(b.Free() + 1) })
}

func TestNextSplitsFront(t *testing.T) {
	b := NewRotatingBuffer(8)
	_, _ = b.Write([]byte("hello world"))

	head := b.Next(5)
	assert.Equal(t, []byte("hello"), head)
	assert.Equal(t, []byte(" world"), b.Bytes())
	assert.Panics(t, func() { b.Next(100) })
}

func TestSplitRegionIsNeverOverwritten(t *testing.T) {
	b := NewRotatingBuffer(16)
	_, _ = b.Write([]byte("0123456789abcdef"))
	head := b.Next(10)

	// appending more data has to reserve; the split-off bytes must survive
	for i := 0; i < 8; i++ {
		_, _ = b.Write(bytes.Repeat([]byte{0xff}, 16))
	}
	assert.Equal(t, []byte("0123456789"), head)

	// appending to the returned slice must not clobber buffered data
	_ = append(head, 'x')
	assert.Equal(t, byte('a'), b.Bytes()[0])
}

func TestReclaimInPlaceWithoutSplits(t *testing.T) {
	b := NewRotatingBuffer(16)
	_, _ = b.Write(make([]byte, 14))

	// consume without handing out a region
	b.r = 14
	before := &b.buf[0]
	b.AppendTarget()

	assert.Same(t, before, &b.buf[0])
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 16, b.Free())
	assert.Equal(t, 16, b.Cap())
}

func TestReserveAfterSplitCopiesToFreshArray(t *testing.T) {
	b := NewRotatingBuffer(8)
	_, _ = b.Write([]byte("01234567"))
	before := &b.buf[0]
	head := b.Next(4)

	// the consumed prefix would fit, but head still points into it
	b.AppendTarget()

	assert.NotSame(t, before, &b.buf[0])
	assert.Same(t, before, &head[0])
	assert.Equal(t, []byte("0123"), head)
	assert.Equal(t, []byte("4567"), b.Bytes())
	assert.Equal(t, 16, b.Cap())
	assert.False(t, b.shared)
}

func TestCapacityNeverShrinks(t *testing.T) {
	b := NewRotatingBuffer(4)
	_, _ = b.Write(make([]byte, 1000))
	grown := b.Cap()
	b.Next(1000)

	for i := 0; i < 10; i++ {
		_, _ = b.Write([]byte{1, 2, 3})
		b.Next(3)
		assert.GreaterOrEqual(t, b.Cap(), grown)
	}
}

func TestFillReadsOnce(t *testing.T) {
	b := NewRotatingBuffer(64)
	r := iotest.OneByteReader(bytes.NewReader([]byte("abc")))

	n, err := b.Fill(r)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte("a"), b.Bytes())

	_, _ = b.Fill(r)
	_, _ = b.Fill(r)
	_, err = b.Fill(r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []byte("abc"), b.Bytes())
}

func BenchmarkWriteNext(b *testing.B) {
	buf := NewRotatingBuffer(4096)
	payload := make([]byte, 100)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = buf.Write(payload)
		buf.Next(len(payload))
	}
}

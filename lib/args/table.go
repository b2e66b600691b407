package args

import (
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// seedMask keeps the random start value far away from the uint64 wrap around
const seedMask = 1<<62 - 1

// Default is the table shared by every connection of the process
var Default = NewTable()

// Table maps handles to registered argument vectors
type Table struct {
	entries *xsync.MapOf[uint64, [][]byte]
	next    atomic.Uint64
}

// NewTable creates an empty table. Handles start at a random offset.
func NewTable() *Table {
	t := &Table{
		entries: xsync.NewMapOf[uint64, [][]byte](),
	}
	t.next.Store(generateSeed() & seedMask)
	return t
}

// Register stores args and returns a fresh non-zero handle for them
func (t *Table) Register(args [][]byte) uint64 {
	for {
		h := t.next.Add(1)
		if h == 0 {
			continue
		}
		if _, loaded := t.entries.LoadOrStore(h, args); !loaded {
			return h
		}
	}
}

// Take removes the vector registered under h and returns it
func (t *Table) Take(h uint64) ([][]byte, bool) {
	return t.entries.LoadAndDelete(h)
}

// Discard removes the vector registered under h without returning it
func (t *Table) Discard(h uint64) bool {
	_, ok := t.entries.LoadAndDelete(h)
	return ok
}

// Len returns the number of registered vectors
func (t *Table) Len() int {
	return t.entries.Size()
}

// generateSeed returns a random start value for handle allocation
func generateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

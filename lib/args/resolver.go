package args

import (
	"github.com/ValentinKolb/glidecore/lib/request"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// ErrUnknownHandle is returned for handles that were never registered or
	// have already been resolved
	ErrUnknownHandle = errors.New("args: unknown handle")

	// ErrMissingArgs is returned for commands without an args field
	ErrMissingArgs = errors.New("args: command has no arguments")
)

// Resolver extracts the argument vectors of one connection's commands
type Resolver struct {
	table   *Table
	pending *xsync.MapOf[uint64, struct{}]
}

// NewResolver creates a resolver taking handles from table
func NewResolver(table *Table) *Resolver {
	if table == nil {
		table = Default
	}
	return &Resolver{
		table:   table,
		pending: xsync.NewMapOf[uint64, struct{}](),
	}
}

// Track records every handle carried by req so that Release can reclaim the
// ones that are never resolved
func (r *Resolver) Track(req *request.Request) {
	for _, h := range req.Handles() {
		r.pending.Store(h, struct{}{})
	}
}

// Resolve returns the arguments of cmd. Inline arguments are returned as is,
// handle arguments are taken out of the table.
func (r *Resolver) Resolve(cmd *request.Command) ([][]byte, error) {
	if cmd == nil {
		return nil, ErrMissingArgs
	}

	switch a := cmd.Args.(type) {
	case request.InlineArgs:
		return a, nil
	case request.HandleArgs:
		h := uint64(a)
		r.pending.Delete(h)
		args, ok := r.table.Take(h)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownHandle, "handle %#x", h)
		}
		return args, nil
	default:
		return nil, ErrMissingArgs
	}
}

// Register stores a reply vector in the table and tracks its handle until
// Delivered is called, so that a reply which never reaches the peer is
// reclaimed by Release
func (r *Resolver) Register(reply [][]byte) uint64 {
	h := r.table.Register(reply)
	r.pending.Store(h, struct{}{})
	return h
}

// Delivered stops tracking a reply handle once its response was written.
// The peer owns the entry from then on.
func (r *Resolver) Delivered(h uint64) {
	r.pending.Delete(h)
}

// Table returns the table handles are taken from
func (r *Resolver) Table() *Table {
	return r.table
}

// Pending returns the number of tracked handles not yet resolved or delivered
func (r *Resolver) Pending() int {
	return r.pending.Size()
}

// Release discards every tracked handle that was never resolved or delivered
// and returns how many table entries were freed. It is called on connection
// teardown.
func (r *Resolver) Release() int {
	freed := 0
	r.pending.Range(func(h uint64, _ struct{}) bool {
		r.pending.Delete(h)
		if r.table.Discard(h) {
			freed++
		}
		return true
	})
	return freed
}

// Package args resolves the arguments of a decoded command.
//
// A command carries its arguments either inline in the frame body or as a
// handle. A handle is an opaque uint64 that references an argument vector the
// foreign caller registered in a process-wide Table before sending the frame.
// This avoids copying large payloads through the wire codec when caller and
// engine share an address space.
//
// Ownership:
//
//	A registered vector is owned by the Table until it is taken. Take removes
//	the entry, so every handle resolves at most once; a second resolution (or a
//	forged handle) fails with ErrUnknownHandle instead of reading freed memory.
//
// Leak protection:
//
//	A Resolver belongs to one connection. The transport calls Track for every
//	decoded request and Release when the connection goes away. Release drops
//	every handle that was tracked but never resolved, e.g. because a later
//	frame was malformed and the connection was closed before dispatch.
package args

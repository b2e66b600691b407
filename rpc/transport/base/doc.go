// Package base implements the engine transport independent of the socket
// type. Protocol specific packages (unix, tcp) only provide connectors.
//
// Server side, every accepted connection gets:
//
//   - a buffer.RotatingBuffer the socket is read into (Fill), sized by
//     ServerConfig.BufferSize
//   - a framer.Decoder draining all complete request frames after each read,
//     in arrival order
//   - an args.Resolver that tracks every argument handle of a decoded request
//     and every reply handle until its response was written, and releases the
//     remaining ones when the connection goes away
//   - a bounded set of worker goroutines (MaxWorkersPerConn) running the
//     registered handler
//   - a queue.Queue funneling framed responses to one writer goroutine, which
//     gathers queued frames into a single vectored write (net.Buffers)
//
// A malformed frame is fatal for its connection. Requests decoded in the same
// read pass are dropped (their handles are released), requests of earlier
// passes finish, then the transport sends a closing error with callback index
// 0 and closes the socket. The same happens when the unconsumed bytes of a
// connection exceed MaxPendingBytes.
//
// Client side, requests get a per-connection callback index, are framed with
// framer.AppendFrame and written under a connection lock. A reader goroutine
// per connection decodes response frames with the same buffer/decoder pair and
// completes the waiting request. Requests are only retried if they could not
// be written, because a written request may already have been executed.
// Responses nobody waits for anymore (the request timed out) are passed to
// the OrphanHandler, which the client uses to drop their reply handles.
//
// Metrics:
//
//	Both sides register VictoriaMetrics series labeled with the transport name
//	(glide_server_*, glide_client_*), exposed by the serve command.
//
// Thread Safety:
//
//	All public methods are thread-safe. The decoder of a connection is only
//	used by its reader goroutine.
package base

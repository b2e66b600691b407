// Package server connects a transport to a command dispatcher. For every
// decoded request it resolves the arguments through the connection's
// args.Resolver, executes the commands and builds the response.
//
// Key Components:
//
//   - IDispatcher: executes a resolved Call. Command execution against a data
//     store lives outside this module; EchoDispatcher is a store-less
//     implementation used for benchmarks and tests. AuthDispatcher answers
//     AUTH against a TokenSource (credentials.Manager) and forwards the rest.
//
//   - RPCServer: owns config, transport and dispatcher. Handle is registered as
//     the transport's ServerHandleFunc.
//
// Replies:
//
//   - a nil reply is answered with the constant OK
//   - a dispatcher error becomes a request error, the connection stays open
//   - a command that passed its arguments by handle gets its reply by handle:
//     the reply is registered in the same args.Table and the response carries
//     the new handle
//
// Batches:
//
//	All commands of a batch are resolved first. If any resolution fails the
//	batch fails without executing anything (ExecAbort for atomic batches).
//	Commands then run in order. A failing command aborts atomic and
//	raise_on_error batches; otherwise its error text becomes its reply entry.
//	Commands without reply values contribute "OK", commands with several reply
//	values contribute all of them in order. A batch timeout is checked before
//	every command.
//
// Usage Example:
//
//	config := common.DefaultServerConfig("/tmp/glide.sock")
//
//	s := server.NewRPCServer(
//	  config,
//	  unix.NewUnixServerTransport(),
//	  server.EchoDispatcher{},
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	Handle is called concurrently by the transport's workers. Dispatchers must
//	be safe for concurrent use.
package server

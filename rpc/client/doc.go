// Package client implements a client for the request framing engine.
//
// A Client wraps an IRPCClientTransport and turns commands into requests and
// responses back into reply values:
//
//   - Do sends a command with inline arguments
//   - DoHandle registers the arguments in the argument table and sends only
//     the handle, the server answers by handle as well
//   - Batch sends a pipeline or, with atomic set, a transaction
//
// A reply of nil means the server answered OK. Request errors are returned as
// *request.RequestError, a connection closed by the server as
// request.ClosingError.
//
// Usage Example:
//
//	c := client.NewClient(unix.NewUnixClientTransport(), nil)
//	if err := c.Connect(common.DefaultClientConfig("/tmp/glide.sock")); err != nil {
//		panic(err)
//	}
//	defer c.Close()
//
//	pong, _ := c.Ping()
//	reply, _ := c.Batch(false,
//		&request.Command{Type: request.Set, Args: request.InlineArgs{[]byte("k"), []byte("v")}},
//		&request.Command{Type: request.Echo, Args: request.InlineArgs{[]byte("hello")}},
//	)
//
// Handle based calls only work when client and server run in the same process
// and share the argument table, which is how a language binding embeds the
// engine. A reply handle that arrives after its call timed out is discarded
// from the table.
//
// Thread Safety:
//
//	A Client can be used concurrently from multiple goroutines.
package client

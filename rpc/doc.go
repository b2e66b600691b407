// Package rpc hosts the request framing engine on a socket. It connects the
// framing and argument packages in lib to a server loop and a client.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures and logging shared by server, client
//     and the command line.
//
//   - transport: Socket transports (unix, tcp) that decode request frames,
//     hand them to a handler and write back framed responses.
//
//   - server: Executes decoded requests with a dispatcher, resolving
//     arguments passed by handle.
//
//   - client: Frames requests, correlates responses by callback index and
//     converts them into reply values.
package rpc

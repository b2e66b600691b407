// Package transport defines the interfaces between the framing engine and the
// byte streams it serves. A server transport owns the per-connection read loop
// (backing buffer, frame decoder, argument resolver) and calls a registered
// handler for every decoded request. A client transport frames requests and
// correlates responses by callback index.
//
// Key Components:
//
//   - IRPCServerTransport: accepts connections and drives the decoder for
//     each of them.
//
//   - IRPCClientTransport: connection management, request sending and
//     response correlation.
//
//   - ServerHandleFunc: callback executing one decoded request.
//
// Implementations live in the base package and are specialized for unix
// domain sockets (unix) and tcp (tcp).
package transport

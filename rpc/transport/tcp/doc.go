// Package tcp implements the engine transport over TCP sockets, for bindings
// that cannot use Unix domain sockets or run on another host.
//
// This package builds on the base package's transport functionality. See the
// base package documentation for the framing and dispatching details.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector,
//     applying TCPConf (no delay, keep alive, linger) and SocketConf
//
// The default buffer size for tcp is 512 KB (common.DefaultTCPBufferSize).
package tcp

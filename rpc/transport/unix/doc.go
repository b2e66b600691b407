// Package unix implements the engine transport over Unix domain sockets, the
// default channel between a language binding and the engine running on the
// same machine.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting the framing, dispatching and response correlation from the
// base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, removing a stale socket
//     file first
//
// Performance Characteristics:
//
//   - Default buffer size: 64 KB, optimized for local communication patterns
//   - Reduced overhead: Eliminates TCP/IP stack processing for better performance
package unix

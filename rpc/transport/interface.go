package transport

import (
	"github.com/ValentinKolb/glidecore/lib/args"
	"github.com/ValentinKolb/glidecore/lib/request"
	"github.com/ValentinKolb/glidecore/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is called by a server transport for every decoded request.
// It runs on a worker goroutine of the connection the request arrived on and
// receives that connection's resolver. The returned response is framed and
// written back on the same connection.
type ServerHandleFunc func(resolver *args.Resolver, req *request.Request) *request.Response

// IRPCServerTransport is the interface for the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the handler called for every decoded request
	RegisterHandler(handler ServerHandleFunc)
	// Listen accepts connections until Close is called. It returns nil after Close.
	Listen(config common.ServerConfig) error
	// Close stops accepting and closes all open connections
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// OrphanHandler is called with a response whose request is no longer waiting
// for it, e.g. because it timed out
type OrphanHandler func(resp *request.Response)

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// SetOrphanHandler registers the handler for responses nobody waits for.
	// It must be called before Connect.
	SetOrphanHandler(handler OrphanHandler)
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send frames the request, waits for the response with the same callback
	// index and returns it. The transport assigns the callback index.
	Send(req *request.Request) (*request.Response, error)
	// Close closes the transport connection
	Close() error
}

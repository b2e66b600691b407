package server

import (
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/glidecore/lib/args"
	"github.com/ValentinKolb/glidecore/lib/request"
	"github.com/ValentinKolb/glidecore/rpc/common"
	"github.com/ValentinKolb/glidecore/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var Logger = logger.GetLogger("rpc")

// okReply is the batch entry of a command without reply values
var okReply = []byte("OK")

// NewRPCServer creates a new RPC server
// It takes a config, transport and dispatcher as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		unix.NewUnixServerTransport(),
//		server.EchoDispatcher{},
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	dispatcher IDispatcher,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		dispatcher: dispatcher,
	}
}

// RPCServer executes the requests decoded by a transport with a dispatcher
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	dispatcher IDispatcher
}

// Serve registers the request handler and blocks until Close is called
func (s *RPCServer) Serve() error {
	if err := s.config.Validate(); err != nil {
		return errors.Wrap(err, "invalid server config")
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	s.transport.RegisterHandler(s.Handle)
	return s.transport.Listen(s.config)
}

// Close stops the transport
func (s *RPCServer) Close() error {
	return s.transport.Close()
}

// Handle executes one decoded request. It implements transport.ServerHandleFunc.
func (s *RPCServer) Handle(resolver *args.Resolver, req *request.Request) *request.Response {
	switch p := req.Payload.(type) {
	case *request.Command:
		return s.handleCommand(resolver, req.CallbackIdx, p)
	case *request.Batch:
		return s.handleBatch(resolver, req.CallbackIdx, p)
	default:
		return request.NewErrorResponse(req.CallbackIdx, request.ErrorUnspecified, "request has no command")
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) handleCommand(resolver *args.Resolver, idx uint32, cmd *request.Command) *request.Response {
	resolved, err := resolver.Resolve(cmd)
	if err != nil {
		return request.NewErrorResponse(idx, request.ErrorUnspecified, err.Error())
	}

	reply, err := s.dispatcher.Dispatch(Call{Type: cmd.Type, Args: resolved})
	if err != nil {
		return request.NewErrorResponse(idx, request.ErrorUnspecified, err.Error())
	}
	if reply == nil {
		return request.NewOKResponse(idx)
	}

	// answer in kind: a caller passing arguments by handle gets its reply by handle
	if _, ok := cmd.Args.(request.HandleArgs); ok {
		return request.NewHandleResponse(idx, resolver.Register(reply))
	}
	return request.NewValueResponse(idx, reply...)
}

// handleBatch resolves every command of the batch before executing any of
// them, so a batch either runs with all of its arguments or not at all
func (s *RPCServer) handleBatch(resolver *args.Resolver, idx uint32, batch *request.Batch) *request.Response {
	failType := request.ErrorUnspecified
	if batch.Atomic {
		failType = request.ErrorExecAbort
	}

	calls := make([]Call, len(batch.Commands))
	byHandle := false
	var resolveErr error
	for i, cmd := range batch.Commands {
		// keep resolving after a failure so no handle is left behind
		resolved, err := resolver.Resolve(cmd)
		if err != nil && resolveErr == nil {
			resolveErr = errors.Wrapf(err, "command %d", i)
		}
		if cmd != nil {
			if _, ok := cmd.Args.(request.HandleArgs); ok {
				byHandle = true
			}
			calls[i] = Call{Type: cmd.Type, Args: resolved}
		}
	}
	if resolveErr != nil {
		return request.NewErrorResponse(idx, failType, resolveErr.Error())
	}

	var deadline time.Time
	if batch.TimeoutMs > 0 {
		deadline = time.Now().Add(time.Duration(batch.TimeoutMs) * time.Millisecond)
	}

	replies := make([][]byte, 0, len(calls))
	for i, call := range calls {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return request.NewErrorResponse(idx, request.ErrorTimeout, "batch timed out")
		}

		reply, err := s.dispatcher.Dispatch(call)
		switch {
		case err != nil && (batch.Atomic || batch.RaiseOnError):
			return request.NewErrorResponse(idx, failType, errors.Wrapf(err, "command %d (%s)", i, call.Type).Error())
		case err != nil:
			replies = append(replies, []byte(err.Error()))
		case reply == nil:
			replies = append(replies, okReply)
		default:
			replies = append(replies, reply...)
		}
	}

	if byHandle {
		return request.NewHandleResponse(idx, resolver.Register(replies))
	}
	return request.NewValueResponse(idx, replies...)
}

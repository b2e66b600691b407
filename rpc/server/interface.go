package server

import (
	"github.com/ValentinKolb/glidecore/lib/request"
)

// Call is a command whose arguments have been resolved
type Call struct {
	Type request.RequestType
	Args [][]byte
}

// IDispatcher executes resolved commands. It is called concurrently.
type IDispatcher interface {
	// Dispatch executes call and returns its reply values. A nil reply is
	// answered with the constant OK. An error is reported to the caller as a
	// request error; the connection stays usable.
	Dispatch(call Call) ([][]byte, error)
}

// DispatchFunc adapts a function to the IDispatcher interface
type DispatchFunc func(call Call) ([][]byte, error)

func (f DispatchFunc) Dispatch(call Call) ([][]byte, error) {
	return f(call)
}

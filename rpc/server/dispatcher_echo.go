package server

import (
	"github.com/ValentinKolb/glidecore/lib/request"
	"github.com/pkg/errors"
)

var pong = []byte("PONG")

// EchoDispatcher answers without a data store: PING replies PONG (or its
// argument), ECHO replies its argument and every other command replies OK.
// It is used to measure the engine in isolation.
type EchoDispatcher struct{}

func (EchoDispatcher) Dispatch(call Call) ([][]byte, error) {
	switch call.Type {
	case request.InvalidRequest:
		return nil, errors.New("invalid request type")
	case request.Ping:
		if len(call.Args) > 0 {
			return call.Args[:1], nil
		}
		return [][]byte{pong}, nil
	case request.Echo:
		if len(call.Args) != 1 {
			return nil, errors.New("wrong number of arguments for 'echo' command")
		}
		return call.Args, nil
	default:
		return nil, nil
	}
}

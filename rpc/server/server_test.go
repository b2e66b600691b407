package server

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/glidecore/lib/args"
	"github.com/ValentinKolb/glidecore/lib/buffer"
	"github.com/ValentinKolb/glidecore/lib/framer"
	"github.com/ValentinKolb/glidecore/lib/request"
	"github.com/ValentinKolb/glidecore/rpc/common"
	"github.com/ValentinKolb/glidecore/rpc/transport/unix"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Handle (without transport)
// --------------------------------------------------------------------------

func newHandler(dispatcher IDispatcher) (*RPCServer, *args.Table, *args.Resolver) {
	table := args.NewTable()
	s := NewRPCServer(common.DefaultServerConfig("unused"), nil, dispatcher)
	return s, table, args.NewResolver(table)
}

func TestHandleInline(t *testing.T) {
	s, _, resolver := newHandler(EchoDispatcher{})

	resp := s.Handle(resolver, request.NewCommand(1, request.Ping))
	assert.Equal(t, request.NewValueResponse(1, []byte("PONG")), resp)

	resp = s.Handle(resolver, request.NewCommand(2, request.Echo, []byte("hello")))
	assert.Equal(t, request.NewValueResponse(2, []byte("hello")), resp)

	resp = s.Handle(resolver, request.NewCommand(3, request.Set, []byte("k"), []byte("v")))
	assert.Equal(t, request.NewOKResponse(3), resp)
}

func TestHandleReplyByHandle(t *testing.T) {
	s, table, resolver := newHandler(EchoDispatcher{})

	h := table.Register([][]byte{[]byte("payload")})
	req := request.NewHandleCommand(7, request.Echo, h)
	resolver.Track(req)

	resp := s.Handle(resolver, req)
	require.IsType(t, request.HandleValue(0), resp.Value)
	assert.Equal(t, uint32(7), resp.CallbackIdx)

	reply, ok := table.Take(uint64(resp.Value.(request.HandleValue)))
	require.True(t, ok)
	assert.Equal(t, [][]byte{[]byte("payload")}, reply)
	assert.Equal(t, 0, table.Len())

	// the reply handle stays tracked until the transport has written it
	assert.Equal(t, 1, resolver.Pending())
	resolver.Delivered(uint64(resp.Value.(request.HandleValue)))
	assert.Equal(t, 0, resolver.Pending())
}

func TestHandleErrors(t *testing.T) {
	s, _, resolver := newHandler(EchoDispatcher{})

	tests := []struct {
		name string
		req  *request.Request
		msg  string
	}{
		{"invalid type", request.NewCommand(1, request.InvalidRequest), "invalid request type"},
		{"dispatcher error", request.NewCommand(2, request.Echo), "wrong number of arguments"},
		{"unknown handle", request.NewHandleCommand(3, request.Get, 12345), "unknown handle"},
		{"missing args", &request.Request{CallbackIdx: 4, Payload: &request.Command{Type: request.Get}}, "no arguments"},
		{"no payload", &request.Request{CallbackIdx: 5}, "no command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.Handle(resolver, tt.req)
			assert.Equal(t, tt.req.CallbackIdx, resp.CallbackIdx)

			reqErr, ok := resp.Value.(*request.RequestError)
			require.True(t, ok, "expected request error, got %T", resp.Value)
			assert.Equal(t, request.ErrorUnspecified, reqErr.Type)
			assert.Contains(t, reqErr.Message, tt.msg)
		})
	}
}

func TestHandleBatch(t *testing.T) {
	s, _, resolver := newHandler(EchoDispatcher{})

	req := request.NewBatch(1, false,
		&request.Command{Type: request.Set, Args: request.InlineArgs{[]byte("k"), []byte("v")}},
		&request.Command{Type: request.Echo, Args: request.InlineArgs{}},
		&request.Command{Type: request.Ping, Args: request.InlineArgs{}},
	)

	resp := s.Handle(resolver, req)
	values, ok := resp.Value.(request.InlineValue)
	require.True(t, ok, "expected inline value, got %T", resp.Value)
	require.Len(t, values, 3)
	assert.Equal(t, "OK", string(values[0]))
	assert.Contains(t, string(values[1]), "wrong number of arguments")
	assert.Equal(t, "PONG", string(values[2]))
}

func TestHandleAtomicBatchAborts(t *testing.T) {
	executed := 0
	s, _, resolver := newHandler(DispatchFunc(func(call Call) ([][]byte, error) {
		executed++
		if call.Type == request.Incr {
			return nil, errors.New("value is not an integer")
		}
		return nil, nil
	}))

	req := request.NewBatch(1, true,
		&request.Command{Type: request.Incr, Args: request.InlineArgs{[]byte("k")}},
		&request.Command{Type: request.Set, Args: request.InlineArgs{[]byte("k"), []byte("v")}},
	)

	resp := s.Handle(resolver, req)
	reqErr, ok := resp.Value.(*request.RequestError)
	require.True(t, ok)
	assert.Equal(t, request.ErrorExecAbort, reqErr.Type)
	assert.Equal(t, 1, executed)
}

func TestHandleBatchResolvesAllHandles(t *testing.T) {
	executed := false
	s, table, resolver := newHandler(DispatchFunc(func(Call) ([][]byte, error) {
		executed = true
		return nil, nil
	}))

	req := request.NewBatch(1, false,
		&request.Command{Type: request.Get, Args: request.HandleArgs(999)},
		&request.Command{Type: request.Get, Args: request.HandleArgs(table.Register([][]byte{[]byte("a")}))},
	)
	resolver.Track(req)

	resp := s.Handle(resolver, req)
	assert.IsType(t, &request.RequestError{}, resp.Value)
	assert.False(t, executed)
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, 0, resolver.Pending())
}

func TestHandleBatchTimeout(t *testing.T) {
	s, _, resolver := newHandler(DispatchFunc(func(Call) ([][]byte, error) {
		time.Sleep(20 * time.Millisecond)
		return nil, nil
	}))

	req := request.NewBatch(1, false,
		&request.Command{Type: request.Set, Args: request.InlineArgs{[]byte("a")}},
		&request.Command{Type: request.Set, Args: request.InlineArgs{[]byte("b")}},
	)
	req.Payload.(*request.Batch).TimeoutMs = 5

	resp := s.Handle(resolver, req)
	reqErr, ok := resp.Value.(*request.RequestError)
	require.True(t, ok)
	assert.Equal(t, request.ErrorTimeout, reqErr.Type)
}

// --------------------------------------------------------------------------
// Unix socket round trip
// --------------------------------------------------------------------------

// startServer runs an echo server on a temporary unix socket
func startServer(t *testing.T, modify func(c *common.ServerConfig)) (string, *args.Table) {
	t.Helper()
	return startServerWith(t, EchoDispatcher{}, modify)
}

func startServerWith(t *testing.T, dispatcher IDispatcher, modify func(c *common.ServerConfig)) (string, *args.Table) {
	t.Helper()

	config := common.DefaultServerConfig(filepath.Join(t.TempDir(), "glide.sock"))
	config.BufferSize = 16
	if modify != nil {
		modify(&config)
	}

	table := args.NewTable()
	s := NewRPCServer(config, unix.NewUnixServerTransportWithTable(table), dispatcher)

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve() }()

	t.Cleanup(func() {
		require.NoError(t, s.Close())
		require.NoError(t, <-serveErr)
	})

	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", config.Endpoint)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 5*time.Millisecond)

	return config.Endpoint, table
}

// readResponses reads until n responses were decoded or the connection ends
func readResponses(t *testing.T, conn net.Conn, n int) []*request.Response {
	t.Helper()

	dec := framer.NewDecoder(buffer.NewRotatingBuffer(32), request.UnmarshalResponse)
	var out []*request.Response

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for len(out) < n {
		_, err := dec.Buffer().Fill(conn)
		resps, decErr := dec.Decode()
		require.NoError(t, decErr)
		out = append(out, resps...)
		if err != nil {
			break
		}
	}
	return out
}

func TestUnixRoundTrip(t *testing.T) {
	endpoint, table := startServer(t, nil)

	conn, err := net.Dial("unix", endpoint)
	require.NoError(t, err)
	defer conn.Close()

	h := table.Register([][]byte{[]byte("by handle")})
	var stream []byte
	stream = append(stream, framer.AppendFrame(nil, request.MarshalRequest(request.NewCommand(1, request.Ping)))...)
	stream = append(stream, framer.AppendFrame(nil, request.MarshalRequest(request.NewCommand(2, request.Echo, make([]byte, 1000))))...)
	stream = append(stream, framer.AppendFrame(nil, request.MarshalRequest(request.NewHandleCommand(3, request.Echo, h)))...)
	stream = append(stream, framer.AppendFrame(nil, request.MarshalRequest(request.NewCommand(4, request.Set, []byte("k"), []byte("v"))))...)

	// write in small chunks to exercise partial frames on the server
	for off := 0; off < len(stream); off += 7 {
		_, err := conn.Write(stream[off:min(off+7, len(stream))])
		require.NoError(t, err)
	}

	resps := readResponses(t, conn, 4)
	require.Len(t, resps, 4)

	byIdx := make(map[uint32]*request.Response)
	for _, resp := range resps {
		byIdx[resp.CallbackIdx] = resp
	}

	assert.Equal(t, request.InlineValue{[]byte("PONG")}, byIdx[1].Value)
	assert.Equal(t, request.InlineValue{make([]byte, 1000)}, byIdx[2].Value)
	assert.Equal(t, request.ConstantValue(request.OK), byIdx[4].Value)

	handle, ok := byIdx[3].Value.(request.HandleValue)
	require.True(t, ok)
	reply, ok := table.Take(uint64(handle))
	require.True(t, ok)
	assert.Equal(t, [][]byte{[]byte("by handle")}, reply)
}

func TestMalformedFrameClosesConnection(t *testing.T) {
	endpoint, _ := startServer(t, nil)

	conn, err := net.Dial("unix", endpoint)
	require.NoError(t, err)
	defer conn.Close()

	var stream []byte
	stream = append(stream, framer.AppendFrame(nil, request.MarshalRequest(request.NewCommand(1, request.Ping)))...)
	stream = append(stream, framer.AppendFrame(nil, []byte{0xff, 0xff, 0xff})...)
	_, err = conn.Write(stream)
	require.NoError(t, err)

	resps := readResponses(t, conn, 3)
	require.NotEmpty(t, resps)

	last := resps[len(resps)-1]
	assert.Equal(t, uint32(0), last.CallbackIdx)
	assert.IsType(t, request.ClosingError(""), last.Value)
}

func TestTeardownReleasesTrackedHandles(t *testing.T) {
	endpoint, table := startServer(t, nil)

	conn, err := net.Dial("unix", endpoint)
	require.NoError(t, err)
	defer conn.Close()

	h := table.Register([][]byte{[]byte("never resolved")})
	other := table.Register([][]byte{[]byte("not sent")})

	// the handle request is decoded in the same pass as the broken frame, so
	// it is never dispatched and its handle is reclaimed on teardown
	var stream []byte
	stream = append(stream, framer.AppendFrame(nil, request.MarshalRequest(request.NewHandleCommand(1, request.Get, h)))...)
	stream = append(stream, framer.AppendFrame(nil, []byte{0xff})...)
	_, err = conn.Write(stream)
	require.NoError(t, err)

	readResponses(t, conn, 3)

	require.Eventually(t, func() bool { return table.Len() == 1 }, time.Second, 5*time.Millisecond)
	_, ok := table.Take(other)
	assert.True(t, ok)
}

func TestUnwrittenReplyHandleIsReleased(t *testing.T) {
	dispatched := make(chan struct{})
	endpoint, table := startServerWith(t, DispatchFunc(func(call Call) ([][]byte, error) {
		close(dispatched)
		time.Sleep(200 * time.Millisecond)
		return call.Args, nil
	}), nil)

	conn, err := net.Dial("unix", endpoint)
	require.NoError(t, err)

	h := table.Register([][]byte{[]byte("reply by handle")})
	_, err = conn.Write(framer.AppendFrame(nil, request.MarshalRequest(request.NewHandleCommand(1, request.Echo, h))))
	require.NoError(t, err)

	// the peer is gone before the reply is written, so the write fails
	<-dispatched
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return table.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestMaxPendingBytes(t *testing.T) {
	endpoint, _ := startServer(t, func(c *common.ServerConfig) {
		c.MaxPendingBytes = 64
	})

	conn, err := net.Dial("unix", endpoint)
	require.NoError(t, err)
	defer conn.Close()

	// announce a frame that never completes
	frame := framer.AppendFrame(nil, make([]byte, 1024))
	_, err = conn.Write(frame[:200])
	require.NoError(t, err)

	resps := readResponses(t, conn, 2)
	require.Len(t, resps, 1)
	assert.IsType(t, request.ClosingError(""), resps[0].Value)
}

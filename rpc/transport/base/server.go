package base

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/glidecore/lib/args"
	"github.com/ValentinKolb/glidecore/lib/buffer"
	"github.com/ValentinKolb/glidecore/lib/framer"
	"github.com/ValentinKolb/glidecore/lib/queue"
	"github.com/ValentinKolb/glidecore/lib/request"
	"github.com/ValentinKolb/glidecore/rpc/common"
	"github.com/ValentinKolb/glidecore/rpc/transport"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// maxWriteBatch is the maximum number of response frames gathered into one write
const maxWriteBatch = 64

// outFrame is a framed response waiting for the writer
type outFrame struct {
	data []byte
	// reply handle carried by the response, 0 if none
	handle uint64
}

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector IServerConnector
	handler   transport.ServerHandleFunc
	table     *args.Table
	config    common.ServerConfig
	metrics   *serverMetrics

	mu       sync.Mutex
	listener net.Listener
	closed   atomic.Bool

	conns      *xsync.MapOf[uint64, net.Conn]
	nextConnID atomic.Uint64
	connWg     sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a server transport resolving argument
// handles in table (args.Default if nil)
func NewBaseServerTransport(connector IServerConnector, table *args.Table) transport.IRPCServerTransport {
	if table == nil {
		table = args.Default
	}
	return &serverTransport{
		connector: connector,
		table:     table,
		metrics:   newServerMetrics(connector.GetName()),
		conns:     xsync.NewMapOf[uint64, net.Conn](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return errors.New("no handler registered")
	}

	if config.BufferSize <= 0 {
		config.BufferSize = buffer.DefaultCapacity
	}
	// minimum one worker per connection
	config.MaxWorkersPerConn = max(config.MaxWorkersPerConn, 1)
	t.config = config

	listener, err := t.connector.Listen(config)
	if err != nil {
		return errors.Wrap(err, "failed to create listener")
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		listener.Close()
		return nil
	}
	t.listener = listener
	t.mu.Unlock()

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), config.Endpoint, config.MaxWorkersPerConn)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection: %v", err)
		}

		// registration and the closed check share the lock with Close, so
		// Close either sees the connection or the connection sees Close
		t.mu.Lock()
		if t.closed.Load() {
			t.mu.Unlock()
			conn.Close()
			return nil
		}
		id := t.nextConnID.Add(1)
		t.conns.Store(id, conn)
		t.connWg.Add(1)
		t.mu.Unlock()

		go func() {
			defer t.connWg.Done()
			defer t.conns.Delete(id)
			t.handleConnection(id, conn)
		}()
	}
}

func (t *serverTransport) Close() error {
	t.mu.Lock()
	t.closed.Store(true)
	listener := t.listener
	t.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}

	// unblock every read loop, they clean up on their own
	t.conns.Range(func(_ uint64, conn net.Conn) bool {
		conn.Close()
		return true
	})
	t.connWg.Wait()

	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection runs the read loop of one connection. Requests are
// decoded in arrival order and dispatched to at most MaxWorkersPerConn
// concurrent workers; responses are funneled to a single writer.
func (t *serverTransport) handleConnection(id uint64, conn net.Conn) {
	t.metrics.connections.Inc()
	t.metrics.accepted.Inc()
	defer t.metrics.connections.Dec()

	timeout := t.config.Timeout()
	resolver := args.NewResolver(t.table)
	decoder := framer.NewDecoder(buffer.NewRotatingBuffer(t.config.BufferSize), request.UnmarshalRequest)

	responses := queue.New[outFrame]()
	writerDone := make(chan struct{})
	go t.writeResponses(id, conn, resolver, responses, writerDone)

	// the buffered channel acts as a counting semaphore
	workerSemaphore := make(chan struct{}, t.config.MaxWorkersPerConn)
	var wg sync.WaitGroup

	dispatch := func(req *request.Request) {
		defer func() {
			<-workerSemaphore
			wg.Done()
		}()

		start := time.Now()
		resp := t.handler(resolver, req)
		t.metrics.duration.UpdateDuration(start)
		Logger.Debugf("connection %d: processed %s in %s", id, req, time.Since(start))

		if resp == nil {
			resp = request.NewOKResponse(req.CallbackIdx)
		}
		out := outFrame{data: framer.AppendFrame(nil, request.MarshalResponse(resp))}
		if h, ok := resp.Value.(request.HandleValue); ok {
			out.handle = uint64(h)
		}
		responses.Push(out)
	}

	// closeErr is reported to the peer as a closing error before the connection goes away
	var closeErr error

	for {
		if err := setReadDeadline(conn, timeout); err != nil {
			Logger.Errorf("connection %d: failed to set read deadline: %v", id, err)
			break
		}

		n, readErr := decoder.Buffer().Fill(conn)
		t.metrics.bytesRead.Add(n)

		if n > 0 {
			reqs, decodeErr := decoder.Decode()
			for _, req := range reqs {
				resolver.Track(req)
			}

			// requests decoded in the same pass as a malformed frame are
			// dropped, Release reclaims their handles
			if decodeErr != nil {
				t.metrics.malformed.Inc()
				Logger.Errorf("connection %d: %v, dropping %d requests and closing connection", id, decodeErr, len(reqs))
				closeErr = decodeErr
				break
			}

			for _, req := range reqs {
				t.metrics.requests.Inc()

				// blocks if MaxWorkersPerConn is reached
				workerSemaphore <- struct{}{}
				wg.Add(1)
				go dispatch(req)
			}

			if limit := t.config.MaxPendingBytes; limit > 0 && decoder.Buffer().Len() > limit {
				t.metrics.oversized.Inc()
				closeErr = errors.Errorf("pending frame exceeds %d bytes", limit)
				Logger.Errorf("connection %d: %v, closing connection", id, closeErr)
				break
			}
		}

		if readErr == io.EOF {
			Logger.Infof("connection %d closed by client", id)
			break
		}
		if readErr != nil {
			if !t.closed.Load() && !errors.Is(readErr, net.ErrClosed) {
				Logger.Errorf("connection %d: read error: %v", id, readErr)
			}
			break
		}
	}

	// let in flight requests finish so their responses are still delivered
	wg.Wait()
	if closeErr != nil {
		responses.Push(outFrame{data: framer.AppendFrame(nil, request.MarshalResponse(request.NewClosingResponse(0, closeErr.Error())))})
	}
	responses.Close()
	<-writerDone
	conn.Close()

	if freed := resolver.Release(); freed > 0 {
		t.metrics.released.Add(freed)
		Logger.Warningf("connection %d: released %d unresolved argument handles", id, freed)
	}
}

// writeResponses writes response frames until the queue is closed. Frames
// that are already queued are gathered into one vectored write. After a
// write error the queue is still drained so that workers never block.
// Reply handles of written frames are handed over to the peer, the others
// stay tracked and are reclaimed by the resolver on teardown.
func (t *serverTransport) writeResponses(id uint64, conn net.Conn, resolver *args.Resolver, responses *queue.Queue[outFrame], done chan struct{}) {
	defer close(done)

	timeout := t.config.Timeout()
	frames := make([]outFrame, 0, maxWriteBatch)
	batch := make(net.Buffers, 0, maxWriteBatch)
	failed := false

	for frame := range responses.Recv() {
		frames = append(frames[:0], frame)

	gather:
		for len(frames) < maxWriteBatch {
			select {
			case next, ok := <-responses.Recv():
				if !ok {
					break gather
				}
				frames = append(frames, next)
			default:
				break gather
			}
		}

		if failed {
			continue
		}

		batch = batch[:0]
		for _, f := range frames {
			batch = append(batch, f.data)
		}

		written, err := writeFrames(conn, batch, timeout)
		t.metrics.bytesWritten.Add(int(written))
		if err != nil {
			failed = true
			t.metrics.writeErrors.Inc()
			Logger.Errorf("connection %d: failed to write responses: %v", id, err)
			// unblocks the read loop
			conn.Close()
			continue
		}

		for _, f := range frames {
			if f.handle != 0 {
				resolver.Delivered(f.handle)
			}
		}
	}
}

package base

import (
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/glidecore/lib/buffer"
	"github.com/ValentinKolb/glidecore/lib/framer"
	"github.com/ValentinKolb/glidecore/lib/request"
	"github.com/ValentinKolb/glidecore/rpc/common"
	"github.com/ValentinKolb/glidecore/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

var (
	// ErrNotConnected is returned when no connection is available
	ErrNotConnected = errors.New("no active connections available")

	// ErrTimeout is returned when no response arrived within the configured timeout
	ErrTimeout = errors.New("request timed out")

	// ErrConnectionLost is returned to requests whose connection broke before
	// their response arrived
	ErrConnectionLost = errors.New("connection lost")
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	resp *request.Response
	err  error
}

// clientConnection represents a single net connection
type clientConnection struct {
	conn     net.Conn
	endpoint string
	stopCh   chan struct{} // Close signal for the reader goroutine
	pending  *xsync.MapOf[uint32, chan responseResult]
	nextIdx  atomic.Uint32
	connMu   sync.Mutex // Protects the connection itself
	parent   *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	orphan        transport.OrphanHandler
	metrics       *clientMetrics
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex uint64 // Atomic counter for Round Robin
	stopping      atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
		metrics:   newClientMetrics(connector.GetName()),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) SetOrphanHandler(handler transport.OrphanHandler) {
	t.orphan = handler
}

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return errors.New("no endpoints provided")
	}
	if config.BufferSize <= 0 {
		config.BufferSize = buffer.DefaultCapacity
	}

	t.config = config
	t.stopping.Store(false)

	// Close all existing connections
	t.closeConnections()

	connectionsPerEP := max(config.ConnectionsPerEndpoint, 1)
	connections := make([]*clientConnection, 0, len(config.Endpoints)*connectionsPerEP)

	for _, endpoint := range config.Endpoints {
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint: endpoint,
				stopCh:   make(chan struct{}),
				pending:  xsync.NewMapOf[uint32, chan responseResult](),
				parent:   t,
			}

			if err := clientConn.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}
			connections = append(connections, clientConn)

			Logger.Debugf("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)

			go clientConn.readResponses()
		}
	}

	if len(connections) == 0 {
		return errors.New("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(connections), len(config.Endpoints)*connectionsPerEP, len(config.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(req *request.Request) (*request.Response, error) {
	if req == nil {
		return nil, errors.New("request must not be nil")
	}
	t.metrics.requests.Inc()
	start := time.Now()
	defer t.metrics.duration.UpdateDuration(start)

	// We always try at least once
	maxRetries := max(t.config.RetryCount, 1)

	// Initial backoff duration in milliseconds
	backoffMs := 50

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			t.metrics.failures.Inc()
			return nil, ErrNotConnected
		}

		resp, written, err := conn.send(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// a request that reached the server may already have been executed
		if written {
			break
		}

		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxRetries, err)
		if i+1 < maxRetries {
			t.metrics.retries.Inc()
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	t.metrics.failures.Inc()
	return nil, errors.Wrapf(lastErr, "request %s failed", req)
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}
	if len(t.connections) == 1 {
		return t.connections[0]
	}

	index := atomic.AddUint64(&t.nextConnIndex, 1) % uint64(len(t.connections))
	return t.connections[index]
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	for _, conn := range t.connections {
		// Signal reader goroutine to stop
		close(conn.stopCh)

		conn.connMu.Lock()
		if conn.conn != nil {
			conn.conn.Close()
		}
		conn.connMu.Unlock()
	}

	t.connections = nil
}

// send writes req with a fresh callback index and waits for its response.
// written reports whether the frame was handed to the socket.
func (c *clientConnection) send(req *request.Request) (resp *request.Response, written bool, err error) {
	// callback index 0 is reserved for connection level errors
	idx := c.nextIdx.Add(1)
	if idx == 0 {
		idx = c.nextIdx.Add(1)
	}

	framed := *req
	framed.CallbackIdx = idx
	frame := framer.AppendFrame(nil, request.MarshalRequest(&framed))

	respCh := make(chan responseResult, 1)
	c.pending.Store(idx, respCh)
	defer c.pending.Delete(idx)

	timeout := c.parent.config.Timeout()

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		return nil, false, errors.New("connection is closed")
	}
	_, err = writeFrames(c.conn, net.Buffers{frame}, timeout)
	c.connMu.Unlock()
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to write request")
	}

	// Wait for response or timeout
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		if result.err != nil {
			return nil, true, result.err
		}
		result.resp.CallbackIdx = req.CallbackIdx
		return result.resp, true, nil
	case <-timeoutCh:
		if _, waiting := c.pending.LoadAndDelete(idx); !waiting {
			// the reader took the entry, its response is already on the way
			if result := <-respCh; result.resp != nil {
				c.orphaned(result.resp)
			}
		}
		return nil, true, ErrTimeout
	}
}

// currentConn returns the connection under the lock
func (c *clientConnection) currentConn() net.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

// readResponses decodes response frames and hands them to the waiting
// requests. When the connection breaks all pending requests fail and the
// connection is restored.
func (c *clientConnection) readResponses() {
	for {
		conn := c.currentConn()
		if conn == nil {
			return
		}

		err := c.readFrom(conn)

		select {
		case <-c.stopCh:
			c.failPending(ErrConnectionLost)
			return
		default:
		}

		Logger.Warningf("Connection to %s lost: %v", c.endpoint, err)
		c.failPending(errors.Wrap(ErrConnectionLost, err.Error()))

		if c.parent.stopping.Load() {
			return
		}
		if err := c.reconnect(); err != nil {
			Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
			return
		}
	}
}

// readFrom reads responses from conn until an error occurs
func (c *clientConnection) readFrom(conn net.Conn) error {
	decoder := framer.NewDecoder(buffer.NewRotatingBuffer(c.parent.config.BufferSize), request.UnmarshalResponse)

	for {
		n, readErr := decoder.Buffer().Fill(conn)
		if n > 0 {
			responses, err := decoder.Decode()
			for _, resp := range responses {
				c.deliver(resp)
			}
			if err != nil {
				return err
			}
		}

		if readErr == io.EOF {
			return io.ErrUnexpectedEOF
		}
		if readErr != nil {
			return readErr
		}
	}
}

// deliver hands resp to the request waiting for its callback index
func (c *clientConnection) deliver(resp *request.Response) {
	if resp.CallbackIdx == 0 {
		if closing, ok := resp.Value.(request.ClosingError); ok {
			Logger.Errorf("Server closed connection to %s: %s", c.endpoint, string(closing))
			c.failPending(closing)
			return
		}
	}

	respCh, found := c.pending.LoadAndDelete(resp.CallbackIdx)
	if !found {
		Logger.Warningf("Received response for unknown callback index %d", resp.CallbackIdx)
		c.orphaned(resp)
		return
	}
	respCh <- responseResult{resp: resp}
}

// orphaned hands a response nobody waits for to the orphan handler
func (c *clientConnection) orphaned(resp *request.Response) {
	c.parent.metrics.orphaned.Inc()
	if c.parent.orphan != nil {
		c.parent.orphan(resp)
	}
}

// failPending completes every waiting request with err
func (c *clientConnection) failPending(err error) {
	c.pending.Range(func(idx uint32, respCh chan responseResult) bool {
		if _, ok := c.pending.LoadAndDelete(idx); ok {
			respCh <- responseResult{err: err}
		}
		return true
	})
}

// reconnect establishes or restores a connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", c.endpoint)
	}

	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		conn.Close()
		return errors.Wrapf(err, "failed to upgrade connection to %s", c.endpoint)
	}

	c.conn = conn
	return nil
}

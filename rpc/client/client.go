package client

import (
	"github.com/ValentinKolb/glidecore/lib/args"
	"github.com/ValentinKolb/glidecore/lib/request"
	"github.com/ValentinKolb/glidecore/rpc/common"
	"github.com/ValentinKolb/glidecore/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var Logger = logger.GetLogger("client")

// ErrUnexpectedReply is returned when a response carries a value the client
// cannot interpret
var ErrUnexpectedReply = errors.New("unexpected reply")

// NewClient creates a client sending requests over transport.
// Handle based calls register their arguments in table, which must be the
// table the server resolves handles from. A nil table selects args.Default.
func NewClient(transport transport.IRPCClientTransport, table *args.Table) *Client {
	if table == nil {
		table = args.Default
	}
	c := &Client{
		transport: transport,
		table:     table,
	}
	transport.SetOrphanHandler(c.discardReply)
	return c
}

// Client issues commands and batches. It is safe for concurrent use.
type Client struct {
	transport transport.IRPCClientTransport
	table     *args.Table
}

// Connect connects the underlying transport
func (c *Client) Connect(config common.ClientConfig) error {
	return c.transport.Connect(config)
}

// Close closes the underlying transport
func (c *Client) Close() error {
	return c.transport.Close()
}

// Do sends a command with inline arguments and returns the reply values.
// A nil reply means the server answered OK.
func (c *Client) Do(t request.RequestType, arguments ...[]byte) ([][]byte, error) {
	return c.send(request.NewCommand(0, t, arguments...))
}

// DoHandle sends a command whose arguments are passed by handle. This only
// works when client and server share the argument table in one process.
func (c *Client) DoHandle(t request.RequestType, arguments ...[]byte) ([][]byte, error) {
	h := c.table.Register(arguments)

	reply, err := c.send(request.NewHandleCommand(0, t, h))
	if err != nil {
		// the server may never have seen the request
		c.table.Discard(h)
		return nil, err
	}
	return reply, nil
}

// Batch sends commands as one pipeline, or as a transaction if atomic is set
func (c *Client) Batch(atomic bool, commands ...*request.Command) ([][]byte, error) {
	if len(commands) == 0 {
		return nil, errors.New("batch has no commands")
	}
	return c.send(request.NewBatch(0, atomic, commands...))
}

// Ping returns the server's PONG
func (c *Client) Ping() (string, error) {
	reply, err := c.Do(request.Ping)
	if err != nil {
		return "", err
	}
	return string(first(reply)), nil
}

// Echo returns msg as echoed by the server
func (c *Client) Echo(msg []byte) ([]byte, error) {
	reply, err := c.Do(request.Echo, msg)
	if err != nil {
		return nil, err
	}
	return first(reply), nil
}

// Get returns the value of key
func (c *Client) Get(key string) ([]byte, error) {
	reply, err := c.Do(request.Get, []byte(key))
	if err != nil {
		return nil, err
	}
	return first(reply), nil
}

// Set stores value under key
func (c *Client) Set(key string, value []byte) error {
	_, err := c.Do(request.Set, []byte(key), value)
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *Client) send(req *request.Request) ([][]byte, error) {
	resp, err := c.transport.Send(req)
	if err != nil {
		return nil, err
	}
	return c.valueOf(resp)
}

// valueOf converts the value of resp into reply values or an error
func (c *Client) valueOf(resp *request.Response) ([][]byte, error) {
	switch v := resp.Value.(type) {
	case request.InlineValue:
		return v, nil
	case request.HandleValue:
		reply, ok := c.table.Take(uint64(v))
		if !ok {
			return nil, errors.Wrapf(ErrUnexpectedReply, "reply handle %d is unknown", uint64(v))
		}
		return reply, nil
	case request.ConstantValue:
		if request.ConstantResponse(v) != request.OK {
			return nil, errors.Wrapf(ErrUnexpectedReply, "constant %d", int32(v))
		}
		return nil, nil
	case *request.RequestError:
		return nil, v
	case request.ClosingError:
		Logger.Warningf("Connection closed by server: %s", string(v))
		return nil, v
	default:
		return nil, errors.Wrapf(ErrUnexpectedReply, "%T", resp.Value)
	}
}

// discardReply frees the reply handle of a response that arrived after its
// request gave up
func (c *Client) discardReply(resp *request.Response) {
	if h, ok := resp.Value.(request.HandleValue); ok && c.table.Discard(uint64(h)) {
		Logger.Debugf("discarded reply handle %d of an orphaned response", uint64(h))
	}
}

func first(reply [][]byte) []byte {
	if len(reply) == 0 {
		return nil
	}
	return reply[0]
}

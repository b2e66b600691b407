package unix

import (
	"net"
	"os"

	"github.com/ValentinKolb/glidecore/lib/args"
	"github.com/ValentinKolb/glidecore/rpc/common"
	"github.com/ValentinKolb/glidecore/rpc/transport"
	"github.com/ValentinKolb/glidecore/rpc/transport/base"
	"github.com/pkg/errors"
)

// serverConnector implements the IServerConnector interface for Unix sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return common.TransportUnix
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	socketPath := config.Endpoint

	// Remove existing socket file if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, errors.Wrap(err, "failed to remove existing socket")
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create unix socket")
	}

	return listener, nil
}

func (c *serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	return base.ApplySocketConf(conn, config.Socket)
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixServerTransport creates a Unix server transport resolving argument
// handles from the process wide table
func NewUnixServerTransport() transport.IRPCServerTransport {
	return NewUnixServerTransportWithTable(args.Default)
}

// NewUnixServerTransportWithTable creates a Unix server transport resolving
// argument handles from table
func NewUnixServerTransportWithTable(table *args.Table) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, table)
}

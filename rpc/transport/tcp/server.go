package tcp

import (
	"net"

	"github.com/ValentinKolb/glidecore/lib/args"
	"github.com/ValentinKolb/glidecore/rpc/common"
	"github.com/ValentinKolb/glidecore/rpc/transport"
	"github.com/ValentinKolb/glidecore/rpc/transport/base"
	"github.com/pkg/errors"
)

// serverConnector implements the IServerConnector interface for TCP sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return common.TransportTCP
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tcp socket")
	}

	return listener, nil
}

// UpgradeConnection applies the TCPConf and SocketConf settings to an
// accepted connection
func (c *serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	if err := base.ApplyTCPConf(conn, config.TCP); err != nil {
		return err
	}
	return base.ApplySocketConf(conn, config.Socket)
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPServerTransport creates a TCP server transport resolving argument
// handles from the process wide table
func NewTCPServerTransport() transport.IRPCServerTransport {
	return NewTCPServerTransportWithTable(args.Default)
}

// NewTCPServerTransportWithTable creates a TCP server transport resolving
// argument handles from table
func NewTCPServerTransportWithTable(table *args.Table) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, table)
}

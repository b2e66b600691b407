package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	TransportUnix = "unix"
	TransportTCP  = "tcp"

	DefaultUnixBufferSize    = 64 * 1024  // 64 KB
	DefaultTCPBufferSize     = 512 * 1024 // 512 KB
	DefaultMaxPendingBytes   = 512 * 1024 * 1024
	DefaultMaxWorkersPerConn = 64
)

// --------------------------------------------------------------------------
// Socket configuration (shared by server and client)
// --------------------------------------------------------------------------

// SocketConf holds settings applied to every accepted or dialed socket
type SocketConf struct {
	// kernel buffer sizes, 0 keeps the os default
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds tcp specific socket settings
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	// TCPLingerSec < 0 keeps the os default
	TCPLingerSec int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the engine host
type ServerConfig struct {
	// Transport is the listener type, "unix" or "tcp"
	Transport string
	// Endpoint is the socket path (unix) or host:port (tcp)
	Endpoint string

	// BufferSize is the initial capacity of each connection's backing buffer
	BufferSize int
	// MaxPendingBytes closes a connection whose unconsumed bytes exceed it, 0 disables the limit
	MaxPendingBytes int
	// MaxWorkersPerConn bounds the concurrently dispatched requests of one connection
	MaxWorkersPerConn int

	// TimeoutSecond is the idle read and write deadline, 0 disables it
	TimeoutSecond int64

	Socket SocketConf
	TCP    TCPConf

	// MetricsEndpoint serves prometheus metrics when not empty
	MetricsEndpoint string

	IAM IAMConf

	// Logging configuration
	LogLevel string
}

// IAMConf configures the auth token manager
type IAMConf struct {
	Enabled                bool
	ClusterName            string
	Username               string
	Region                 string
	Service                string
	Serverless             bool
	RefreshIntervalMinutes int
}

// DefaultServerConfig returns a unix socket configuration with default limits
func DefaultServerConfig(endpoint string) ServerConfig {
	return ServerConfig{
		Transport:         TransportUnix,
		Endpoint:          endpoint,
		BufferSize:        DefaultUnixBufferSize,
		MaxPendingBytes:   DefaultMaxPendingBytes,
		MaxWorkersPerConn: DefaultMaxWorkersPerConn,
		TCP:               TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		LogLevel:          "info",
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *ServerConfig) Validate() error {
	if c.Transport != TransportUnix && c.Transport != TransportTCP {
		return errors.Errorf("invalid transport %q, must be one of %s, %s", c.Transport, TransportUnix, TransportTCP)
	}
	if c.Endpoint == "" {
		return errors.New("endpoint must not be empty")
	}
	if c.BufferSize < 0 || c.MaxPendingBytes < 0 || c.MaxWorkersPerConn < 0 {
		return errors.New("buffer size, max pending bytes and workers must not be negative")
	}
	if c.IAM.Enabled && (c.IAM.ClusterName == "" || c.IAM.Username == "" || c.IAM.Region == "") {
		return errors.New("iam authentication requires cluster name, username and region")
	}
	return nil
}

// Timeout returns TimeoutSecond as a duration
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Transport", c.Transport)
	addField("Endpoint", c.Endpoint)
	addField("Timeout", formatTimeout(c.TimeoutSecond))

	addSection("Framing")
	addField("Buffer Size", humanize.IBytes(uint64(c.BufferSize)))
	addField("Max Pending", formatLimit(c.MaxPendingBytes))
	addField("Workers per Conn", fmt.Sprintf("%d", c.MaxWorkersPerConn))

	if c.Transport == TransportTCP {
		addSection("TCP")
		addField("No Delay", fmt.Sprintf("%t", c.TCP.TCPNoDelay))
		addField("Keep Alive", formatTimeout(int64(c.TCP.TCPKeepAliveSec)))
		addField("Linger", fmt.Sprintf("%d sec", c.TCP.TCPLingerSec))
	}

	if c.IAM.Enabled {
		addSection("IAM Authentication")
		addField("Cluster", c.IAM.ClusterName)
		addField("User", c.IAM.Username)
		addField("Region", c.IAM.Region)
		addField("Service", c.IAM.Service)
		addField("Refresh Interval", fmt.Sprintf("%d min", c.IAM.RefreshIntervalMinutes))
	}

	addSection("Observability")
	addField("Metrics Endpoint", orDisabled(c.MetricsEndpoint))
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the configuration of an engine client
type ClientConfig struct {
	// Transport is the dial type, "unix" or "tcp"
	Transport string
	Endpoints []string

	// ConnectionsPerEndpoint is the number of connections opened to every endpoint
	ConnectionsPerEndpoint int
	// RetryCount is the number of attempts for a request that could not be written
	RetryCount int
	// BufferSize is the initial capacity of each connection's response buffer
	BufferSize int

	TimeoutSecond int64

	Socket SocketConf
	TCP    TCPConf
}

// DefaultClientConfig returns a unix socket client configuration for endpoint
func DefaultClientConfig(endpoints ...string) ClientConfig {
	return ClientConfig{
		Transport:              TransportUnix,
		Endpoints:              endpoints,
		ConnectionsPerEndpoint: 1,
		RetryCount:             3,
		BufferSize:             DefaultUnixBufferSize,
		TimeoutSecond:          5,
		TCP:                    TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
	}
}

// Timeout returns TimeoutSecond as a duration
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder
	sb.WriteString("\nRPC CLIENT\n")
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Transport", c.Transport))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Endpoints", strings.Join(c.Endpoints, ", ")))
	sb.WriteString(fmt.Sprintf("  %-22s: %d\n", "Conns per Endpoint", c.ConnectionsPerEndpoint))
	sb.WriteString(fmt.Sprintf("  %-22s: %d\n", "Retries", c.RetryCount))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Buffer Size", humanize.IBytes(uint64(c.BufferSize))))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Timeout", formatTimeout(c.TimeoutSecond)))
	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func formatTimeout(sec int64) string {
	if sec <= 0 {
		return "disabled"
	}
	return fmt.Sprintf("%d sec", sec)
}

func formatLimit(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return humanize.IBytes(uint64(n))
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}

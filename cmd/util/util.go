package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/glidecore/lib/args"
	"github.com/ValentinKolb/glidecore/rpc/common"
	"github.com/ValentinKolb/glidecore/rpc/transport"
	"github.com/ValentinKolb/glidecore/rpc/transport/tcp"
	"github.com/ValentinKolb/glidecore/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (GLIDE_<FLAG>)
	EnvPrefix = "glide"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and binds environment variables to viper
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupSocketFlags adds the socket flags shared by server and client commands
func SetupSocketFlags(cmd *cobra.Command) {
	key := "transport"
	cmd.PersistentFlags().String(key, common.TransportUnix, WrapString("The transport to use (unix, tcp)"))

	key = "buffer-size"
	cmd.PersistentFlags().Int(key, common.DefaultUnixBufferSize/1024, WrapString("The initial size of each connection's backing buffer (in KB)"))

	key = "socket-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The kernel write buffer size of each socket (in KB, 0 keeps the os default)"))

	key = "socket-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The kernel read buffer size of each socket (in KB, 0 keeps the os default)"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time (in seconds, only for tcp, -1 keeps the os default)"))
}

// SetupRPCClientFlags adds the client connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	SetupSocketFlags(cmd)

	key := "timeout"
	cmd.PersistentFlags().Int(key, 5, WrapString("The timeout in seconds of a single request"))

	key = "endpoints"
	cmd.PersistentFlags().String(key, "/tmp/glide.sock", WrapString("The address of the engine. Multiple endpoints can be specified as a comma-separated list"))

	key = "conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry a request that could not be written"))
}

// GetSocketConf reads the socket settings from viper
func GetSocketConf() (common.SocketConf, common.TCPConf) {
	return common.SocketConf{
			WriteBufferSize: viper.GetInt("socket-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("socket-read-buffer") * 1024,
		}, common.TCPConf{
			TCPNoDelay:      viper.GetBool("tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("tcp-linger"),
		}
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() common.ClientConfig {
	socket, tcpConf := GetSocketConf()

	return common.ClientConfig{
		Transport:              viper.GetString("transport"),
		Endpoints:              strings.Split(viper.GetString("endpoints"), ","),
		ConnectionsPerEndpoint: viper.GetInt("conn-per-endpoint"),
		RetryCount:             viper.GetInt("retries"),
		BufferSize:             viper.GetInt("buffer-size") * 1024,
		TimeoutSecond:          viper.GetInt64("timeout"),
		Socket:                 socket,
		TCP:                    tcpConf,
	}
}

// GetClientTransport creates the client transport named by name
func GetClientTransport(name string) (transport.IRPCClientTransport, error) {
	switch name {
	case common.TransportTCP:
		return tcp.NewTCPClientTransport(), nil
	case common.TransportUnix:
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// GetServerTransport creates the server transport named by name, resolving
// handles from table
func GetServerTransport(name string, table *args.Table) (transport.IRPCServerTransport, error) {
	switch name {
	case common.TransportTCP:
		return tcp.NewTCPServerTransportWithTable(table), nil
	case common.TransportUnix:
		return unix.NewUnixServerTransportWithTable(table), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

package bench

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ValentinKolb/glidecore/cmd/util"
	"github.com/ValentinKolb/glidecore/lib/args"
	"github.com/ValentinKolb/glidecore/lib/request"
	"github.com/ValentinKolb/glidecore/rpc/client"
	"github.com/ValentinKolb/glidecore/rpc/common"
	"github.com/ValentinKolb/glidecore/rpc/server"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("bench")

var (
	benchOpts    = options{}
	benchCommand = request.Echo
	benchHandles = false
	benchEmbed   = false

	// BenchCmd runs a load test against an engine host
	BenchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Measure request throughput and latency",
		Long: `Send requests from concurrent clients and report throughput and latency percentiles.
With --embedded the engine runs in this process, which is required for --handles: handle arguments
only exist in the argument table of the process that registered them.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	util.SetupRPCClientFlags(BenchCmd)

	key := "clients"
	BenchCmd.Flags().Int(key, 16, util.WrapString("Number of concurrent clients"))

	key = "requests"
	BenchCmd.Flags().Int(key, 100_000, util.WrapString("Total number of requests"))

	key = "rate"
	BenchCmd.Flags().Int(key, 0, util.WrapString("Maximum requests per second over all clients (0 is unlimited)"))

	key = "data-size"
	BenchCmd.Flags().Int(key, 64, util.WrapString("Size of the payload of each request in bytes"))

	key = "command"
	BenchCmd.Flags().String(key, "echo", util.WrapString("The command to send (ping, echo, set)"))

	key = "handles"
	BenchCmd.Flags().Bool(key, false, util.WrapString("Pass arguments by handle instead of inline (requires --embedded)"))

	key = "embedded"
	BenchCmd.Flags().Bool(key, false, util.WrapString("Run the engine in this process instead of connecting to --endpoints"))

	key = "log-level"
	BenchCmd.Flags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	benchOpts = options{
		Clients:  viper.GetInt("clients"),
		Requests: viper.GetInt("requests"),
		Rate:     viper.GetInt("rate"),
		DataSize: viper.GetInt("data-size"),
	}
	benchHandles = viper.GetBool("handles")
	benchEmbed = viper.GetBool("embedded")

	switch t, _ := request.ParseRequestType(viper.GetString("command")); t {
	case request.Ping, request.Echo, request.Set:
		benchCommand = t
	default:
		return fmt.Errorf("unsupported command %q (expected ping, echo or set)", viper.GetString("command"))
	}

	if benchHandles && !benchEmbed {
		return fmt.Errorf("--handles requires --embedded")
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := util.GetClientConfig()

	if benchEmbed {
		dir, err := os.MkdirTemp("", "glide-bench-")
		if err != nil {
			return fmt.Errorf("failed to create socket directory: %w", err)
		}
		defer os.RemoveAll(dir)

		endpoint := filepath.Join(dir, "glide.sock")
		closeServer, err := startEmbedded(endpoint)
		if err != nil {
			return err
		}
		defer closeServer()

		config.Transport = common.TransportUnix
		config.Endpoints = []string{endpoint}
	}

	t, err := util.GetClientTransport(config.Transport)
	if err != nil {
		return err
	}
	c := client.NewClient(t, args.Default)
	if err := c.Connect(config); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Close()

	fmt.Println(config.String())
	fmt.Printf("command %s, %d clients, %d requests, %d byte payload, handles %t\n\n",
		benchCommand, benchOpts.Clients, benchOpts.Requests, benchOpts.DataSize, benchHandles)

	res, err := runBenchmark(ctx, benchOpts, requestFunc(c))
	if err != nil {
		return err
	}

	res.Print(os.Stdout)
	return nil
}

// requestFunc returns the call issued by every benchmark client
func requestFunc(c *client.Client) func() error {
	payload := make([]byte, benchOpts.DataSize)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}

	var arguments [][]byte
	switch benchCommand {
	case request.Echo:
		arguments = [][]byte{payload}
	case request.Set:
		arguments = [][]byte{[]byte("bench"), payload}
	}

	if benchHandles {
		return func() error {
			_, err := c.DoHandle(benchCommand, arguments...)
			return err
		}
	}
	return func() error {
		_, err := c.Do(benchCommand, arguments...)
		return err
	}
}

// startEmbedded serves an echo engine on endpoint in this process
func startEmbedded(endpoint string) (func(), error) {
	serverConfig := common.DefaultServerConfig(endpoint)

	t, err := util.GetServerTransport(common.TransportUnix, args.Default)
	if err != nil {
		return nil, err
	}
	serv := server.NewRPCServer(serverConfig, t, server.EchoDispatcher{})

	serveErr := make(chan error, 1)
	go func() { serveErr <- serv.Serve() }()

	// Listen creates the socket file before accepting
	if err := waitForSocket(endpoint, serveErr); err != nil {
		serv.Close()
		return nil, err
	}

	return func() {
		if err := serv.Close(); err != nil {
			Logger.Warningf("failed to close embedded engine: %v", err)
		}
		<-serveErr
	}, nil
}

// waitForSocket polls until the socket file at endpoint exists
func waitForSocket(endpoint string, serveErr <-chan error) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(5 * time.Second)

	for {
		if _, err := os.Stat(endpoint); err == nil {
			return nil
		}

		select {
		case err := <-serveErr:
			return fmt.Errorf("embedded engine stopped: %w", err)
		case <-deadline:
			return fmt.Errorf("embedded engine did not start listening on %s", endpoint)
		case <-ticker.C:
		}
	}
}

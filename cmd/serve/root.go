package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValentinKolb/glidecore/cmd/util"
	"github.com/ValentinKolb/glidecore/lib/args"
	"github.com/ValentinKolb/glidecore/lib/credentials"
	"github.com/ValentinKolb/glidecore/rpc/common"
	"github.com/ValentinKolb/glidecore/rpc/server"
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	serveCmdConfig = common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the engine host",
		Long:    `Start the engine host with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is GLIDE_<flag> (e.g. GLIDE_MAX_WORKERS=32)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// add flags
	util.SetupSocketFlags(ServeCmd)

	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "/tmp/glide.sock", util.WrapString("The address on which the engine will listen (e.g. /tmp/glide.sock, localhost:6380)"))

	key = "max-pending"
	ServeCmd.PersistentFlags().Int(key, common.DefaultMaxPendingBytes/(1024*1024), util.WrapString("Close a connection whose unconsumed input exceeds this size (in MB, 0 disables the limit)"))

	key = "max-workers"
	ServeCmd.PersistentFlags().Int(key, common.DefaultMaxWorkersPerConn, util.WrapString("How many requests of one connection are executed concurrently"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, util.WrapString("Idle timeout of a connection in seconds (0 disables it)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", util.WrapString("Serve prometheus metrics on this address under /metrics (e.g. localhost:9100, empty disables it)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "iam"
	ServeCmd.PersistentFlags().Bool(key, false, util.WrapString("Answer AUTH with an IAM token that is refreshed in the background"))

	key = "iam-cluster"
	ServeCmd.PersistentFlags().String(key, "", util.WrapString("(IAM) Name of the ElastiCache or MemoryDB cluster"))

	key = "iam-user"
	ServeCmd.PersistentFlags().String(key, "", util.WrapString("(IAM) User the token is generated for"))

	key = "iam-region"
	ServeCmd.PersistentFlags().String(key, "", util.WrapString("(IAM) AWS region of the cluster"))

	key = "iam-service"
	ServeCmd.PersistentFlags().String(key, string(credentials.ElastiCache), util.WrapString("(IAM) Service of the cluster (elasticache, memorydb)"))

	key = "iam-serverless"
	ServeCmd.PersistentFlags().Bool(key, false, util.WrapString("(IAM) The cluster is an ElastiCache serverless cache"))

	key = "iam-refresh"
	ServeCmd.PersistentFlags().Int(key, int(credentials.DefaultRefreshInterval/time.Minute), util.WrapString("(IAM) Token refresh interval in minutes"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig = common.DefaultServerConfig(viper.GetString("endpoint"))
	serveCmdConfig.Transport = viper.GetString("transport")
	serveCmdConfig.BufferSize = viper.GetInt("buffer-size") * 1024
	serveCmdConfig.MaxPendingBytes = viper.GetInt("max-pending") * 1024 * 1024
	serveCmdConfig.MaxWorkersPerConn = viper.GetInt("max-workers")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Socket, serveCmdConfig.TCP = util.GetSocketConf()

	serveCmdConfig.IAM = common.IAMConf{
		Enabled:                viper.GetBool("iam"),
		ClusterName:            viper.GetString("iam-cluster"),
		Username:               viper.GetString("iam-user"),
		Region:                 viper.GetString("iam-region"),
		Service:                viper.GetString("iam-service"),
		Serverless:             viper.GetBool("iam-serverless"),
		RefreshIntervalMinutes: viper.GetInt("iam-refresh"),
	}

	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	return serveCmdConfig.Validate()
}

// run starts the engine host and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := util.GetServerTransport(serveCmdConfig.Transport, args.Default)
	if err != nil {
		return err
	}

	var dispatcher server.IDispatcher = server.EchoDispatcher{}

	var tokens *credentials.Manager
	if serveCmdConfig.IAM.Enabled {
		tokens, err = newTokenManager(ctx, serveCmdConfig.IAM)
		if err != nil {
			return err
		}
		dispatcher = server.AuthDispatcher{
			Next:     dispatcher,
			Tokens:   tokens,
			Username: serveCmdConfig.IAM.Username,
		}
	}

	serv := server.NewRPCServer(serveCmdConfig, t, dispatcher)

	// process wide state of the argument table
	metrics.NewGauge(`glide_args_table_handles`, func() float64 {
		return float64(args.Default.Len())
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(serv.Serve)

	var metricsSrv *http.Server
	if serveCmdConfig.MetricsEndpoint != "" {
		metricsSrv = newMetricsServer(serveCmdConfig.MetricsEndpoint)
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
	}

	if tokens != nil {
		tokens.Start()
	}

	// shutdown on signal or when one of the tasks failed
	g.Go(func() error {
		<-ctx.Done()
		server.Logger.Infof("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := serv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close server: %w", err))
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop metrics server: %w", err))
			}
		}
		if tokens != nil {
			if err := tokens.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop token refresh: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// newTokenManager creates a credential manager for the IAM settings. The
// initial token is generated before the server accepts connections.
func newTokenManager(ctx context.Context, conf common.IAMConf) (*credentials.Manager, error) {
	service, err := credentials.ParseServiceType(conf.Service)
	if err != nil {
		return nil, err
	}

	gen, err := credentials.NewIAMTokenGenerator(credentials.IAMConfig{
		ClusterName: conf.ClusterName,
		Username:    conf.Username,
		Region:      conf.Region,
		Service:     service,
		Serverless:  conf.Serverless,
	}, nil)
	if err != nil {
		return nil, err
	}

	var opts []credentials.Option
	if conf.RefreshIntervalMinutes > 0 {
		opts = append(opts, credentials.WithRefreshInterval(time.Duration(conf.RefreshIntervalMinutes)*time.Minute))
	}

	return credentials.NewManager(ctx, gen, opts...)
}

// newMetricsServer serves all registered metrics in prometheus format
func newMetricsServer(endpoint string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	return &http.Server{
		Addr:              endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

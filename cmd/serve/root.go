package serve

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/dRow/cmd/util"
	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/server"
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start a dRow reference node",
		Long: `Start a dRow node answering insert, delete and health check requests from a
local table store. The configuration can be set via command line flags or
environment variables. The format of the environment variables is
DROW_<flag> (e.g. DROW_DATABASES=metrics,logs)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the node will listen (e.g. localhost:8080, /tmp/drow.sock, ...)"))

	key = "databases"
	ServeCmd.PersistentFlags().String(key, common.DefaultDatabase, cmdUtil.WrapString("Comma-separated list of databases the node serves. Requests for other databases are rejected"))

	key = "storage"
	ServeCmd.PersistentFlags().String(key, "memory", cmdUtil.WrapString("Table engine (memory, sqlite)"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory of the sqlite files (one per database). Empty keeps sqlite in memory"))

	key = "tables"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional file declaring table schemas up front (toml or yaml)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Duration(key, 0, cmdUtil.WrapString("Read/write timeout of a connection, 0 disables it"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Requests of one connection processed in parallel"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("Size of pooled read buffers (in KB)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval (in seconds, tcp only)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Serve prometheus metrics on this address (e.g. localhost:9090), empty disables it"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Databases = cmdUtil.SplitList(viper.GetString("databases"))
	serveCmdConfig.Storage = viper.GetString("storage")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TablesFile = viper.GetString("tables")
	serveCmdConfig.Timeout = viper.GetDuration("timeout")
	serveCmdConfig.MaxWorkersPerConn = viper.GetInt("workers-per-conn")
	serveCmdConfig.BufferSize = viper.GetInt("buffer-size") * 1024
	serveCmdConfig.TCPConf = common.TCPConf{
		TCPNoDelay:      viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
		TCPLingerSec:    -1,
	}
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if len(serveCmdConfig.Databases) == 0 {
		return fmt.Errorf("at least one database is required")
	}
	return nil
}

// run starts the node and blocks until it is stopped
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport(*serveCmdConfig)
	if err != nil {
		return err
	}

	st, err := server.NewStore(*serveCmdConfig)
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(*serveCmdConfig, t, s, st)

	if serveCmdConfig.MetricsEndpoint != "" {
		go serveMetrics(serveCmdConfig.MetricsEndpoint)
	}

	// close the node on SIGINT / SIGTERM so sqlite files are flushed
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		server.Logger.Infof("Received %s, shutting down", sig)
		if err := serv.Close(); err != nil {
			server.Logger.Errorf("Failed to close server: %v", err)
		}
	}()

	if err := serv.Serve(); err != nil {
		_ = serv.Close()
		return err
	}
	return serv.Close()
}

// serveMetrics exposes all metrics in prometheus format on /metrics
func serveMetrics(endpoint string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	srv := &http.Server{
		Addr:              endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.Logger.Infof("Serving metrics on http://%s/metrics", endpoint)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		server.Logger.Errorf("Metrics endpoint failed: %v", err)
	}
}

package util

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/serializer"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"github.com/ValentinKolb/dRow/rpc/transport/grpc"
	"github.com/ValentinKolb/dRow/rpc/transport/http"
	"github.com/ValentinKolb/dRow/rpc/transport/tcp"
	"github.com/ValentinKolb/dRow/rpc/transport/unix"
	"github.com/ValentinKolb/dRow/rpc/transport/ws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. DROW_TIMEOUT)
	EnvPrefix = "drow"
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

// --------------------------------------------------------------------------
// Client Configuration
// --------------------------------------------------------------------------

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	defaults := common.DefaultClientConfig()

	key := "config"
	cmd.PersistentFlags().String(key, "", WrapString("Optional client config file (yaml, toml or json). Flags and environment variables are ignored if set"))

	key = "database"
	cmd.PersistentFlags().String(key, defaults.Database, WrapString("The logical database all requests target"))

	key = "endpoints"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("Comma-separated list of node addresses. Requests fail over to the next node in this order"))

	key = "timeout"
	cmd.PersistentFlags().Duration(key, defaults.Timeout, WrapString("Timeout of a single attempt (e.g. 500ms, 10s)"))

	key = "dial-timeout"
	cmd.PersistentFlags().Duration(key, defaults.DialTimeout, WrapString("Timeout for establishing a connection to a node"))

	key = "max-attempts"
	cmd.PersistentFlags().Int(key, 0, WrapString("Maximum number of nodes tried per request (0 tries every node once)"))

	key = "balancer"
	cmd.PersistentFlags().String(key, defaults.Balancer, WrapString("Node the dispatch starts at (round-robin, random, key-hash)"))

	key = "transport-compression"
	cmd.PersistentFlags().String(key, defaults.Transport.Compression, WrapString("Compression of the grpc transport (none, gzip, zstd)"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, tcp only)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time (in seconds, tcp only, negative keeps the OS default)"))
}

// InitConfig loads .env files and makes viper read DROW_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads the client configuration from viper, or from the
// file given by --config
func GetClientConfig() (common.ClientConfig, error) {
	if path := viper.GetString("config"); path != "" {
		return common.LoadClientConfig(path)
	}

	conf := common.DefaultClientConfig()
	conf.Database = viper.GetString("database")
	conf.Endpoints = SplitList(viper.GetString("endpoints"))
	conf.Timeout = viper.GetDuration("timeout")
	conf.DialTimeout = viper.GetDuration("dial-timeout")
	conf.MaxAttempts = viper.GetInt("max-attempts")
	conf.Balancer = viper.GetString("balancer")
	conf.Transport = common.ClientTransportConfig{
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
		},
		Compression: viper.GetString("transport-compression"),
	}

	if len(conf.Endpoints) == 0 {
		return conf, common.ErrNoPeers
	}
	return conf, nil
}

// --------------------------------------------------------------------------
// Serializer and Transport
// --------------------------------------------------------------------------

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s (expected binary or json)", viper.GetString("serializer"))
	}
}

// GetConnector creates the client connector based on configuration
func GetConnector() (transport.IClientConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPClientConnector(), nil
	case "unix":
		return unix.NewUnixClientConnector(), nil
	case "grpc":
		return grpc.NewGRPCClientConnector(), nil
	case "http":
		return http.NewHttpClientConnector(), nil
	case "ws":
		return ws.NewWSClientConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (expected tcp, unix, grpc, http or ws)", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server transport based on configuration
func GetServerTransport(config common.ServerConfig) (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPServerTransport(config), nil
	case "unix":
		return unix.NewUnixServerTransport(config), nil
	case "grpc":
		return grpc.NewGRPCServerTransport(config), nil
	case "http":
		return http.NewHttpServerTransport(config), nil
	case "ws":
		return ws.NewWSServerTransport(config), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (expected tcp, unix, grpc, http or ws)", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Output
// --------------------------------------------------------------------------

// WriteStructured writes v as json or yaml. It returns false for any other
// format, the caller renders text output itself.
func WriteStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(v)
	default:
		return false, nil
	}
}

// SplitList splits a comma-separated list and drops empty entries
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Millis formats a duration as fractional milliseconds
func Millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

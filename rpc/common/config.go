package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultDialTimeout = 5 * time.Second
	DefaultDatabase    = "public"
)

// --------------------------------------------------------------------------
// Transport configuration (shared by client and server)
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings for stream transports
type SocketConf struct {
	WriteBufferSize int `mapstructure:"write-buffer"`
	ReadBufferSize  int `mapstructure:"read-buffer"`
}

// TCPConf holds TCP specific settings, ignored by other transports
type TCPConf struct {
	TCPNoDelay      bool `mapstructure:"tcp-nodelay"`
	TCPKeepAliveSec int  `mapstructure:"tcp-keepalive"`
	TCPLingerSec    int  `mapstructure:"tcp-linger"` // negative keeps the OS default
}

// ClientTransportConfig configures how a client connection is established
type ClientTransportConfig struct {
	SocketConf `mapstructure:",squash"`
	TCPConf    `mapstructure:",squash"`

	// Compression is used by the grpc transport (none, gzip, zstd)
	Compression string `mapstructure:"compression"`
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all parameters of a database client
type ClientConfig struct {
	// Database is the logical database every request targets
	Database string `mapstructure:"database"`

	// Endpoints are the addresses of all nodes, in configuration order
	Endpoints []string `mapstructure:"endpoints"`

	// Timeout is applied to every single dispatch attempt
	Timeout time.Duration `mapstructure:"timeout"`

	// DialTimeout bounds establishing one channel
	DialTimeout time.Duration `mapstructure:"dial-timeout"`

	// MaxAttempts limits the attempts per request, 0 means one per endpoint
	MaxAttempts int `mapstructure:"max-attempts"`

	// Balancer selects the load balancing policy (round-robin, random, key-hash)
	Balancer string `mapstructure:"balancer"`

	Transport ClientTransportConfig `mapstructure:"transport"`
}

// DefaultClientConfig returns a client configuration with default values
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Database:    DefaultDatabase,
		Timeout:     DefaultTimeout,
		DialTimeout: DefaultDialTimeout,
		Balancer:    "round-robin",
		Transport: ClientTransportConfig{
			TCPConf: TCPConf{
				TCPNoDelay:   true,
				TCPLingerSec: -1,
			},
			Compression: "gzip",
		},
	}
}

// AttemptLimit returns the number of attempts a request may use with n peers
func (c *ClientConfig) AttemptLimit(n int) int {
	if c.MaxAttempts > 0 && c.MaxAttempts < n {
		return c.MaxAttempts
	}
	return n
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Database", c.Database)
	addField("Timeout", c.Timeout.String())
	addField("Dial Timeout", c.DialTimeout.String())
	if c.MaxAttempts > 0 {
		addField("Max Attempts", strconv.Itoa(c.MaxAttempts))
	} else {
		addField("Max Attempts", "one per endpoint")
	}
	addField("Balancer", c.Balancer)

	addSection("Transport")
	addField("Compression", c.Transport.Compression)
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))

	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}

// LoadClientConfig reads a client configuration file (yaml, toml or json,
// chosen by extension). Missing keys keep their default values.
func LoadClientConfig(path string) (ClientConfig, error) {
	conf := DefaultClientConfig()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return conf, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&conf); err != nil {
		return conf, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if len(conf.Endpoints) == 0 {
		return conf, fmt.Errorf("config %s: %w", path, ErrNoPeers)
	}
	return conf, nil
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all parameters of a reference node
type ServerConfig struct {
	// Endpoint is the listen address (host:port, or a socket path for unix)
	Endpoint string

	// Timeout bounds reading and writing a single frame, 0 disables it
	Timeout time.Duration

	// Databases served by the node, every other database is rejected
	Databases []string

	// Storage selects the table engine (memory, sqlite)
	Storage string

	// DataDir holds the files of persistent engines
	DataDir string

	// TablesFile optionally declares table schemas up front (toml or yaml)
	TablesFile string

	// Transport tuning
	MaxWorkersPerConn int
	BufferSize        int
	SocketConf
	TCPConf

	// MetricsEndpoint serves prometheus metrics over http if set
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
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
	addField("Endpoint", c.Endpoint)
	addField("Timeout", c.Timeout.String())
	addField("Workers Per Conn", strconv.Itoa(c.MaxWorkersPerConn))
	addField("Buffer Size", fmt.Sprintf("%d KB", c.BufferSize/1024))

	addSection("Storage")
	addField("Engine", c.Storage)
	if c.DataDir != "" {
		addField("Data Dir", c.DataDir)
	}
	if c.TablesFile != "" {
		addField("Tables File", c.TablesFile)
	}

	addSection("Databases")
	for i, db := range c.Databases {
		addField(strconv.Itoa(i), db)
	}

	addSection("Observability")
	addField("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	} else {
		addField("Metrics Endpoint", "disabled")
	}

	return sb.String()
}

package server

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/ValentinKolb/dRow/lib/store"
	"github.com/ValentinKolb/dRow/rpc/client"
	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/encoder"
	"github.com/ValentinKolb/dRow/rpc/serializer"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"github.com/ValentinKolb/dRow/rpc/transport/grpc"
	httptransport "github.com/ValentinKolb/dRow/rpc/transport/http"
	"github.com/ValentinKolb/dRow/rpc/transport/tcp"
	"github.com/ValentinKolb/dRow/rpc/transport/unix"
	"github.com/ValentinKolb/dRow/rpc/transport/ws"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func cpuBatch(t *testing.T, hosts ...string) *rows.RowBatch {
	t.Helper()
	b := rows.NewBuilder("cpu",
		rows.Timestamp("ts", rows.TimestampMillisecond),
		rows.Tag("host", rows.String),
		rows.Field("usage", rows.Float64),
	)
	for i, host := range hosts {
		require.NoError(t, b.AddRow(int64(i), host, float64(i)/10))
	}
	batch, err := b.Build()
	require.NoError(t, err)
	return batch
}

func newMemoryStore(t *testing.T, databases ...string) store.IStore {
	t.Helper()
	st, err := NewStore(common.ServerConfig{Storage: "memory", Databases: databases})
	require.NoError(t, err)
	return st
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// --------------------------------------------------------------------------
// Adapter
// --------------------------------------------------------------------------

func TestAdapterInsertAndDelete(t *testing.T) {
	st := newMemoryStore(t, "metrics")
	defer st.Close()
	adapter := NewIStoreServerAdapter()

	req, err := encoder.EncodeInsert("metrics", cpuBatch(t, "a", "b", "c"))
	require.NoError(t, err)
	resp := adapter.Handle(req, st)
	require.Equal(t, common.StatusOK, resp.Code, resp.Err)
	require.Equal(t, uint32(3), resp.AffectedRows)

	req, err = encoder.EncodeDelete("metrics", "cpu", []string{"host"}, cpuBatch(t, "a", "x"))
	require.NoError(t, err)
	resp = adapter.Handle(req, st)
	require.Equal(t, common.StatusOK, resp.Code, resp.Err)
	require.Equal(t, uint32(1), resp.AffectedRows)

	count, err := st.Count("metrics", "cpu")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestAdapterStatusCodes(t *testing.T) {
	st := newMemoryStore(t, "metrics")
	defer st.Close()
	adapter := NewIStoreServerAdapter()

	req, err := encoder.EncodeInsert("metrics", cpuBatch(t, "a"))
	require.NoError(t, err)
	require.Equal(t, common.StatusOK, adapter.Handle(req, st).Code)

	// same table, different type for "usage"
	b := rows.NewBuilder("cpu",
		rows.Timestamp("ts", rows.TimestampMillisecond),
		rows.Tag("host", rows.String),
		rows.Field("usage", rows.Int64),
	)
	require.NoError(t, b.AddRow(int64(1), "a", int64(2)))
	mismatch, err := b.Build()
	require.NoError(t, err)
	req, err = encoder.EncodeInsert("metrics", mismatch)
	require.NoError(t, err)
	require.Equal(t, common.StatusSchemaMismatch, adapter.Handle(req, st).Code)

	keys, err := rows.NewRowBatch("memory", []rows.ColumnSchema{rows.Tag("host", rows.String)}, [][]any{{"a"}})
	require.NoError(t, err)
	req, err = encoder.EncodeDelete("metrics", "memory", []string{"host"}, keys)
	require.NoError(t, err)
	require.Equal(t, common.StatusTableNotFound, adapter.Handle(req, st).Code)

	req, err = encoder.EncodeInsert("other", cpuBatch(t, "a"))
	require.NoError(t, err)
	require.Equal(t, common.StatusUnknownDatabase, adapter.Handle(req, st).Code)

	resp := adapter.Handle(&common.EncodedRequest{Kind: common.KindUnknown, Database: "metrics"}, st)
	require.Equal(t, common.StatusInvalidRequest, resp.Code)

	resp = adapter.Handle(common.NewHealthCheckRequest("metrics"), st)
	require.Equal(t, common.StatusOK, resp.Code)
	require.Equal(t, common.KindHealthCheck, resp.Kind)

	resp = adapter.Handle(common.NewHealthCheckRequest("metrics"), nil)
	require.Equal(t, common.StatusInternal, resp.Code)
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		code common.StatusCode
	}{
		{store.NewError(store.RetCUnknownDatabase, "x"), common.StatusUnknownDatabase},
		{store.NewError(store.RetCTableNotFound, "x"), common.StatusTableNotFound},
		{store.NewError(store.RetCSchemaMismatch, "x"), common.StatusSchemaMismatch},
		{store.NewError(store.RetCUnsupportedOperation, "x"), common.StatusUnsupported},
		{store.NewError(store.RetCInvalidOperation, "x"), common.StatusInvalidRequest},
		{store.NewError(store.RetCInternalError, "x"), common.StatusInternal},
		{errors.New("plain"), common.StatusInternal},
	}
	for _, tt := range tests {
		require.Equal(t, tt.code, statusCode(tt.err), tt.err.Error())
	}
}

// --------------------------------------------------------------------------
// Handler
// --------------------------------------------------------------------------

func TestHandler(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	s := NewRPCServer(common.ServerConfig{}, tcp.NewTCPServerTransport(common.ServerConfig{}), ser, newMemoryStore(t, "metrics"))
	defer s.Close()
	handle := s.Handler()

	var resp common.Response
	require.NoError(t, ser.DeserializeResponse(handle([]byte{0xff, 0x00}), &resp))
	require.Equal(t, common.StatusInvalidRequest, resp.Code)
	require.Equal(t, common.KindUnknown, resp.Kind)

	req, err := ser.SerializeRequest(common.NewHealthCheckRequest("unknown"))
	require.NoError(t, err)
	require.NoError(t, ser.DeserializeResponse(handle(req), &resp))
	require.Equal(t, common.StatusUnknownDatabase, resp.Code)

	encoded, err := encoder.EncodeInsert("metrics", cpuBatch(t, "a", "b"))
	require.NoError(t, err)
	req, err = ser.SerializeRequest(encoded)
	require.NoError(t, err)
	require.NoError(t, ser.DeserializeResponse(handle(req), &resp))
	require.Equal(t, common.StatusOK, resp.Code, resp.Err)
	require.Equal(t, uint32(2), resp.AffectedRows)
}

// --------------------------------------------------------------------------
// Store Setup
// --------------------------------------------------------------------------

func TestNewStore(t *testing.T) {
	_, err := NewStore(common.ServerConfig{Storage: "rocksdb", Databases: []string{"metrics"}})
	require.Error(t, err)

	_, err = NewStore(common.ServerConfig{Storage: "memory"})
	require.Error(t, err)

	dataDir := t.TempDir()
	st, err := NewStore(common.ServerConfig{Storage: "sqlite", DataDir: dataDir, Databases: []string{"metrics", "logs"}})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"metrics", "logs"}, st.Databases())

	_, err = st.Insert("metrics", cpuBatch(t, "a"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	require.FileExists(t, filepath.Join(dataDir, "metrics.db"))
}

func TestTablesFile(t *testing.T) {
	tomlPath := writeFile(t, "tables.toml", `
[[tables]]
database = "metrics"
name = "cpu"
columns = ["ts:ts_ms:timestamp", "host:string:tag", "usage:float64"]
`)
	yamlPath := writeFile(t, "tables.yaml", `
tables:
  - database: metrics
    name: cpu
    columns: ["ts:ts_ms:timestamp", "host:string:tag", "usage:float64"]
`)

	for _, path := range []string{tomlPath, yamlPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			file, err := LoadTablesFile(path)
			require.NoError(t, err)
			require.Len(t, file.Tables, 1)
			require.Equal(t, "cpu", file.Tables[0].Name)

			schemas, err := file.Tables[0].Schemas()
			require.NoError(t, err)
			require.Equal(t, []rows.ColumnSchema{
				rows.Timestamp("ts", rows.TimestampMillisecond),
				rows.Tag("host", rows.String),
				rows.Field("usage", rows.Float64),
			}, schemas)

			st, err := NewStore(common.ServerConfig{Databases: []string{"metrics"}, TablesFile: path})
			require.NoError(t, err)
			defer st.Close()

			declared, found, err := st.Schema("metrics", "cpu")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, schemas, declared)
		})
	}
}

func TestTablesFileErrors(t *testing.T) {
	_, err := LoadTablesFile(writeFile(t, "tables.json", `{}`))
	require.Error(t, err)

	_, err = LoadTablesFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	bad := writeFile(t, "bad.toml", `
[[tables]]
database = "metrics"
name = "cpu"
columns = ["ts:unknown"]
`)
	_, err = NewStore(common.ServerConfig{Databases: []string{"metrics"}, TablesFile: bad})
	require.Error(t, err)

	unknownDB := writeFile(t, "unknown.yml", `
tables:
  - database: logs
    name: cpu
    columns: ["ts:ts_ms:timestamp"]
`)
	_, err = NewStore(common.ServerConfig{Databases: []string{"metrics"}, TablesFile: unknownDB})
	require.Error(t, err)
}

// --------------------------------------------------------------------------
// Integration
// --------------------------------------------------------------------------

type transportCase struct {
	name      string
	network   string
	server    func(common.ServerConfig) transport.IRPCServerTransport
	connector transport.IClientConnector
}

func transportCases() []transportCase {
	return []transportCase{
		{"tcp", "tcp", tcp.NewTCPServerTransport, tcp.NewTCPClientConnector()},
		{"unix", "unix", unix.NewUnixServerTransport, unix.NewUnixClientConnector()},
		{"grpc", "tcp", grpc.NewGRPCServerTransport, grpc.NewGRPCClientConnector()},
		{"http", "tcp", httptransport.NewHttpServerTransport, httptransport.NewHttpClientConnector()},
		{"ws", "tcp", ws.NewWSServerTransport, ws.NewWSClientConnector()},
	}
}

// startNode serves a memory store for the given databases and returns its address
func startNode(t *testing.T, tc transportCase, ser serializer.IRPCSerializer, databases ...string) string {
	t.Helper()

	var listener net.Listener
	var err error
	if tc.network == "unix" {
		listener, err = net.Listen("unix", filepath.Join(t.TempDir(), "drow.sock"))
	} else {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
	}
	require.NoError(t, err)

	config := common.ServerConfig{Databases: databases, Timeout: 10 * time.Second}
	s := NewRPCServer(config, tc.server(config), ser, newMemoryStore(t, databases...))

	done := make(chan error, 1)
	go func() { done <- s.ServeListener(listener) }()
	t.Cleanup(func() {
		require.NoError(t, s.Close())
		require.NoError(t, <-done)
	})
	return listener.Addr().String()
}

func TestClientServerIntegration(t *testing.T) {
	for _, tc := range transportCases() {
		t.Run(tc.name, func(t *testing.T) {
			ser := serializer.NewBinarySerializer()
			addr := startNode(t, tc, ser, "metrics")

			config := common.DefaultClientConfig()
			config.Database = "metrics"
			config.Endpoints = []string{addr}

			d, err := client.NewDatabase(config, tc.connector, ser)
			require.NoError(t, err)
			defer d.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			for _, health := range d.HealthCheck(ctx) {
				require.NoError(t, health.Err)
			}

			n, err := d.Insert(ctx, cpuBatch(t, "a", "b", "c"))
			require.NoError(t, err)
			require.Equal(t, uint32(3), n)

			// empty batches are sent as well
			n, err = d.Insert(ctx, cpuBatch(t))
			require.NoError(t, err)
			require.Equal(t, uint32(0), n)

			n, err = d.Delete(ctx, "cpu", []string{"host"}, cpuBatch(t, "b", "z"))
			require.NoError(t, err)
			require.Equal(t, uint32(1), n)

			// a conflicting column type is rejected and not retried
			b := rows.NewBuilder("cpu",
				rows.Timestamp("ts", rows.TimestampMillisecond),
				rows.Tag("host", rows.Int64),
			)
			require.NoError(t, b.AddRow(int64(1), int64(7)))
			mismatch, err := b.Build()
			require.NoError(t, err)

			_, err = d.Insert(ctx, mismatch)
			var rejected *common.ServerRejected
			require.True(t, errors.As(err, &rejected), "unexpected error: %v", err)
			require.Equal(t, common.StatusSchemaMismatch, rejected.Code)
			require.False(t, common.IsRetriable(err))
		})
	}
}

func TestUnknownDatabaseIsRejected(t *testing.T) {
	tc := transportCases()[0]
	ser := serializer.NewJSONSerializer()
	addr := startNode(t, tc, ser, "metrics")

	config := common.DefaultClientConfig()
	config.Database = "logs"
	config.Endpoints = []string{addr}

	d, err := client.NewDatabase(config, tc.connector, ser)
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = d.Insert(ctx, cpuBatch(t, "a"))
	var rejected *common.ServerRejected
	require.True(t, errors.As(err, &rejected), "unexpected error: %v", err)
	require.Equal(t, common.StatusUnknownDatabase, rejected.Code)

	health := d.HealthCheck(ctx)
	require.Len(t, health, 1)
	require.True(t, errors.As(health[0].Err, &rejected))
}

// corruptRequests writes request envelopes no node can decode
type corruptRequests struct {
	serializer.IRPCSerializer
}

func (corruptRequests) SerializeRequest(*common.EncodedRequest) ([]byte, error) {
	return []byte{0x00}, nil
}

func TestUndecodableRequestIsNotRetried(t *testing.T) {
	tc := transportCases()[0]
	ser := serializer.NewBinarySerializer()
	first := startNode(t, tc, ser, "metrics")
	second := startNode(t, tc, ser, "metrics")

	config := common.DefaultClientConfig()
	config.Database = "metrics"
	config.Endpoints = []string{first, second}

	d, err := client.NewDatabase(config, tc.connector, corruptRequests{ser}, client.WithLoadBalancer(firstNode{}))
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = d.Insert(ctx, cpuBatch(t, "a"))
	var rejected *common.ServerRejected
	require.True(t, errors.As(err, &rejected), "unexpected error: %v", err)
	require.Equal(t, common.StatusInvalidRequest, rejected.Code)
	require.Equal(t, first, rejected.Addr)
	require.False(t, common.IsRetriable(err))

	// the answering channel stays usable and the second node was never dialed
	states := d.Pool().States()
	require.Equal(t, client.StateReady, states[first])
	require.NotContains(t, states, second)
	stats := d.Pool().Stats()
	require.Equal(t, int64(1), stats.Dials)
	require.Zero(t, stats.MarkedBroken)
}

func TestFailoverToLiveNode(t *testing.T) {
	tc := transportCases()[0]
	ser := serializer.NewBinarySerializer()
	live := startNode(t, tc, ser, "metrics")

	// reserve an address nobody listens on
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := l.Addr().String()
	require.NoError(t, l.Close())

	config := common.DefaultClientConfig()
	config.Database = "metrics"
	config.Endpoints = []string{dead, live}
	config.DialTimeout = time.Second

	d, err := client.NewDatabase(config, tc.connector, ser, client.WithLoadBalancer(firstNode{}))
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := d.Insert(ctx, cpuBatch(t, "a", "b"))
	require.NoError(t, err)
	require.Equal(t, uint32(2), n)
}

// firstNode always starts dispatching at the first node
type firstNode struct{}

func (firstNode) Start(string, int) int { return 0 }
func (firstNode) GetName() string        { return "first" }

package server

import (
	"errors"
	"fmt"
	"net"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"

	"github.com/ValentinKolb/dRow/lib/db"
	"github.com/ValentinKolb/dRow/lib/db/engines/memory"
	"github.com/ValentinKolb/dRow/lib/db/engines/sqlite"
	"github.com/ValentinKolb/dRow/lib/store"
	"github.com/ValentinKolb/dRow/lib/store/lstore"
	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/serializer"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("server")

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

var (
	undecodableRequests = metrics.NewCounter("drow_server_undecodable_requests_total")
	affectedRows        = metrics.NewCounter("drow_server_affected_rows_total")
)

func countRequest(kind common.RequestKind, code common.StatusCode) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`drow_server_requests_total{kind=%q,code=%q}`, kind, code)).Inc()
}

// --------------------------------------------------------------------------
// RPC Server
// --------------------------------------------------------------------------

// RPCServer answers encoded requests from a store. It is the reference node
// used by `drow serve` and by the integration tests of the client.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	store      store.IStore
	adapter    IRPCServerAdapter

	closeOnce sync.Once
	closeErr  error
}

// NewRPCServer creates a new RPC server
// It takes a config, transport, serializer and store as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPServerTransport(config),
//		serializer.NewBinarySerializer(),
//		st,
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	store store.IStore,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		store:      store,
		adapter:    NewIStoreServerAdapter(),
	}
	s.transport.RegisterHandler(s.Handler())
	return s
}

// Handler returns the function that answers a single serialized request.
// Requests for databases the store does not serve are rejected.
func (s *RPCServer) Handler() transport.ServerHandleFunc {
	return func(reqBytes []byte) []byte {
		var req common.EncodedRequest
		var resp *common.Response

		if err := s.serializer.DeserializeRequest(reqBytes, &req); err != nil {
			undecodableRequests.Inc()
			resp = common.NewErrorResponse(common.KindUnknown, common.StatusInvalidRequest,
				fmt.Errorf("failed to deserialize request: %w", err))
		} else if !s.store.HasDatabase(req.Database) {
			resp = common.NewErrorResponse(req.Kind, common.StatusUnknownDatabase,
				fmt.Errorf("database %q is not served by this node", req.Database))
		} else {
			// Let the adapter handle the request
			resp = s.adapter.Handle(&req, s.store)
		}

		countRequest(resp.Kind, resp.Code)
		if resp.Code == common.StatusOK {
			affectedRows.Add(int(resp.AffectedRows))
		} else {
			Logger.Debugf("%s request for %q rejected: %s: %s", resp.Kind, req.Database, resp.Code, resp.Err)
		}

		// Return result
		val, err := s.serializer.SerializeResponse(resp)
		if err != nil {
			Logger.Errorf("failed to serialize response: %v", err)
			val, _ = s.serializer.SerializeResponse(common.NewErrorResponse(resp.Kind, common.StatusInternal,
				fmt.Errorf("failed to serialize response: %w", err)))
		}
		return val
	}
}

// Serve listens on the configured endpoint and serves requests until Close
func (s *RPCServer) Serve() error {
	Logger.Infof("Serving databases %v", s.store.Databases())
	Logger.Infof(s.config.String())
	return s.transport.Listen(s.config)
}

// ServeListener serves requests on an existing listener until Close
func (s *RPCServer) ServeListener(listener net.Listener) error {
	Logger.Infof("Serving databases %v on %s", s.store.Databases(), listener.Addr())
	return s.transport.Serve(listener)
}

// Store returns the store the server answers from
func (s *RPCServer) Store() store.IStore {
	return s.store
}

// Close stops the transport and closes the store
func (s *RPCServer) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = errors.Join(s.transport.Close(), s.store.Close())
	})
	return s.closeErr
}

// --------------------------------------------------------------------------
// Store Setup
// --------------------------------------------------------------------------

// NewStore creates the store described by the storage section of the config
// and declares the tables of config.TablesFile (if set).
func NewStore(config common.ServerConfig) (store.IStore, error) {
	var factory store.DBFactory
	switch config.Storage {
	case "", string(db.ImplMemory):
		factory = func(string) (db.TableDB, error) {
			return memory.NewMemoryDB(nil), nil
		}
	case string(db.ImplSQLite):
		dataDir := config.DataDir
		factory = func(database string) (db.TableDB, error) {
			if dataDir == "" {
				return sqlite.NewSQLiteDB(sqlite.DBOptions{Path: sqlite.MemoryPath})
			}
			return sqlite.NewSQLiteDB(sqlite.DBOptions{Path: filepath.Join(dataDir, database+".db")})
		}
	default:
		return nil, fmt.Errorf("invalid storage engine %q (expected memory or sqlite)", config.Storage)
	}

	st, err := lstore.NewLocalStore(factory, config.Databases...)
	if err != nil {
		return nil, err
	}

	if config.TablesFile != "" {
		file, err := LoadTablesFile(config.TablesFile)
		if err == nil {
			err = DeclareTables(st, file)
		}
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	return st, nil
}

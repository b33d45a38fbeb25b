// Package server implements the RPC server of a dRow reference node. It answers
// the encoded insert, delete and health check requests of the client from a
// store.IStore and acknowledges every request with the number of affected rows
// or a status code.
//
// The package focuses on:
//   - Server-side RPC request handling for row batch writes
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Store setup from the server configuration (memory or sqlite engine, declared tables)
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating an adapter that decodes
//     the row batch of a request and maps store errors to status codes.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport, serializer and store.
//
//   - NewStore / LoadTablesFile: Helpers creating the store of a node and declaring
//     table schemas from a toml or yaml file.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Endpoint:  "0.0.0.0:8080",
//	  Databases: []string{"metrics"},
//	  Storage:   "sqlite",
//	  DataDir:   "data",
//	  LogLevel:  "info",
//	}
//
//	st, err := server.NewStore(config)
//	if err != nil {
//	  log.Fatalf("Store error: %v", err)
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(config),
//	  serializer.NewBinarySerializer(),
//	  st,
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Serve and ServeListener should be called only once.
package server

// Package tcp implements TCP socket based transport for the dRow RPC system.
// It provides concrete implementations of the base package's dialer and
// connector interfaces optimized for TCP connections.
//
// This package builds on the base package's transport functionality, inheriting
// its request multiplexing, buffer reuse and worker pools. See the base package
// documentation for detailed information on the underlying transport mechanisms.
//
// Key Components:
//
//   - clientDialer: TCP-specific implementation of base.IClientDialer
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Both sides apply the socket options of the configuration (TCP_NODELAY,
// keep alive, linger and socket buffer sizes). The default server buffer size
// is 512 KB, which provides good performance for typical batch sizes.
package tcp

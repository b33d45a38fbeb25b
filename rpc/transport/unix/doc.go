// Package unix implements a transport for the dRow RPC system using Unix
// domain sockets. It provides optimized communication with nodes running on
// the same machine, e.g. a local ingestion sidecar.
//
// This package extends the base transport with Unix socket-specific dialers and
// listeners while inheriting request multiplexing and worker pools from the
// base package. Node addresses are socket paths.
//
// Key Components:
//
//   - clientDialer: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, an existing socket file
//     is removed first
//
// Performance Characteristics:
//
//   - Default buffer size: 64 KB, optimized for local communication patterns
//   - Reduced overhead: Eliminates TCP/IP stack processing for better performance
package unix

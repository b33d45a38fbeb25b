// Package rpc provides the communication layer between dRow clients and
// database nodes. It turns batches of rows into requests, moves them over a
// pluggable transport and dispatches them over a set of nodes with failover.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the RPC system, including the
//     request and response envelopes, status codes, errors, configuration
//     structures and logging.
//
//   - encoder: Columnar wire encoding of row batches (schema descriptors, null
//     masks, little endian values) and the matching decoder.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, gRPC, HTTP, websockets).
//
//   - serializer: Envelope serialization with multiple format options (Binary, JSON)
//     for converting between requests/responses and byte arrays.
//
//   - client: The database client with its channel pool, load balancing and
//     ordered failover dispatch.
//
//   - server: A reference node answering requests from a local table store.
package rpc

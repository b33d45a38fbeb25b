// Package common provides core data structures and utilities shared across
// the dRow client runtime. It defines the request and response messages,
// the error taxonomy, configuration structures and logging.
//
// The package focuses on:
//   - Message definition for the communication between client and nodes
//   - Typed errors that tell callers whether a failure may be retried
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - EncodedRequest / EncodedColumn: The fully encoded form of a row batch
//     write. Columns are positional and keep the declaration order of the batch.
//
//   - Response: The acknowledgment of a node carrying the affected row count
//     or an application level status code.
//
//   - RequestKind / StatusCode: Enumerations of the supported operations and
//     the result codes a node may answer with.
//
//   - EncodeError, TransportError, ServerRejected, DispatchFailed: The error
//     types returned by the encoder, the transports and the dispatcher.
//
//   - ClientConfig / ServerConfig: Configuration for clients (endpoints,
//     timeouts, attempt limit, balancer) and reference nodes.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common

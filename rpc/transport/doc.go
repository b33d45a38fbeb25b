// Package transport defines the interfaces for moving serialized requests
// between dRow clients and database nodes. It provides a common contract that
// all transport implementations fulfill, enabling protocol-agnostic dispatch.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Separating connection establishment (connector) from connection use
//   - Enabling multiple transport implementations (TCP, Unix sockets, gRPC, HTTP, websockets)
//
// Key Components:
//
//   - IClientConnector: Stateless factory establishing one connection to one
//     node. The channel pool uses it to create channels.
//
//   - IClientConn: An established connection that can be shared by many
//     goroutines and reports whether it is broken.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receive requests and pass them to a handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
package transport

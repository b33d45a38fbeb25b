// Package base provides a foundation for stream based transports of dRow,
// implementing framing and request multiplexing independent of the specific
// network protocol (TCP, Unix sockets). It serves as a base layer that can be
// extended with protocol-specific dialers and listeners.
//
// The package focuses on:
//   - Protocol-agnostic client connections and server transport
//   - Frame-based message protocol with request ID tracking
//   - Many concurrent requests over a single connection
//   - Performance optimization through buffer reuse and worker pools
//
// Key Components:
//
//   - IClientDialer/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientConnection: One net.Conn shared by all requests to a node. Requests
//     are tagged with a unique ID, a reader goroutine hands every response to
//     the waiting request. Any read or write failure breaks the connection and
//     fails all pending requests; it is never reconnected in place.
//
//   - serverTransport: Accepts connections and processes the requests of each
//     connection with a bounded number of workers.
//
// Frame Format:
//
//	8 bytes request ID (big endian), 4 bytes payload length (big endian),
//	followed by the payload. Responses carry the ID of their request.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to a connection are serialized
//	with a mutex, the server creates a dedicated goroutine for each connection.
package base

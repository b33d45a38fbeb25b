package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/dRow/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests.
// It is called by a server transport for every received request and returns
// the serialized response.
type ServerHandleFunc func(req []byte) (resp []byte)

// IRPCServerTransport is the interface for the server side of a transport
type IRPCServerTransport interface {
	// RegisterHandler registers the handler for all received requests
	RegisterHandler(handler ServerHandleFunc)
	// Listen creates a listener for config.Endpoint and serves it until Close
	Listen(config common.ServerConfig) error
	// Serve accepts connections on an existing listener until Close
	Serve(listener net.Listener) error
	// Close stops accepting connections and closes the listener
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientConnector establishes connections to a single node. A connector is
// stateless and shared by all channels of a pool.
type IClientConnector interface {
	// Dial connects to addr. The context bounds connection establishment only.
	Dial(ctx context.Context, addr common.NodeAddress, config common.ClientConfig) (IClientConn, error)
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// IClientConn is an established connection to one node. It may be used by
// many goroutines at once.
type IClientConn interface {
	// Send sends a serialized request and waits for the serialized response
	// or until ctx is done
	Send(ctx context.Context, req []byte) (resp []byte, err error)
	// IsBroken reports whether the connection failed and cannot be used anymore
	IsBroken() bool
	// Close closes the connection, pending requests fail
	Close() error
}

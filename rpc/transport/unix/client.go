package unix

import (
	"context"
	"net"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"github.com/ValentinKolb/dRow/rpc/transport/base"
)

// clientDialer implements the base.IClientDialer interface for Unix sockets
type clientDialer struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientDialer)
// --------------------------------------------------------------------------

func (c *clientDialer) GetName() string {
	return "unix"
}

func (c *clientDialer) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", endpoint)
}

func (c *clientDialer) UpgradeConnection(_ net.Conn, _ common.ClientConfig) error {
	return nil
}

// --------------------------------------------------------------------------
// Client Connector Factory Method
// --------------------------------------------------------------------------

// NewUnixClientConnector creates a new Unix client connector
func NewUnixClientConnector() transport.IClientConnector {
	return base.NewClientConnector(&clientDialer{})
}

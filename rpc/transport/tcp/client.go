package tcp

import (
	"context"
	"net"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"github.com/ValentinKolb/dRow/rpc/transport/base"
)

// clientDialer implements the base.IClientDialer interface for TCP sockets
type clientDialer struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientDialer)
// --------------------------------------------------------------------------

func (c *clientDialer) GetName() string {
	return "tcp"
}

func (c *clientDialer) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", endpoint)
}

func (c *clientDialer) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return upgradeTCPConn(conn, config.Transport.SocketConf, config.Transport.TCPConf)
}

// --------------------------------------------------------------------------
// Client Connector Factory Method
// --------------------------------------------------------------------------

// NewTCPClientConnector creates a new TCP client connector
func NewTCPClientConnector() transport.IClientConnector {
	return base.NewClientConnector(&clientDialer{})
}

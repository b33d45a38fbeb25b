package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientDialer defines the interface for transport-specific connection operations
type IClientDialer interface {
	// Connect establishes a single connection to endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnector implements transport.IClientConnector on top of a dialer
type clientConnector struct {
	dialer IClientDialer
}

// clientConnection represents a single multiplexed net connection
type clientConnection struct {
	conn          net.Conn
	endpoint      string
	requestChans  *xsync.MapOf[uint64, chan responseResult]
	writeMu       sync.Mutex    // Protects writes to the connection
	nextRequestID atomic.Uint64 // Atomic counter for unique request IDs

	broken    atomic.Bool
	closed    chan struct{} // closed once the connection failed or was closed
	closeOnce sync.Once
	closeErr  error // set before closed is closed
}

// -----------------------------------------------------------
// Connector Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewClientConnector creates a connector producing framed, multiplexed
// connections with the given dialer
func NewClientConnector(dialer IClientDialer) transport.IClientConnector {
	return &clientConnector{dialer: dialer}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return c.dialer.GetName()
}

func (c *clientConnector) Dial(ctx context.Context, addr common.NodeAddress, config common.ClientConfig) (transport.IClientConn, error) {
	conn, err := c.dialer.Connect(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if err := c.dialer.UpgradeConnection(conn, config); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %w", addr, err)
	}

	clientConn := &clientConnection{
		conn:         conn,
		endpoint:     addr,
		requestChans: xsync.NewMapOf[uint64, chan responseResult](),
		closed:       make(chan struct{}),
	}

	// Start the response reader
	go clientConn.readResponses()

	Logger.Debugf("Connected to %s using %s transport", addr, c.dialer.GetName())
	return clientConn, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientConn)
// --------------------------------------------------------------------------

func (c *clientConnection) Send(ctx context.Context, req []byte) ([]byte, error) {
	if c.broken.Load() {
		return nil, c.failure()
	}

	// Generate a unique request ID
	requestID := c.nextRequestID.Add(1)

	// Register the request before writing, the response may arrive immediately
	respCh := make(chan responseResult, 1)
	c.requestChans.Store(requestID, respCh)
	defer c.requestChans.Delete(requestID)

	// Lock the connection only for writing
	c.writeMu.Lock()
	deadline, _ := ctx.Deadline()
	err := c.conn.SetWriteDeadline(deadline)
	if err == nil {
		err = writeFrame(c.conn, requestID, req)
	}
	c.writeMu.Unlock()

	if err != nil {
		c.shutdown(fmt.Errorf("write failed: %w", err))
		return nil, err
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.failure()
	}
}

func (c *clientConnection) IsBroken() bool {
	return c.broken.Load()
}

func (c *clientConnection) Close() error {
	c.shutdown(common.ErrClosed)
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// readResponses reads responses in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses() {
	for {
		requestID, data, err := readFrame(c.conn, nil)
		if err != nil {
			switch {
			case c.broken.Load():
				// closed by us
			case errors.Is(err, io.EOF):
				Logger.Infof("Connection to %s closed by server", c.endpoint)
			default:
				Logger.Warningf("Error reading response from %s: %v", c.endpoint, err)
			}
			c.shutdown(fmt.Errorf("read failed: %w", err))
			return
		}

		respCh, found := c.requestChans.Load(requestID)
		if !found {
			// the caller gave up already (timeout or cancellation)
			Logger.Debugf("Received response for unknown request ID %d from %s", requestID, c.endpoint)
			continue
		}

		select {
		case respCh <- responseResult{data: data}:
		default:
		}
	}
}

// shutdown marks the connection broken, closes it and wakes all waiting
// requests. Only the first call has an effect.
func (c *clientConnection) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		c.broken.Store(true)
		_ = c.conn.SetDeadline(time.Now())
		_ = c.conn.Close()
		close(c.closed)
	})
}

// failure returns the error that broke the connection
func (c *clientConnection) failure() error {
	<-c.closed
	return fmt.Errorf("connection to %s is broken: %w", c.endpoint, c.closeErr)
}

package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/ws")

// NewWSClientConnector creates a connector opening one websocket per node.
// Requests are multiplexed over the websocket by request ID.
func NewWSClientConnector() transport.IClientConnector {
	return &wsClientConnector{}
}

type wsClientConnector struct{}

type wsClientConn struct {
	conn          *websocket.Conn
	url           string
	requestChans  *xsync.MapOf[uint64, chan []byte]
	writeMu       sync.Mutex
	nextRequestID atomic.Uint64

	broken    atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error // set before closed is closed
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientConnector)
// --------------------------------------------------------------------------

func (c *wsClientConnector) GetName() string {
	return "ws"
}

func (c *wsClientConnector) Dial(ctx context.Context, addr common.NodeAddress, config common.ClientConfig) (transport.IClientConn, error) {
	url := addr
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		url = "ws://" + url
	}
	url = strings.TrimSuffix(url, "/") + RequestPath

	dialer := websocket.Dialer{
		HandshakeTimeout: config.DialTimeout,
		ReadBufferSize:   config.Transport.ReadBufferSize,
		WriteBufferSize:  config.Transport.WriteBufferSize,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	clientConn := &wsClientConn{
		conn:         conn,
		url:          url,
		requestChans: xsync.NewMapOf[uint64, chan []byte](),
		closed:       make(chan struct{}),
	}
	go clientConn.readResponses()

	Logger.Debugf("Connected to %s", url)
	return clientConn, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientConn)
// --------------------------------------------------------------------------

func (c *wsClientConn) Send(ctx context.Context, req []byte) ([]byte, error) {
	if c.broken.Load() {
		return nil, c.failure()
	}

	requestID := c.nextRequestID.Add(1)

	// Register the request before writing, the response may arrive immediately
	respCh := make(chan []byte, 1)
	c.requestChans.Store(requestID, respCh)
	defer c.requestChans.Delete(requestID)

	c.writeMu.Lock()
	deadline, _ := ctx.Deadline()
	err := c.conn.SetWriteDeadline(deadline)
	if err == nil {
		err = c.conn.WriteMessage(websocket.BinaryMessage, newMessage(requestID, req))
	}
	c.writeMu.Unlock()

	if err != nil {
		c.shutdown(fmt.Errorf("write failed: %w", err))
		return nil, err
	}

	select {
	case data := <-respCh:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.failure()
	}
}

func (c *wsClientConn) IsBroken() bool {
	return c.broken.Load()
}

func (c *wsClientConn) Close() error {
	c.shutdown(common.ErrClosed)
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *wsClientConn) readResponses() {
	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case c.broken.Load():
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				Logger.Infof("Websocket %s closed by server", c.url)
			default:
				Logger.Warningf("Error reading from %s: %v", c.url, err)
			}
			c.shutdown(fmt.Errorf("read failed: %w", err))
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		requestID, data, err := parseMessage(msg)
		if err != nil {
			c.shutdown(err)
			return
		}

		respCh, found := c.requestChans.Load(requestID)
		if !found {
			Logger.Debugf("Received response for unknown request ID %d from %s", requestID, c.url)
			continue
		}
		select {
		case respCh <- data:
		default:
		}
	}
}

func (c *wsClientConn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		c.broken.Store(true)

		if errors.Is(err, common.ErrClosed) {
			c.writeMu.Lock()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.writeMu.Unlock()
		}
		_ = c.conn.Close()
		close(c.closed)
	})
}

func (c *wsClientConn) failure() error {
	<-c.closed
	return fmt.Errorf("websocket %s is broken: %w", c.url, c.closeErr)
}

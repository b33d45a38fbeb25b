package ws

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
)

const defaultWorkersPerConn = 16

// NewWSServerTransport creates a server transport accepting websocket
// connections on RequestPath
func NewWSServerTransport(config common.ServerConfig) transport.IRPCServerTransport {
	workers := config.MaxWorkersPerConn
	if workers <= 0 {
		workers = defaultWorkersPerConn
	}
	return &wsServerTransport{
		config:         config,
		workersPerConn: workers,
		conns:          xsync.NewMapOf[*websocket.Conn, struct{}](),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			// nodes are not called from browsers
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type wsServerTransport struct {
	handler        transport.ServerHandleFunc
	config         common.ServerConfig
	workersPerConn int
	upgrader       websocket.Upgrader

	mu      sync.Mutex
	server  *http.Server
	closing bool
	conns   *xsync.MapOf[*websocket.Conn, struct{}]
	wg      sync.WaitGroup
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *wsServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *wsServerTransport) Listen(config common.ServerConfig) error {
	endpoint := strings.TrimPrefix(config.Endpoint, "ws://")
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}
	return t.Serve(listener)
}

func (t *wsServerTransport) Serve(listener net.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+RequestPath, t.handleUpgrade)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		_ = listener.Close()
		return common.ErrClosed
	}
	t.server = server
	t.mu.Unlock()

	Logger.Infof("Starting websocket server on %s with %d workers per connection", listener.Addr(), t.workersPerConn)

	err := server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (t *wsServerTransport) Close() error {
	t.mu.Lock()
	t.closing = true
	server := t.server
	t.mu.Unlock()

	var err error
	if server != nil {
		err = server.Close()
	}

	// hijacked connections are not closed by the http server
	t.conns.Range(func(conn *websocket.Conn, _ struct{}) bool {
		_ = conn.Close()
		return true
	})
	t.wg.Wait()
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *wsServerTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Warningf("Failed to upgrade connection from %s: %v", r.RemoteAddr, err)
		return
	}

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.conns.Store(conn, struct{}{})
	t.wg.Add(1)
	t.mu.Unlock()

	defer t.wg.Done()
	defer t.conns.Delete(conn)
	t.handleConnection(conn)
}

// handleConnection reads requests until the websocket is closed. Up to
// workersPerConn requests of one connection are handled in parallel.
func (t *wsServerTransport) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	timeout := t.config.Timeout
	workerSemaphore := make(chan struct{}, t.workersPerConn)

	var wg sync.WaitGroup
	defer wg.Wait()

	var writeMu sync.Mutex

	for {
		if timeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(timeout))
		}

		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Logger.Debugf("Websocket from %s closed: %v", conn.RemoteAddr(), err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		requestID, payload, err := parseMessage(msg)
		if err != nil {
			Logger.Warningf("Invalid message from %s: %v", conn.RemoteAddr(), err)
			return
		}

		workerSemaphore <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-workerSemaphore
				wg.Done()
			}()

			resp := t.handler(payload)

			writeMu.Lock()
			defer writeMu.Unlock()
			if timeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(timeout))
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, newMessage(requestID, resp)); err != nil {
				Logger.Errorf("Failed to write response: %v", err)
			}
		}()
	}
}

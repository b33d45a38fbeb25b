package grpc

import (
	"errors"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	_ "google.golang.org/grpc/encoding/gzip" // registers the gzip decompressor
	"google.golang.org/grpc/status"
)

var Logger = logger.GetLogger("transport/grpc")

// NewGRPCServerTransport creates a server transport answering unary calls to
// MethodName
func NewGRPCServerTransport(config common.ServerConfig) transport.IRPCServerTransport {
	return &grpcServerTransport{config: config}
}

type grpcServerTransport struct {
	handler transport.ServerHandleFunc
	config  common.ServerConfig

	mu      sync.Mutex
	server  *grpc.Server
	closing bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *grpcServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *grpcServerTransport) Listen(config common.ServerConfig) error {
	network, endpoint := "tcp", config.Endpoint
	if strings.HasPrefix(endpoint, "/") {
		network = "unix"
		if err := os.RemoveAll(endpoint); err != nil {
			return err
		}
	}

	listener, err := net.Listen(network, endpoint)
	if err != nil {
		return err
	}
	return t.Serve(listener)
}

func (t *grpcServerTransport) Serve(listener net.Listener) error {
	opts := []grpc.ServerOption{
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(t.handleStream),
	}
	if t.config.MaxWorkersPerConn > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(t.config.MaxWorkersPerConn)))
	}
	server := grpc.NewServer(opts...)

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		_ = listener.Close()
		return common.ErrClosed
	}
	t.server = server
	t.mu.Unlock()

	Logger.Infof("Starting grpc server on %s", listener.Addr())

	err := server.Serve(listener)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

func (t *grpcServerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closing = true
	if t.server != nil {
		t.server.Stop()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleStream answers a single unary call
func (t *grpcServerTransport) handleStream(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	if method != MethodName {
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}

	var req []byte
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}

	resp := t.handler(req)
	return stream.SendMsg(&resp)
}

package grpc

import (
	"context"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding/gzip"
)

// NewGRPCClientConnector creates a connector that sends requests as unary
// gRPC calls
func NewGRPCClientConnector() transport.IClientConnector {
	return &grpcClientConnector{}
}

type grpcClientConnector struct{}

// grpcClientConn wraps one grpc.ClientConn
type grpcClientConn struct {
	addr     common.NodeAddress
	cc       *grpc.ClientConn
	callOpts []grpc.CallOption
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientConnector)
// --------------------------------------------------------------------------

func (c *grpcClientConnector) GetName() string {
	return "grpc"
}

func (c *grpcClientConnector) Dial(ctx context.Context, addr common.NodeAddress, config common.ClientConfig) (transport.IClientConn, error) {
	callOpts := []grpc.CallOption{grpc.ForceCodec(rawCodec{})}
	switch strings.ToLower(config.Transport.Compression) {
	case "", "none":
	case gzip.Name, ZstdName:
		callOpts = append(callOpts, grpc.UseCompressor(strings.ToLower(config.Transport.Compression)))
	default:
		return nil, fmt.Errorf("unsupported compression %q", config.Transport.Compression)
	}

	target := addr
	if strings.HasPrefix(target, "/") {
		target = "unix://" + target
	}

	cc, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(callOpts...),
	)
	if err != nil {
		return nil, err
	}

	if err := waitReady(ctx, cc); err != nil {
		_ = cc.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	Logger.Debugf("Connected to %s using grpc transport", addr)
	return &grpcClientConn{addr: addr, cc: cc, callOpts: callOpts}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientConn)
// --------------------------------------------------------------------------

func (c *grpcClientConn) Send(ctx context.Context, req []byte) ([]byte, error) {
	var resp []byte
	if err := c.cc.Invoke(ctx, MethodName, &req, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *grpcClientConn) IsBroken() bool {
	switch c.cc.GetState() {
	case connectivity.TransientFailure, connectivity.Shutdown:
		return true
	default:
		return false
	}
}

func (c *grpcClientConn) Close() error {
	return c.cc.Close()
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// waitReady connects cc and blocks until it is ready, failed or ctx is done
func waitReady(ctx context.Context, cc *grpc.ClientConn) error {
	cc.Connect()
	for {
		state := cc.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure, connectivity.Shutdown:
			return fmt.Errorf("connection state %s", state)
		}
		if !cc.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

package http

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/stretchr/testify/require"
)

func TestHttpRoundTrip(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewHttpServerTransport(common.ServerConfig{LogLevel: "debug"})
	server.RegisterHandler(func(req []byte) []byte {
		return append([]byte("ack:"), req...)
	})

	done := make(chan error, 1)
	go func() { done <- server.Serve(listener) }()
	defer func() {
		require.NoError(t, server.Close())
		require.NoError(t, <-done)
	}()

	conn, err := NewHttpClientConnector().Dial(context.Background(), listener.Addr().String(), common.DefaultClientConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := conn.Send(ctx, []byte("insert"))
	require.NoError(t, err)
	require.Equal(t, "ack:insert", string(resp))

	require.NoError(t, conn.Close())
	require.True(t, conn.IsBroken())
	_, err = conn.Send(ctx, []byte("insert"))
	require.ErrorIs(t, err, common.ErrClosed)
}

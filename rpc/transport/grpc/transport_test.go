package grpc

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, handler func([]byte) []byte) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewGRPCServerTransport(common.ServerConfig{})
	server.RegisterHandler(handler)

	done := make(chan error, 1)
	go func() { done <- server.Serve(listener) }()
	t.Cleanup(func() {
		require.NoError(t, server.Close())
		require.NoError(t, <-done)
	})
	return listener.Addr().String()
}

func TestGRPCRoundTrip(t *testing.T) {
	for _, compression := range []string{"none", "gzip", "zstd"} {
		t.Run(compression, func(t *testing.T) {
			addr := startServer(t, func(req []byte) []byte {
				return append([]byte("ack:"), req...)
			})

			config := common.DefaultClientConfig()
			config.Transport.Compression = compression

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			conn, err := NewGRPCClientConnector().Dial(ctx, addr, config)
			require.NoError(t, err)
			defer conn.Close()
			require.False(t, conn.IsBroken())

			payload := make([]byte, 64*1024)
			for i := range payload {
				payload[i] = byte(i % 7)
			}
			resp, err := conn.Send(ctx, payload)
			require.NoError(t, err)
			require.Equal(t, append([]byte("ack:"), payload...), resp)
		})
	}
}

func TestGRPCDialFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = NewGRPCClientConnector().Dial(ctx, addr, common.DefaultClientConfig())
	require.Error(t, err)
}

func TestGRPCUnsupportedCompression(t *testing.T) {
	config := common.DefaultClientConfig()
	config.Transport.Compression = "lz4"
	_, err := NewGRPCClientConnector().Dial(context.Background(), "127.0.0.1:1", config)
	require.Error(t, err)
}

func TestRawCodec(t *testing.T) {
	var c rawCodec
	in := []byte{1, 2, 3}
	data, err := c.Marshal(&in)
	require.NoError(t, err)

	var out []byte
	require.NoError(t, c.Unmarshal(data, &out))
	require.Equal(t, in, out)

	_, err = c.Marshal("nope")
	require.Error(t, err)
}

func TestZstdCompressorReuse(t *testing.T) {
	c := &zstdCompressor{}
	require.Equal(t, ZstdName, c.Name())

	for i := 0; i < 3; i++ {
		msg := bytes.Repeat([]byte{byte(i), 'x', 'y'}, 1000+i)

		var buf bytes.Buffer
		w, err := c.Compress(&buf)
		require.NoError(t, err)
		_, err = w.Write(msg)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.Less(t, buf.Len(), len(msg))

		r, err := c.Decompress(&buf)
		require.NoError(t, err)
		out, err := io.ReadAll(r)
		require.NoError(t, err)
		require.Equal(t, msg, out)
	}
}

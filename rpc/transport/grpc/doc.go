// Package grpc implements a transport for dRow on top of gRPC. Serialized
// requests are sent as unary calls to /drow.v1.Database/Handle with a codec
// that passes the bytes through unchanged, so any envelope serializer works.
//
// Key Components:
//
//   - grpcClientConnector / grpcClientConn: Implement transport.IClientConnector
//     and transport.IClientConn. Dial blocks until the connection is ready. A
//     conn in transient failure reports itself broken so the pool replaces it.
//
//   - grpcServerTransport: Implements transport.IRPCServerTransport with an
//     unknown service handler, no generated code is needed.
//
// Compression:
//
//	ClientConfig.Transport.Compression selects the compressor of every request,
//	"gzip" (default), "zstd" or "none". Servers accept both compressors.
package grpc

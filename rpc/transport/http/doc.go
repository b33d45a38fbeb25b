// Package http implements an HTTP based transport for dRow. Every request is
// posted to /v1/rpc of the node, the serialized response is the body of the
// answer.
//
// The package focuses on:
//   - Reaching nodes through proxies and load balancers that only speak HTTP
//   - Debuggability: requests can be replayed with curl
//
// Key Components:
//
//   - httpClientConnector / httpClientConn: Implement transport.IClientConnector
//     and transport.IClientConn. Connection reuse is left to net/http, so a conn
//     is only broken after Close.
//
//   - httpServerTransport: Implements transport.IRPCServerTransport with a
//     net/http server. With log level debug every request is logged.
package http

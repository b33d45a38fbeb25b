// Package ws implements a websocket transport for dRow, based on
// github.com/gorilla/websocket. A client keeps one websocket per node and
// multiplexes concurrent requests over it.
//
// Every request and response is a single binary message: an 8 byte request ID
// (big endian) followed by the serialized envelope. The server answers with the
// request ID of the request, responses may arrive out of order.
//
// The endpoint is served on /v1/ws, addresses may be given as host:port or as
// ws:// or wss:// URLs.
package ws

package ws

import (
	"encoding/binary"
	"fmt"
)

const (
	// RequestPath is the path the websocket endpoint is served on
	RequestPath = "/v1/ws"

	// idSize is the size of the request ID prefix of every message
	idSize = 8
)

// newMessage prefixes payload with the request ID (big endian)
func newMessage(requestID uint64, payload []byte) []byte {
	msg := make([]byte, idSize+len(payload))
	binary.BigEndian.PutUint64(msg, requestID)
	copy(msg[idSize:], payload)
	return msg
}

// parseMessage splits a binary message into request ID and payload
func parseMessage(msg []byte) (uint64, []byte, error) {
	if len(msg) < idSize {
		return 0, nil, fmt.Errorf("message too short: %d bytes", len(msg))
	}
	return binary.BigEndian.Uint64(msg), msg[idSize:], nil
}

package serializer

import "github.com/ValentinKolb/dRow/rpc/common"

// IRPCSerializer is the interface for all envelope serializers. It turns
// encoded requests and responses into bytes for the transport and back.
type IRPCSerializer interface {
	// SerializeRequest serializes a request into a byte array
	SerializeRequest(req *common.EncodedRequest) ([]byte, error)
	// DeserializeRequest deserializes a byte array into req
	DeserializeRequest(b []byte, req *common.EncodedRequest) error
	// SerializeResponse serializes a response into a byte array
	SerializeResponse(resp *common.Response) ([]byte, error)
	// DeserializeResponse deserializes a byte array into resp
	DeserializeResponse(b []byte, resp *common.Response) error
	// GetName returns the name of the format (e.g., "binary", "json")
	GetName() string
}

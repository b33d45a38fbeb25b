package grpc

import "fmt"

// MethodName is the full gRPC method every request is sent to
const MethodName = "/drow.v1.Database/Handle"

// rawCodec passes already serialized messages through unchanged. Messages
// must be of type *[]byte.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("raw codec: unsupported message type %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec: unsupported message type %T", v)
	}
	// grpc reuses data after Unmarshal returns
	*b = append((*b)[:0], data...)
	return nil
}

func (rawCodec) Name() string {
	return "drow-raw"
}

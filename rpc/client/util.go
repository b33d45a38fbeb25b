package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/serializer"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// invokeRPCRequest sends an already serialized request over ch and decodes the
// response. Every failure is returned as *common.TransportError: a response that
// cannot be decoded or a successful response for a different request kind means
// the channel can no longer be trusted. Rejections are returned inside the
// response and are not treated as an error here. A node that could not decode
// the request answers with KindUnknown, which is a rejection as well.
func invokeRPCRequest(ctx context.Context, ch *Channel, payload []byte, kind common.RequestKind, s serializer.IRPCSerializer) (*common.Response, error) {
	// Send the request
	respBytes, err := ch.Send(ctx, payload)
	if err != nil {
		var transportErr *common.TransportError
		if errors.As(err, &transportErr) {
			return nil, err
		}
		return nil, &common.TransportError{Addr: ch.Addr(), Op: "send", Err: err}
	}

	// Deserialize the response
	resp := &common.Response{}
	if err := s.DeserializeResponse(respBytes, resp); err != nil {
		return nil, &common.TransportError{Addr: ch.Addr(), Op: "decode", Err: err}
	}

	if resp.Code != common.StatusOK {
		return resp, nil
	}

	// Check if the type of the response is the expected type
	if resp.Kind != kind {
		return nil, &common.TransportError{
			Addr: ch.Addr(),
			Op:   "decode",
			Err:  fmt.Errorf("unexpected response kind %s, expected %s", resp.Kind, kind),
		}
	}

	return resp, nil
}

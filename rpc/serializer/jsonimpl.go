package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/dRow/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) GetName() string {
	return "json"
}

func (j jsonSerializerImpl) SerializeRequest(req *common.EncodedRequest) ([]byte, error) {
	return json.Marshal(req)
}

func (j jsonSerializerImpl) DeserializeRequest(b []byte, req *common.EncodedRequest) error {
	*req = common.EncodedRequest{}
	return json.Unmarshal(b, req)
}

func (j jsonSerializerImpl) SerializeResponse(resp *common.Response) ([]byte, error) {
	return json.Marshal(resp)
}

func (j jsonSerializerImpl) DeserializeResponse(b []byte, resp *common.Response) error {
	*resp = common.Response{}
	return json.Unmarshal(b, resp)
}

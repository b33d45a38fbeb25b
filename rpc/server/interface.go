package server

import (
	"github.com/ValentinKolb/dRow/lib/store"
	"github.com/ValentinKolb/dRow/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a decoded request envelope and a store as parameters.
	// It returns a Response as a response
	// If an error occurs, it should be set in the response
	Handle(req *common.EncodedRequest, store store.IStore) (resp *common.Response)
}

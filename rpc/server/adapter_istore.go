package server

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dRow/lib/store"
	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/encoder"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.EncodedRequest, s store.IStore) *common.Response {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse(req.Kind, common.StatusInternal, errors.New("handler: store is nil"))
	}

	// Handle different request kinds
	switch req.Kind {
	case common.KindHealthCheck:
		if !s.HasDatabase(req.Database) {
			return common.NewErrorResponse(req.Kind, common.StatusUnknownDatabase,
				fmt.Errorf("database %q is not served by this node", req.Database))
		}
		return common.NewResponse(req.Kind, 0)
	case common.KindInsert:
		batch, err := encoder.DecodeBatch(req)
		if err != nil {
			return common.NewErrorResponse(req.Kind, common.StatusInvalidRequest, err)
		}
		n, err := s.Insert(req.Database, batch)
		return newStoreResponse(req.Kind, n, err)
	case common.KindDelete:
		keys, err := encoder.DecodeBatch(req)
		if err != nil {
			return common.NewErrorResponse(req.Kind, common.StatusInvalidRequest, err)
		}
		n, err := s.Delete(req.Database, req.Table, keys)
		return newStoreResponse(req.Kind, n, err)
	default:
		return common.NewErrorResponse(req.Kind, common.StatusInvalidRequest,
			fmt.Errorf("RPC IStoreAdapter - Unsupported request kind: %s", req.Kind))
	}
}

// newStoreResponse translates the result of a store operation into a response
func newStoreResponse(kind common.RequestKind, affected uint32, err error) *common.Response {
	if err == nil {
		return common.NewResponse(kind, affected)
	}
	return common.NewErrorResponse(kind, statusCode(err), err)
}

// statusCode maps a store error to the status code of a response
func statusCode(err error) common.StatusCode {
	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		return common.StatusInternal
	}
	switch storeErr.Code {
	case store.RetCUnknownDatabase:
		return common.StatusUnknownDatabase
	case store.RetCTableNotFound:
		return common.StatusTableNotFound
	case store.RetCSchemaMismatch:
		return common.StatusSchemaMismatch
	case store.RetCUnsupportedOperation:
		return common.StatusUnsupported
	case store.RetCInvalidOperation:
		return common.StatusInvalidRequest
	default:
		return common.StatusInternal
	}
}

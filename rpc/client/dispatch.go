package client

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/serializer"
)

// DispatchOutcome is the result of a successful dispatch
type DispatchOutcome struct {
	Response *common.Response
	Addr     common.NodeAddress // node that answered
	Attempts int                // attempts used, including the successful one
}

// Dispatcher sends encoded requests to one of the configured nodes. A request
// that fails on the transport level is tried on the next node, every node is
// tried at most once per request. Attempts are strictly sequential.
type Dispatcher struct {
	config     common.ClientConfig
	pool       *ChannelPool
	serializer serializer.IRPCSerializer
	balancer   LoadBalancer
	peers      atomic.Pointer[[]common.NodeAddress]
}

// NewDispatcher creates a dispatcher sending requests over the channels of pool
func NewDispatcher(config common.ClientConfig, pool *ChannelPool, s serializer.IRPCSerializer, balancer LoadBalancer) *Dispatcher {
	if config.Timeout <= 0 {
		config.Timeout = common.DefaultTimeout
	}
	d := &Dispatcher{
		config:     config,
		pool:       pool,
		serializer: s,
		balancer:   balancer,
	}
	d.SetPeers(config.Endpoints)
	return d
}

// SetPeers replaces the node list. Duplicates are removed, the order is kept.
// It returns the addresses that are no longer part of the list.
func (d *Dispatcher) SetPeers(addrs []common.NodeAddress) (removed []common.NodeAddress) {
	peers := make([]common.NodeAddress, 0, len(addrs))
	for _, addr := range addrs {
		if addr != "" && !slices.Contains(peers, addr) {
			peers = append(peers, addr)
		}
	}

	old := d.peers.Swap(&peers)
	if old == nil {
		return nil
	}
	for _, addr := range *old {
		if !slices.Contains(peers, addr) {
			removed = append(removed, addr)
		}
	}
	return removed
}

// Peers returns a copy of the current node list
func (d *Dispatcher) Peers() []common.NodeAddress {
	return slices.Clone(*d.peers.Load())
}

// Dispatch sends req to a node and returns its response.
//
// Errors:
//   - common.ErrNoPeers if no node is configured
//   - *common.EncodeError if the request cannot be serialized
//   - *common.ServerRejected if a node answered with an error code (not retried)
//   - *common.DispatchFailed if every attempt failed on the transport level or
//     ctx was done before a node answered
func (d *Dispatcher) Dispatch(ctx context.Context, req *common.EncodedRequest) (DispatchOutcome, error) {
	requestsTotal.Inc()
	start := time.Now()
	defer dispatchDuration.UpdateDuration(start)

	peers := *d.peers.Load()
	n := len(peers)
	if n == 0 {
		failuresTotal.Inc()
		return DispatchOutcome{}, common.ErrNoPeers
	}

	payload, err := d.serializer.SerializeRequest(req)
	if err != nil {
		failuresTotal.Inc()
		return DispatchOutcome{}, &common.EncodeError{Table: req.Table, Msg: "serialize request: " + err.Error()}
	}

	first := d.balancer.Start(req.Table, n)
	limit := d.config.AttemptLimit(n)
	failed := &common.DispatchFailed{Attempts: make([]common.AttemptError, 0, limit)}

	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			failed.Cause = err
			break
		}

		addr := peers[(first+i)%n]
		resp, err := d.attempt(ctx, addr, payload, req.Kind)
		if err == nil {
			if resp.Code != common.StatusOK {
				rejectionsTotal.Inc()
				return DispatchOutcome{}, &common.ServerRejected{Addr: addr, Code: resp.Code, Msg: resp.Err}
			}
			return DispatchOutcome{Response: resp, Addr: addr, Attempts: i + 1}, nil
		}

		failed.Attempts = append(failed.Attempts, common.AttemptError{Addr: addr, Err: err})
		Logger.Warningf("Attempt %d/%d for %s request to %s failed: %v", i+1, limit, req.Kind, addr, err)

		// the attempt failed because the caller gave up, not because of the node
		if ctx.Err() != nil {
			failed.Cause = ctx.Err()
			break
		}
	}

	failuresTotal.Inc()
	return DispatchOutcome{}, failed
}

// DispatchTo sends req to addr exactly once, without trying other nodes
func (d *Dispatcher) DispatchTo(ctx context.Context, addr common.NodeAddress, req *common.EncodedRequest) (*common.Response, error) {
	payload, err := d.serializer.SerializeRequest(req)
	if err != nil {
		return nil, &common.EncodeError{Table: req.Table, Msg: "serialize request: " + err.Error()}
	}

	resp, err := d.attempt(ctx, addr, payload, req.Kind)
	if err != nil {
		return nil, err
	}
	if resp.Code != common.StatusOK {
		return nil, &common.ServerRejected{Addr: addr, Code: resp.Code, Msg: resp.Err}
	}
	return resp, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// attempt sends the request to one node under its own timeout. On any error the
// channel used is marked broken, the next attempt for addr dials again.
func (d *Dispatcher) attempt(ctx context.Context, addr common.NodeAddress, payload []byte, kind common.RequestKind) (*common.Response, error) {
	attemptsTotal.Inc()
	nodeAttempts(addr).Inc()

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	// a failed dial leaves the channel in state Broken
	ch, err := d.pool.GetOrCreate(ctx, addr)
	if err != nil {
		d.countTransportError(addr)
		return nil, err
	}

	resp, err := invokeRPCRequest(ctx, ch, payload, kind, d.serializer)
	if err != nil {
		d.countTransportError(addr)
		d.pool.markChannelBroken(ch)
		return nil, err
	}
	return resp, nil
}

func (d *Dispatcher) countTransportError(addr common.NodeAddress) {
	transportErrorsTotal.Inc()
	nodeErrors(addr).Inc()
}

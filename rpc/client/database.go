package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/encoder"
	"github.com/ValentinKolb/dRow/rpc/serializer"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"github.com/google/uuid"
)

// Option configures a Database
type Option func(*Database)

// WithLoadBalancer overrides the load balancer selected by ClientConfig.Balancer
func WithLoadBalancer(balancer LoadBalancer) Option {
	return func(d *Database) {
		d.balancer = balancer
	}
}

// Database is the client of one logical database served by a set of nodes.
// It is safe for concurrent use by multiple goroutines.
type Database struct {
	id         uuid.UUID
	config     common.ClientConfig
	pool       *ChannelPool
	dispatcher *Dispatcher
	balancer   LoadBalancer

	closeOnce sync.Once
	closed    chan struct{}
}

// NodeHealth is the result of a health check of one node
type NodeHealth struct {
	Addr    common.NodeAddress
	Latency time.Duration
	Err     error
}

// NewDatabase creates a client for config.Database sending requests to
// config.Endpoints. No connection is established until the first request.
func NewDatabase(config common.ClientConfig, connector transport.IClientConnector, s serializer.IRPCSerializer, opts ...Option) (*Database, error) {
	if connector == nil {
		return nil, errors.New("no client connector given")
	}
	if s == nil {
		s = serializer.NewBinarySerializer()
	}
	if config.Database == "" {
		config.Database = common.DefaultDatabase
	}
	if config.Timeout <= 0 {
		config.Timeout = common.DefaultTimeout
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = common.DefaultDialTimeout
	}

	d := &Database{
		id:     uuid.New(),
		config: config,
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.balancer == nil {
		balancer, err := NewLoadBalancer(config.Balancer)
		if err != nil {
			return nil, err
		}
		d.balancer = balancer
	}

	d.pool = NewChannelPool(connector, config)
	d.dispatcher = NewDispatcher(config, d.pool, s, d.balancer)

	Logger.Infof("Created client %s for database %q with %d peer(s) using %s/%s (%s)",
		d.id, config.Database, len(d.dispatcher.Peers()), connector.GetName(), s.GetName(), d.balancer.GetName())
	return d, nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Insert writes all rows of batch to its table and returns the number of rows
// the node acknowledged. A batch without rows is sent as well.
func (d *Database) Insert(ctx context.Context, batch *rows.RowBatch) (uint32, error) {
	if batch == nil {
		return 0, &rows.SchemaError{Msg: "batch is nil"}
	}
	if err := batch.ValidateForInsert(); err != nil {
		return 0, err
	}

	req, err := encoder.EncodeInsert(d.config.Database, batch)
	if err != nil {
		return 0, err
	}
	return d.send(ctx, req)
}

// Delete deletes all rows of table whose keyColumns match a row of batch. Only
// the key columns of batch are sent, all other columns are ignored.
func (d *Database) Delete(ctx context.Context, table string, keyColumns []string, batch *rows.RowBatch) (uint32, error) {
	if batch == nil {
		return 0, &rows.SchemaError{Table: table, Msg: "batch is nil"}
	}

	req, err := encoder.EncodeDelete(d.config.Database, table, keyColumns, batch)
	if err != nil {
		return 0, err
	}
	return d.send(ctx, req)
}

// --------------------------------------------------------------------------
// Node Management
// --------------------------------------------------------------------------

// SetPeers replaces the node list. Channels to removed nodes are closed.
func (d *Database) SetPeers(addrs []common.NodeAddress) {
	removed := d.dispatcher.SetPeers(addrs)
	for _, addr := range removed {
		d.pool.Evict(addr)
	}
	Logger.Infof("Client %s now uses %d peer(s), %d removed", d.id, len(d.dispatcher.Peers()), len(removed))
}

// Peers returns the current node list
func (d *Database) Peers() []common.NodeAddress {
	return d.dispatcher.Peers()
}

// HealthCheck sends a health check request to every node and reports the
// result per node in node list order.
func (d *Database) HealthCheck(ctx context.Context) []NodeHealth {
	peers := d.dispatcher.Peers()
	results := make([]NodeHealth, len(peers))

	var wg sync.WaitGroup
	for i, addr := range peers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			_, err := d.dispatcher.DispatchTo(ctx, addr, common.NewHealthCheckRequest(d.config.Database))
			results[i] = NodeHealth{Addr: addr, Latency: time.Since(start), Err: err}
		}()
	}
	wg.Wait()
	return results
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// ID returns the unique id of this client instance
func (d *Database) ID() uuid.UUID { return d.id }

// Database returns the name of the database
func (d *Database) Database() string { return d.config.Database }

// Pool exposes the channel pool, e.g. to inspect channel states
func (d *Database) Pool() *ChannelPool { return d.pool }

// Close closes all channels. Requests issued after Close fail.
func (d *Database) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.closed)
		err = d.pool.Close()
		Logger.Infof("Closed client %s", d.id)
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (d *Database) send(ctx context.Context, req *common.EncodedRequest) (uint32, error) {
	select {
	case <-d.closed:
		return 0, common.ErrClosed
	default:
	}

	outcome, err := d.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return 0, err
	}
	return outcome.Response.AffectedRows, nil
}

package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/serializer"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Fake transport
// --------------------------------------------------------------------------

var errNodeDown = errors.New("connection refused")

// fakeNode describes how a node behaves
type fakeNode struct {
	dialErr   error         // dial fails
	dialDelay time.Duration // dial takes this long
	sendErr   error         // every send fails
	hang      bool          // send blocks until ctx is done
	code      common.StatusCode
}

// fakeConnector connects to in-process fake nodes. Healthy nodes acknowledge
// every row of a request.
type fakeConnector struct {
	mu    sync.Mutex
	nodes map[common.NodeAddress]*fakeNode
	dials map[common.NodeAddress]int
	sends atomic.Int64
	ser   serializer.IRPCSerializer
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		nodes: make(map[common.NodeAddress]*fakeNode),
		dials: make(map[common.NodeAddress]int),
		ser:   serializer.NewBinarySerializer(),
	}
}

func (c *fakeConnector) set(addr common.NodeAddress, node fakeNode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[addr] = &node
}

func (c *fakeConnector) dialCount(addr common.NodeAddress) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dials[addr]
}

func (c *fakeConnector) GetName() string { return "fake" }

func (c *fakeConnector) Dial(ctx context.Context, addr common.NodeAddress, _ common.ClientConfig) (transport.IClientConn, error) {
	c.mu.Lock()
	c.dials[addr]++
	node, ok := c.nodes[addr]
	c.mu.Unlock()

	if !ok {
		return nil, errNodeDown
	}
	if node.dialDelay > 0 {
		select {
		case <-time.After(node.dialDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if node.dialErr != nil {
		return nil, node.dialErr
	}
	return &fakeConn{connector: c, node: node}, nil
}

type fakeConn struct {
	connector *fakeConnector
	node      *fakeNode
	closed    atomic.Bool
}

func (c *fakeConn) Send(ctx context.Context, req []byte) ([]byte, error) {
	c.connector.sends.Add(1)
	if c.closed.Load() {
		return nil, common.ErrClosed
	}
	if c.node.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if c.node.sendErr != nil {
		return nil, c.node.sendErr
	}

	var decoded common.EncodedRequest
	if err := c.connector.ser.DeserializeRequest(req, &decoded); err != nil {
		return nil, err
	}
	var resp *common.Response
	if c.node.code != common.StatusOK {
		resp = common.NewErrorResponse(decoded.Kind, c.node.code, errors.New("rejected by fake node"))
	} else {
		resp = common.NewResponse(decoded.Kind, decoded.RowCount)
	}
	return c.connector.ser.SerializeResponse(resp)
}

func (c *fakeConn) IsBroken() bool { return c.closed.Load() }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// fixedBalancer always starts at the same index
type fixedBalancer int

func (f fixedBalancer) Start(_ string, n int) int { return int(f) % n }
func (f fixedBalancer) GetName() string          { return "fixed" }

func testConfig(endpoints ...common.NodeAddress) common.ClientConfig {
	config := common.DefaultClientConfig()
	config.Database = "metrics"
	config.Endpoints = endpoints
	config.Timeout = 2 * time.Second
	config.DialTimeout = 2 * time.Second
	return config
}

func newTestDatabase(t *testing.T, connector transport.IClientConnector, config common.ClientConfig, opts ...Option) *Database {
	t.Helper()
	d, err := NewDatabase(config, connector, serializer.NewBinarySerializer(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func cpuBatch(t *testing.T, n int) *rows.RowBatch {
	t.Helper()
	b := rows.NewBuilder("cpu",
		rows.Timestamp("ts", rows.TimestampMillisecond),
		rows.Tag("host", rows.String),
		rows.Field("usage", rows.Float64),
	)
	for i := 0; i < n; i++ {
		require.NoError(t, b.AddRow(int64(i), "host-a", float64(i)/10))
	}
	batch, err := b.Build()
	require.NoError(t, err)
	return batch
}

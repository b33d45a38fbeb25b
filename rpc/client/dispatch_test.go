package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/stretchr/testify/require"
)

func TestInsertSkipsFailingNodes(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-b", fakeNode{sendErr: errors.New("connection reset")})
	connector.set("node-c", fakeNode{})
	// node-a is unknown to the connector, its dial fails

	d := newTestDatabase(t, connector, testConfig("node-a", "node-b", "node-c"), WithLoadBalancer(fixedBalancer(0)))

	n, err := d.Insert(context.Background(), cpuBatch(t, 7))
	require.NoError(t, err)
	require.Equal(t, uint32(7), n)

	states := d.Pool().States()
	require.Equal(t, StateBroken, states["node-a"])
	require.Equal(t, StateBroken, states["node-b"])
	require.Equal(t, StateReady, states["node-c"])

	stats := d.Pool().Stats()
	require.Equal(t, int64(3), stats.Dials)
	require.Equal(t, int64(1), stats.DialFailures)
	require.Equal(t, int64(1), stats.MarkedBroken)
	require.Equal(t, int64(1), stats.Live)
}

func TestDispatchOutcome(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-b", fakeNode{})

	config := testConfig("node-a", "node-b")
	pool := NewChannelPool(connector, config)
	defer pool.Close()
	dispatcher := NewDispatcher(config, pool, connector.ser, fixedBalancer(0))

	outcome, err := dispatcher.Dispatch(context.Background(), common.NewHealthCheckRequest("metrics"))
	require.NoError(t, err)
	require.Equal(t, common.NodeAddress("node-b"), outcome.Addr)
	require.Equal(t, 2, outcome.Attempts)
	require.Equal(t, common.KindHealthCheck, outcome.Response.Kind)
}

func TestAllNodesFail(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-b", fakeNode{dialErr: errors.New("no route to host")})

	d := newTestDatabase(t, connector, testConfig("node-a", "node-b", "node-c"), WithLoadBalancer(fixedBalancer(1)))

	_, err := d.Insert(context.Background(), cpuBatch(t, 1))
	require.Error(t, err)

	var failed *common.DispatchFailed
	require.True(t, errors.As(err, &failed))
	require.Len(t, failed.Attempts, 3)
	require.Equal(t, []common.NodeAddress{"node-b", "node-c", "node-a"}, failed.Addresses())
	require.Nil(t, failed.Cause)
	require.True(t, common.IsRetriable(err))

	for _, attempt := range failed.Attempts {
		var transportErr *common.TransportError
		require.True(t, errors.As(attempt.Err, &transportErr))
		require.Equal(t, "dial", transportErr.Op)
		require.Equal(t, attempt.Addr, transportErr.Addr)
	}

	// every node was dialed exactly once
	for _, addr := range []common.NodeAddress{"node-a", "node-b", "node-c"} {
		require.Equal(t, 1, connector.dialCount(addr))
	}
}

func TestServerRejectedIsNotRetried(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{code: common.StatusSchemaMismatch})
	connector.set("node-b", fakeNode{})

	d := newTestDatabase(t, connector, testConfig("node-a", "node-b"), WithLoadBalancer(fixedBalancer(0)))

	_, err := d.Insert(context.Background(), cpuBatch(t, 3))
	var rejected *common.ServerRejected
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, common.NodeAddress("node-a"), rejected.Addr)
	require.Equal(t, common.StatusSchemaMismatch, rejected.Code)
	require.False(t, common.IsRetriable(err))

	require.Equal(t, int64(1), connector.sends.Load())
	require.Equal(t, 0, connector.dialCount("node-b"))

	// a rejection does not break the channel
	require.Equal(t, StateReady, d.Pool().States()["node-a"])
}

func TestEmptyBatch(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{})

	d := newTestDatabase(t, connector, testConfig("node-a"))

	n, err := d.Insert(context.Background(), cpuBatch(t, 0))
	require.NoError(t, err)
	require.Equal(t, uint32(0), n)
	require.Equal(t, int64(1), connector.sends.Load())
}

func TestNoPeers(t *testing.T) {
	d := newTestDatabase(t, newFakeConnector(), testConfig())

	_, err := d.Insert(context.Background(), cpuBatch(t, 1))
	require.ErrorIs(t, err, common.ErrNoPeers)
}

func TestSchemaErrorBeforeNetwork(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{})
	d := newTestDatabase(t, connector, testConfig("node-a"))

	// no timestamp column
	batch, err := rows.NewRowBatch("cpu", []rows.ColumnSchema{rows.Tag("host", rows.String)}, [][]any{{"a"}})
	require.NoError(t, err)

	_, err = d.Insert(context.Background(), batch)
	var schemaErr *rows.SchemaError
	require.True(t, errors.As(err, &schemaErr))

	_, err = d.Insert(context.Background(), nil)
	require.True(t, errors.As(err, &schemaErr))

	// empty key list
	_, err = d.Delete(context.Background(), "cpu", nil, cpuBatch(t, 1))
	var encodeErr *common.EncodeError
	require.True(t, errors.As(err, &encodeErr))

	require.Equal(t, 0, connector.dialCount("node-a"))
}

func TestDelete(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{})
	d := newTestDatabase(t, connector, testConfig("node-a"))

	n, err := d.Delete(context.Background(), "cpu", []string{"host", "ts"}, cpuBatch(t, 4))
	require.NoError(t, err)
	require.Equal(t, uint32(4), n)
}

func TestCanceledContext(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{})
	d := newTestDatabase(t, connector, testConfig("node-a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Insert(ctx, cpuBatch(t, 1))
	var failed *common.DispatchFailed
	require.True(t, errors.As(err, &failed))
	require.Empty(t, failed.Attempts)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, common.IsRetriable(err))
	require.Equal(t, 0, connector.dialCount("node-a"))
}

func TestCallerDeadlineStopsDispatch(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{hang: true})
	connector.set("node-b", fakeNode{})
	d := newTestDatabase(t, connector, testConfig("node-a", "node-b"), WithLoadBalancer(fixedBalancer(0)))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := d.Insert(ctx, cpuBatch(t, 1))
	var failed *common.DispatchFailed
	require.True(t, errors.As(err, &failed))
	require.Len(t, failed.Attempts, 1)
	require.ErrorIs(t, failed.Cause, context.DeadlineExceeded)
	require.Equal(t, 0, connector.dialCount("node-b"))
}

func TestAttemptTimeoutMovesOn(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{hang: true})
	connector.set("node-b", fakeNode{})

	config := testConfig("node-a", "node-b")
	config.Timeout = 100 * time.Millisecond
	d := newTestDatabase(t, connector, config, WithLoadBalancer(fixedBalancer(0)))

	n, err := d.Insert(context.Background(), cpuBatch(t, 2))
	require.NoError(t, err)
	require.Equal(t, uint32(2), n)
	require.Equal(t, StateBroken, d.Pool().States()["node-a"])
}

func TestMaxAttempts(t *testing.T) {
	connector := newFakeConnector()
	config := testConfig("node-a", "node-b", "node-c")
	config.MaxAttempts = 2
	d := newTestDatabase(t, connector, config, WithLoadBalancer(fixedBalancer(0)))

	_, err := d.Insert(context.Background(), cpuBatch(t, 1))
	var failed *common.DispatchFailed
	require.True(t, errors.As(err, &failed))
	require.Equal(t, []common.NodeAddress{"node-a", "node-b"}, failed.Addresses())
	require.Equal(t, 0, connector.dialCount("node-c"))
}

func TestBrokenNodeIsRedialed(t *testing.T) {
	connector := newFakeConnector()
	d := newTestDatabase(t, connector, testConfig("node-a"))

	_, err := d.Insert(context.Background(), cpuBatch(t, 1))
	require.Error(t, err)
	require.Equal(t, StateBroken, d.Pool().States()["node-a"])

	// the node comes back
	connector.set("node-a", fakeNode{})
	n, err := d.Insert(context.Background(), cpuBatch(t, 1))
	require.NoError(t, err)
	require.Equal(t, uint32(1), n)
	require.Equal(t, 2, connector.dialCount("node-a"))
	require.Equal(t, StateReady, d.Pool().States()["node-a"])
}

func TestUnexpectedResponseKind(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{})

	config := testConfig("node-a")
	pool := NewChannelPool(connector, config)
	defer pool.Close()

	ch, err := pool.GetOrCreate(context.Background(), "node-a")
	require.NoError(t, err)

	// a health check answer for an insert request
	payload, err := connector.ser.SerializeRequest(common.NewHealthCheckRequest("metrics"))
	require.NoError(t, err)
	_, err = invokeRPCRequest(context.Background(), ch, payload, common.KindInsert, connector.ser)
	var transportErr *common.TransportError
	require.True(t, errors.As(err, &transportErr))
	require.Equal(t, "decode", transportErr.Op)
}

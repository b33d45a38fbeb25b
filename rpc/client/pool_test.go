package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/stretchr/testify/require"
)

func TestConcurrentGetOrCreateDialsOnce(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{dialDelay: 50 * time.Millisecond})

	pool := NewChannelPool(connector, testConfig("node-a"))
	defer pool.Close()

	const callers = 20
	channels := make([]*Channel, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			channels[i], errs[i] = pool.GetOrCreate(context.Background(), "node-a")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Same(t, channels[0], channels[i])
	}
	require.Equal(t, 1, connector.dialCount("node-a"))
	require.Equal(t, StateReady, channels[0].State())
	require.Len(t, pool.States(), 1)
}

func TestDialFailureReachesAllWaiters(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{dialDelay: 50 * time.Millisecond, dialErr: errors.New("refused")})

	pool := NewChannelPool(connector, testConfig("node-a"))
	defer pool.Close()

	const callers = 5
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = pool.GetOrCreate(context.Background(), "node-a")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		var transportErr *common.TransportError
		require.True(t, errors.As(err, &transportErr))
		require.Equal(t, "dial", transportErr.Op)
	}
	require.Equal(t, StateBroken, pool.States()["node-a"])
	require.Equal(t, int64(1), pool.Stats().DialFailures)
}

func TestWaiterContext(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{dialDelay: time.Second})

	pool := NewChannelPool(connector, testConfig("node-a"))
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := pool.GetOrCreate(ctx, "node-a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// the connection attempt itself continues for other callers
	require.Equal(t, StateConnecting, pool.States()["node-a"])
}

func TestMarkBroken(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{})

	pool := NewChannelPool(connector, testConfig("node-a"))
	defer pool.Close()

	first, err := pool.GetOrCreate(context.Background(), "node-a")
	require.NoError(t, err)

	pool.MarkBroken("node-a")
	require.Equal(t, StateBroken, first.State())

	second, err := pool.GetOrCreate(context.Background(), "node-a")
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), second.ID())
	require.Equal(t, StateReady, second.State())
	require.Equal(t, 2, connector.dialCount("node-a"))

	// a late failure report for the old channel does not touch the new one
	pool.markChannelBroken(first)
	require.Equal(t, StateReady, second.State())
	require.Equal(t, int64(1), pool.Stats().MarkedBroken)

	_, err = first.Send(context.Background(), []byte("x"))
	require.Error(t, err)
}

func TestEvict(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{})

	pool := NewChannelPool(connector, testConfig("node-a"))
	defer pool.Close()

	ch, err := pool.GetOrCreate(context.Background(), "node-a")
	require.NoError(t, err)

	pool.Evict("node-a")
	require.Empty(t, pool.States())
	require.Equal(t, StateBroken, ch.State())
	require.Equal(t, int64(1), pool.Stats().Evictions)

	// evicting an unknown address is a no-op
	pool.Evict("node-b")
	require.Equal(t, int64(1), pool.Stats().Evictions)
}

func TestPoolClose(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{})

	pool := NewChannelPool(connector, testConfig("node-a"))
	ch, err := pool.GetOrCreate(context.Background(), "node-a")
	require.NoError(t, err)

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())
	require.Equal(t, StateBroken, ch.State())

	_, err = pool.GetOrCreate(context.Background(), "node-a")
	require.ErrorIs(t, err, common.ErrClosed)
}

func TestPoolRegistry(t *testing.T) {
	connector := newFakeConnector()
	connector.set("node-a", fakeNode{})

	pool := NewChannelPool(connector, testConfig("node-a"))
	defer pool.Close()

	_, err := pool.GetOrCreate(context.Background(), "node-a")
	require.NoError(t, err)

	names := map[string]bool{}
	pool.Registry().Each(func(name string, _ interface{}) {
		names[name] = true
	})
	for _, name := range []string{"dials", "dial_failures", "marked_broken", "evictions", "live"} {
		require.True(t, names[name], "missing metric %s", name)
	}
	require.Equal(t, int64(1), pool.Stats().Live)
}

func TestChannelStateString(t *testing.T) {
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "ready", StateReady.String())
	require.Equal(t, "broken", StateBroken.String())
}

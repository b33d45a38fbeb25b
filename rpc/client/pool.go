package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/transport"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rcrowley/go-metrics"
)

var poolLogger = logger.GetLogger("pool")

// --------------------------------------------------------------------------
// Channel
// --------------------------------------------------------------------------

// ChannelState is the connection state of a pooled channel
type ChannelState int32

const (
	StateConnecting ChannelState = iota
	StateReady
	StateBroken
)

// String returns a string representation of the state
func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// Channel is one pooled connection to a node. It is created in the
// Connecting state and moves to Ready or Broken exactly once; a Ready channel
// may later become Broken. Broken channels are never reused.
type Channel struct {
	id    uuid.UUID
	addr  common.NodeAddress
	state atomic.Int32

	ready chan struct{} // closed when the connection attempt finished
	err   error         // dial error, written before ready is closed

	mu     sync.Mutex
	conn   transport.IClientConn
	closed bool
}

func newChannel(addr common.NodeAddress) *Channel {
	ch := &Channel{
		id:    uuid.New(),
		addr:  addr,
		ready: make(chan struct{}),
	}
	ch.state.Store(int32(StateConnecting))
	return ch
}

// ID returns the unique id of the channel
func (c *Channel) ID() uuid.UUID { return c.id }

// Addr returns the address of the node
func (c *Channel) Addr() common.NodeAddress { return c.addr }

// State returns the current state. A ready channel whose connection broke
// reports Broken.
func (c *Channel) State() ChannelState {
	state := ChannelState(c.state.Load())
	if state != StateReady {
		return state
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || conn.IsBroken() {
		return StateBroken
	}
	return StateReady
}

// Send sends a serialized request over the channel
func (c *Channel) Send(ctx context.Context, req []byte) ([]byte, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || ChannelState(c.state.Load()) != StateReady {
		return nil, &common.TransportError{Addr: c.addr, Op: "send", Err: common.ErrClosed}
	}
	return conn.Send(ctx, req)
}

// wait blocks until the connection attempt finished or ctx is done
func (c *Channel) wait(ctx context.Context) error {
	select {
	case <-c.ready:
		return c.err
	case <-ctx.Done():
		return &common.TransportError{Addr: c.addr, Op: "dial", Err: ctx.Err()}
	}
}

// finishDial records the result of the connection attempt
func (c *Channel) finishDial(conn transport.IClientConn, err error) {
	c.mu.Lock()
	if err == nil && c.closed {
		// evicted or marked broken while connecting
		_ = conn.Close()
		err = common.ErrClosed
	}
	if err != nil {
		c.err = &common.TransportError{Addr: c.addr, Op: "dial", Err: err}
		c.state.Store(int32(StateBroken))
	} else {
		c.conn = conn
		c.state.Store(int32(StateReady))
	}
	c.mu.Unlock()
	close(c.ready)
}

// close marks the channel broken and releases the connection. It reports
// whether the channel was open before.
func (c *Channel) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.state.Store(int32(StateBroken))
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return true
}

// --------------------------------------------------------------------------
// Channel Pool
// --------------------------------------------------------------------------

// PoolStats is a snapshot of the pool counters
type PoolStats struct {
	Dials        int64
	DialFailures int64
	MarkedBroken int64
	Evictions    int64
	Live         int64 // channels currently in state Ready
}

// ChannelPool holds at most one channel per node address. Channels are
// created lazily on first use and replaced after they broke.
type ChannelPool struct {
	connector transport.IClientConnector
	config    common.ClientConfig
	channels  *xsync.MapOf[common.NodeAddress, *Channel]
	closed    atomic.Bool

	registry     metrics.Registry
	dials        metrics.Counter
	dialFailures metrics.Counter
	markedBroken metrics.Counter
	evictions    metrics.Counter
}

// NewChannelPool creates an empty pool establishing connections with connector
func NewChannelPool(connector transport.IClientConnector, config common.ClientConfig) *ChannelPool {
	if config.DialTimeout <= 0 {
		config.DialTimeout = common.DefaultDialTimeout
	}

	p := &ChannelPool{
		connector: connector,
		config:    config,
		channels:  xsync.NewMapOf[common.NodeAddress, *Channel](),
		registry:  metrics.NewRegistry(),
	}
	p.dials = metrics.GetOrRegisterCounter("dials", p.registry)
	p.dialFailures = metrics.GetOrRegisterCounter("dial_failures", p.registry)
	p.markedBroken = metrics.GetOrRegisterCounter("marked_broken", p.registry)
	p.evictions = metrics.GetOrRegisterCounter("evictions", p.registry)
	_ = p.registry.Register("live", metrics.NewFunctionalGauge(p.liveChannels))
	return p
}

// GetOrCreate returns the live channel for addr. If there is none, or the
// existing one is broken, a new channel is installed and connected. Concurrent
// callers for the same address share a single connection attempt.
func (p *ChannelPool) GetOrCreate(ctx context.Context, addr common.NodeAddress) (*Channel, error) {
	if p.closed.Load() {
		return nil, &common.TransportError{Addr: addr, Op: "dial", Err: common.ErrClosed}
	}

	var (
		created  bool
		replaced *Channel
	)
	ch, _ := p.channels.Compute(addr, func(old *Channel, loaded bool) (*Channel, bool) {
		created, replaced = false, nil
		if loaded && old.State() != StateBroken {
			return old, false
		}
		if loaded {
			replaced = old
		}
		created = true
		return newChannel(addr), false
	})

	if replaced != nil {
		replaced.close()
		poolLogger.Debugf("Replacing broken channel %s to %s", replaced.id, addr)
	}

	if created {
		p.dials.Inc(1)
		go p.connect(ch)
	}

	if err := ch.wait(ctx); err != nil {
		return nil, err
	}
	return ch, nil
}

// MarkBroken marks the channel of addr broken and closes its connection.
// The next GetOrCreate for addr establishes a new channel.
func (p *ChannelPool) MarkBroken(addr common.NodeAddress) {
	if ch, ok := p.channels.Load(addr); ok {
		p.markChannelBroken(ch)
	}
}

// Evict removes the channel of addr from the pool and closes it
func (p *ChannelPool) Evict(addr common.NodeAddress) {
	if ch, ok := p.channels.LoadAndDelete(addr); ok {
		ch.close()
		p.evictions.Inc(1)
		poolLogger.Debugf("Evicted channel %s to %s", ch.id, addr)
	}
}

// States returns the state of every channel by address
func (p *ChannelPool) States() map[common.NodeAddress]ChannelState {
	states := make(map[common.NodeAddress]ChannelState, p.channels.Size())
	p.channels.Range(func(addr common.NodeAddress, ch *Channel) bool {
		states[addr] = ch.State()
		return true
	})
	return states
}

// Stats returns a snapshot of the pool counters
func (p *ChannelPool) Stats() PoolStats {
	return PoolStats{
		Dials:        p.dials.Count(),
		DialFailures: p.dialFailures.Count(),
		MarkedBroken: p.markedBroken.Count(),
		Evictions:    p.evictions.Count(),
		Live:         p.liveChannels(),
	}
}

// Registry exposes the go-metrics registry of the pool
func (p *ChannelPool) Registry() metrics.Registry {
	return p.registry
}

// Close closes all channels. Later calls of GetOrCreate fail.
func (p *ChannelPool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.channels.Range(func(addr common.NodeAddress, ch *Channel) bool {
		p.channels.Delete(addr)
		ch.close()
		return true
	})
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// connect establishes the connection of a new channel. It is not bound to the
// context of the caller that created the channel, other callers may wait for it.
func (p *ChannelPool) connect(ch *Channel) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.DialTimeout)
	defer cancel()

	start := time.Now()
	conn, err := p.connector.Dial(ctx, ch.addr, p.config)
	if err != nil {
		p.dialFailures.Inc(1)
		poolLogger.Warningf("Failed to connect to %s using %s: %v", ch.addr, p.connector.GetName(), err)
	} else {
		poolLogger.Debugf("Channel %s to %s ready after %s", ch.id, ch.addr, time.Since(start))
	}
	ch.finishDial(conn, err)
}

// markChannelBroken marks exactly this channel broken. A newer channel for the
// same address is not affected.
func (p *ChannelPool) markChannelBroken(ch *Channel) {
	if ch.close() {
		p.markedBroken.Inc(1)
		poolLogger.Infof("Marked channel %s to %s broken", ch.id, ch.addr)
	}
}

func (p *ChannelPool) liveChannels() int64 {
	var n int64
	p.channels.Range(func(_ common.NodeAddress, ch *Channel) bool {
		if ch.State() == StateReady {
			n++
		}
		return true
	})
	return n
}

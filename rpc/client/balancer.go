package client

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/cespare/xxhash"
)

// LoadBalancer selects the first node a request is sent to. The dispatcher
// tries the remaining nodes in order, wrapping around.
type LoadBalancer interface {
	// Start returns an index in [0, n) for a request addressed to key (the
	// table name). n is always > 0.
	Start(key string, n int) int

	// GetName returns the name of the strategy
	GetName() string
}

// NewLoadBalancer returns the strategy with the given name
func NewLoadBalancer(name string) (LoadBalancer, error) {
	switch name {
	case "", "round-robin":
		return NewRoundRobin(), nil
	case "random":
		return NewRandom(), nil
	case "key-hash":
		return NewKeyHash(), nil
	default:
		return nil, fmt.Errorf("unknown load balancer %q (valid: round-robin, random, key-hash)", name)
	}
}

// --------------------------------------------------------------------------
// Round Robin
// --------------------------------------------------------------------------

type roundRobin struct {
	next atomic.Uint64
}

// NewRoundRobin spreads consecutive requests over all nodes. The first node
// is chosen at random so that many clients do not all start at node 0.
func NewRoundRobin() LoadBalancer {
	rr := &roundRobin{}
	rr.next.Store(rand.Uint64())
	return rr
}

func (r *roundRobin) Start(_ string, n int) int {
	return int((r.next.Add(1) - 1) % uint64(n))
}

func (r *roundRobin) GetName() string { return "round-robin" }

// --------------------------------------------------------------------------
// Random
// --------------------------------------------------------------------------

type random struct{}

// NewRandom picks a uniformly random first node for every request
func NewRandom() LoadBalancer {
	return random{}
}

func (random) Start(_ string, n int) int {
	return rand.IntN(n)
}

func (random) GetName() string { return "random" }

// --------------------------------------------------------------------------
// Key Hash
// --------------------------------------------------------------------------

type keyHash struct{}

// NewKeyHash sends all requests for the same table to the same node first,
// as long as the node list does not change.
func NewKeyHash() LoadBalancer {
	return keyHash{}
}

func (keyHash) Start(key string, n int) int {
	return int(xxhash.Sum64String(key) % uint64(n))
}

func (keyHash) GetName() string { return "key-hash" }

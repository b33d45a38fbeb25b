package client

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundRobinVisitsEveryNode(t *testing.T) {
	balancer := NewRoundRobin()

	const n = 4
	first := balancer.Start("cpu", n)
	for i := 1; i < 3*n; i++ {
		require.Equal(t, (first+i)%n, balancer.Start("cpu", n))
	}
}

func TestRandomInRange(t *testing.T) {
	balancer := NewRandom()
	for i := 0; i < 1000; i++ {
		idx := balancer.Start("cpu", 3)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 3)
	}
	require.Equal(t, 0, balancer.Start("cpu", 1))
}

func TestKeyHashIsSticky(t *testing.T) {
	balancer := NewKeyHash()
	start := balancer.Start("cpu", 5)
	for i := 0; i < 10; i++ {
		require.Equal(t, start, balancer.Start("cpu", 5))
	}

	// different tables spread over the nodes
	seen := map[int]bool{}
	for _, table := range []string{"cpu", "mem", "disk", "net", "load", "swap", "io", "temp"} {
		seen[balancer.Start(table, 5)] = true
	}
	require.Greater(t, len(seen), 1)
}

func TestNewLoadBalancer(t *testing.T) {
	for name, expected := range map[string]string{
		"":            "round-robin",
		"round-robin": "round-robin",
		"random":      "random",
		"key-hash":    "key-hash",
	} {
		balancer, err := NewLoadBalancer(name)
		require.NoError(t, err)
		require.Equal(t, expected, balancer.GetName())
	}

	_, err := NewLoadBalancer("least-loaded")
	require.Error(t, err)
}

// Package testutil provides shared fixtures for protocol-level tests: a
// pair of in-process overlayd instances wired to each other over real
// loopback UDP sockets, so router/forwarder/substrate integration can be
// exercised without a real multi-host deployment.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pathvector/overlayd"
	"github.com/pathvector/overlayd/config"
)

// Pair is two overlayd instances, each configured as the other's sole
// neighbor over loopback.
type Pair struct {
	A *overlayd.Instance
	B *overlayd.Instance
}

// NewPair builds and starts a two-node Pair. Each node binds a distinct
// loopback address (127.0.1.x) since the substrate listens on a fixed port
// on whatever host address its config names. t.Cleanup stops both nodes.
func NewPair(t *testing.T, delayA, delayB float64) *Pair {
	t.Helper()

	storeA := config.Store{
		HostIP:   "127.0.1.1",
		MyIP:     "1.1.0.1",
		Prefixes: []string{"1.1.0.0/24"},
		Neighbors: []config.NeighborConfig{
			{OverlayIP: "1.1.1.1", HostAddr: "127.0.1.2", Delay: delayA},
		},
	}
	storeB := config.Store{
		HostIP:   "127.0.1.2",
		MyIP:     "1.1.1.1",
		Prefixes: []string{"1.1.1.0/24"},
		Neighbors: []config.NeighborConfig{
			{OverlayIP: "1.1.0.1", HostAddr: "127.0.1.1", Delay: delayB},
		},
	}

	cfgA, err := storeA.Parse()
	require.NoError(t, err)
	cfgB, err := storeB.Parse()
	require.NoError(t, err)

	a := overlayd.New("test", cfgA, true, 0, true)
	b := overlayd.New("test", cfgB, true, 0, true)

	require.NoError(t, a.Start())
	require.NoError(t, b.Start())

	t.Cleanup(func() {
		a.Stop()
		b.Stop()
	})

	return &Pair{A: a, B: b}
}

// WaitForConvergence polls until each node has learned a valid route toward
// the other's locally-originated prefix, or fails the test after timeout.
func WaitForConvergence(t *testing.T, p *Pair, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if hasValidRoute(p.A, "1.1.1.0/24") && hasValidRoute(p.B, "1.1.0.0/24") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("routes did not converge within timeout")
}

func hasValidRoute(inst *overlayd.Instance, prefix string) bool {
	for _, rt := range inst.Snapshot().Routes {
		if rt.Prefix == prefix && rt.Valid {
			return true
		}
	}
	return false
}

package router

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathvector/overlayd/config"
	"github.com/pathvector/overlayd/forwarder"
	"github.com/pathvector/overlayd/m"
	"github.com/pathvector/overlayd/mgr"
)

// fakeForwarder is an in-memory stand-in for the Forwarder module, used to
// drive Router handlers directly without a dispatch loop.
type fakeForwarder struct {
	mu     sync.Mutex
	routes map[m.Prefix]m.LinkIndex
	sent   map[m.LinkIndex][]m.Packet
	inbox  []forwarder.RoutedPacket
}

func newFakeForwarder() *fakeForwarder {
	return &fakeForwarder{
		routes: make(map[m.Prefix]m.LinkIndex),
		sent:   make(map[m.LinkIndex][]m.Packet),
	}
}

func (f *fakeForwarder) AddRoute(pfx m.Prefix, link m.LinkIndex) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[pfx] = link
}

func (f *fakeForwarder) SendPkt(p m.Packet, link m.LinkIndex, done <-chan struct{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[link] = append(f.sent[link], p)
	return nil
}

func (f *fakeForwarder) ReceivePkt() forwarder.RoutedPacket {
	f.mu.Lock()
	defer f.mu.Unlock()
	head := f.inbox[0]
	f.inbox = f.inbox[1:]
	return head
}

func (f *fakeForwarder) Ready4Pkt() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inbox) > 0
}

func (f *fakeForwarder) IncomingPkt() bool { return f.Ready4Pkt() }

func (f *fakeForwarder) sentOn(link m.LinkIndex) []m.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]m.Packet(nil), f.sent[link]...)
}

func testConfig() *config.Config {
	return &config.Config{
		HostIP:   "127.0.0.1",
		MyIP:     m.MustParseAddress("1.1.0.1"),
		Prefixes: []m.Prefix{m.MustParsePrefix("1.1.0.0/24")},
		Neighbors: []config.Neighbor{
			{OverlayIP: m.MustParseAddress("1.1.0.2"), HostAddr: "127.0.0.2", Delay: 0.1},
			{OverlayIP: m.MustParseAddress("1.1.0.3"), HostAddr: "127.0.0.3", Delay: 0.1},
		},
	}
}

func TestRouterHandleAdvertInstallsRouteAndReadvertisesWithSplitHorizon(t *testing.T) {
	t.Parallel()

	fwd := newFakeForwarder()
	r := New(testConfig(), 0, false, fwd)

	msg := controlMessage{
		typ:          msgAdvert,
		pfx:          m.MustParsePrefix("1.2.0.0/16"),
		senderTS:     1.0,
		cost:         0.05,
		path:         []m.Address{m.MustParseAddress("1.1.0.2")},
		receivedFrom: m.MustParseAddress("1.1.0.2"),
	}

	r.handleAdvert(&mgr.WorkerCtx{Manager: r.mgr}, 0, msg)

	rt, ok := r.routes.get(msg.pfx)
	require.True(t, ok)
	assert.Equal(t, []m.Address{r.myIP, m.MustParseAddress("1.1.0.2")}, rt.Path)
	assert.Equal(t, m.LinkIndex(0), rt.OutLink)

	assert.Empty(t, fwd.sentOn(0), "must not re-advertise back to the link that sent it")
	assert.Len(t, fwd.sentOn(1), 1, "must re-advertise on the other link")
}

func TestRouterHandleAdvertDropsLoop(t *testing.T) {
	t.Parallel()

	fwd := newFakeForwarder()
	r := New(testConfig(), 0, false, fwd)

	msg := controlMessage{
		typ:          msgAdvert,
		pfx:          m.MustParsePrefix("1.2.0.0/16"),
		senderTS:     1.0,
		cost:         0.05,
		path:         []m.Address{m.MustParseAddress("1.1.0.2"), r.myIP},
		receivedFrom: m.MustParseAddress("1.1.0.2"),
	}

	r.handleAdvert(&mgr.WorkerCtx{}, 0, msg)

	_, ok := r.routes.get(msg.pfx)
	assert.False(t, ok)
	assert.Empty(t, fwd.sentOn(0))
	assert.Empty(t, fwd.sentOn(1))
}

func TestRouterHandleAdvertDropsOnDeadLink(t *testing.T) {
	t.Parallel()

	fwd := newFakeForwarder()
	r := New(testConfig(), 0, false, fwd)
	r.links[0].DeclineState()
	r.links[0].DeclineState()
	r.links[0].DeclineState()
	require.Equal(t, m.HelloStateDown, r.links[0].GetState())

	msg := controlMessage{
		typ:          msgAdvert,
		pfx:          m.MustParsePrefix("1.2.0.0/16"),
		cost:         0.05,
		path:         []m.Address{m.MustParseAddress("1.1.0.2")},
		receivedFrom: m.MustParseAddress("1.1.0.2"),
	}
	r.handleAdvert(&mgr.WorkerCtx{}, 0, msg)

	_, ok := r.routes.get(msg.pfx)
	assert.False(t, ok)
}

func TestRouterFailureInvalidationAfterThreeMissedHellos(t *testing.T) {
	t.Parallel()

	fwd := newFakeForwarder()
	r := New(testConfig(), 0, true, fwd)

	rt := mkRoute(0.2, 0, []m.Address{r.myIP, m.MustParseAddress("1.1.0.2")}, 0, true)
	r.routes.set(&rt)

	w := &mgr.WorkerCtx{Manager: r.mgr}
	for i := 0; i < 3; i++ {
		r.processHelloLiveness(w, 0)
	}

	assert.Equal(t, m.HelloStateDown, r.links[0].GetState())
	got, ok := r.routes.get(rt.Pfx)
	require.True(t, ok)
	assert.False(t, got.Valid)
	assert.Len(t, fwd.sentOn(1), 1, "fadvert should have gone out the surviving link")
}

func TestRouterHandleHelloRepliesOnSameLink(t *testing.T) {
	t.Parallel()

	fwd := newFakeForwarder()
	r := New(testConfig(), 0, false, fwd)

	msg := controlMessage{typ: msgHello, timestamp: 3.5}
	r.handleHello(&mgr.WorkerCtx{Manager: r.mgr}, 1, msg)

	sent := fwd.sentOn(1)
	require.Len(t, sent, 1)

	parsed, err := parseControlMessage(sent[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, msgHelloReply, parsed.typ)
	assert.InDelta(t, 3.5, parsed.timestamp, 1e-9)
}

func TestRouterHandleHelloReplyUpdatesCostAndLiveness(t *testing.T) {
	t.Parallel()

	fwd := newFakeForwarder()
	r := New(testConfig(), 0, false, fwd)
	r.links[0].DeclineState()

	before := r.links[0].GetCost()
	r.handleHelloReply(&mgr.WorkerCtx{}, 0, controlMessage{timestamp: r.clock.now() - 0.02})

	assert.NotEqual(t, before, r.links[0].GetCost())
	assert.True(t, r.links[0].TakeGotReply())
	assert.Equal(t, m.HelloStateHealthy, r.links[0].GetState())
}

func TestRouterPeriodicAdvertSkipsSplitHorizon(t *testing.T) {
	t.Parallel()

	fwd := newFakeForwarder()
	r := New(testConfig(), 0, false, fwd)

	r.runPeriodicAdvert(&mgr.WorkerCtx{Manager: r.mgr})

	assert.Len(t, fwd.sentOn(0), 1)
	assert.Len(t, fwd.sentOn(1), 1)
}

func TestRouterMainLoopProcessesInboundBeforeIdling(t *testing.T) {
	t.Parallel()

	fwd := newFakeForwarder()
	r := New(testConfig(), 0, false, fwd)

	hello := m.NewControlPacket(m.MustParseAddress("1.1.0.2"), r.myIP, buildHello(1.0))
	fwd.inbox = append(fwd.inbox, forwarder.RoutedPacket{Packet: hello, Link: 0})

	require.NoError(t, r.Start())
	t.Cleanup(r.mgr.Cancel)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(fwd.sentOn(0)) == 0 {
		time.Sleep(time.Millisecond)
	}
	require.NotEmpty(t, fwd.sentOn(0))
}
